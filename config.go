// Package noteboard wires the kanban note board to its storage,
// configuration and logging.
package noteboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/tailscale/hujson"

	"github.com/madhatter5501/noteboard/internal/kvstore"
	"github.com/madhatter5501/noteboard/kanban"
)

// ConfigFileName is the config file looked up in the working directory.
const ConfigFileName = ".noteboard.json"

// Config errors.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigInvalid      = errors.New("invalid config")
)

// Config holds all configuration options.
type Config struct {
	// Storage
	Store      kvstore.Config `json:"store"`
	StorageKey string         `json:"storageKey"`

	// Board rules
	Capacities kanban.Capacities `json:"capacities"` // 0 means unlimited
	TimeLayout string            `json:"timeLayout"` // Go layout for comments and completion dates

	// Presentation
	Language string `json:"language"` // "en" or "ru"; the dashboard also honors Accept-Language
	Port     string `json:"port"`
	LogLevel string `json:"logLevel"` // debug, info, warn, error

	// Source is the config file that was loaded, if any.
	Source string `json:"-"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Store:      kvstore.DefaultConfig(),
		StorageKey: kanban.DefaultStorageKey,
		Capacities: kanban.DefaultCapacities(),
		TimeLayout: kanban.DefaultTimeLayout,
		Language:   "en",
		Port:       "8080",
		LogLevel:   "info",
	}
}

// LoadConfig applies, in order of increasing precedence, the defaults, the
// config file and the flags that were set on flags. The file is path when
// given (and must exist), otherwise ConfigFileName in the working
// directory if present.
func LoadConfig(path string, flags *flag.FlagSet) (Config, error) {
	cfg := DefaultConfig()

	file, mustExist := path, true
	if file == "" {
		file, mustExist = ConfigFileName, false
	}

	loaded, err := loadConfigFile(file, &cfg, mustExist)
	if err != nil {
		return Config{}, err
	}
	if loaded {
		cfg.Source = file
	}

	if flags != nil {
		if err := ApplyFlags(flags, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadConfigFile decodes a JSONC file over cfg. Fields absent from the file
// keep their current values.
func loadConfigFile(path string, cfg *Config, mustExist bool) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if mustExist {
				return false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
			}
			return false, nil
		}
		return false, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := parseConfig(data, cfg); err != nil {
		return false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}
	return true, nil
}

func parseConfig(data []byte, cfg *Config) error {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("invalid JSONC: %w", err)
	}
	if err := json.Unmarshal(standardized, cfg); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// Flag names shared by RegisterFlags and ApplyFlags.
const (
	FlagConfig       = "config"
	FlagStore        = "store"
	FlagDataDir      = "data-dir"
	FlagRedisAddr    = "redis-addr"
	FlagStorageKey   = "storage-key"
	FlagCapNew       = "cap-new"
	FlagCapInProcess = "cap-in-process"
	FlagCapDone      = "cap-done"
	FlagLang         = "lang"
	FlagPort         = "port"
	FlagLogLevel     = "log-level"
)

// RegisterFlags adds the configuration flags to flags. Their defaults only
// document the built-in values; LoadConfig applies a flag only when it was
// set on the command line.
func RegisterFlags(flags *flag.FlagSet) {
	d := DefaultConfig()
	flags.StringP(FlagConfig, "c", "", "Config file (JSON with comments) [default: "+ConfigFileName+" if present]")
	flags.String(FlagStore, d.Store.Backend, "Store backend: "+strings.Join(kvstore.Backends, "|"))
	flags.String(FlagDataDir, d.Store.Dir, "Data directory for file, sqlite and badger stores")
	flags.String(FlagRedisAddr, d.Store.RedisAddr, "Redis address")
	flags.String(FlagStorageKey, d.StorageKey, "Key the board document is stored under")
	flags.Int(FlagCapNew, d.Capacities.New, "Capacity of the New column (0 = unlimited)")
	flags.Int(FlagCapInProcess, d.Capacities.InProgress, "Capacity of the In process column (0 = unlimited)")
	flags.Int(FlagCapDone, d.Capacities.Completed, "Capacity of the Done column (0 = unlimited)")
	flags.String(FlagLang, d.Language, "Message language: en|ru")
	flags.String(FlagPort, d.Port, "Dashboard server port")
	flags.String(FlagLogLevel, d.LogLevel, "Log level: debug|info|warn|error")
}

// ApplyFlags copies every flag that was set on flags into cfg.
func ApplyFlags(flags *flag.FlagSet, cfg *Config) error {
	var err error
	str := func(name string, dst *string) {
		if err == nil && flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, err = flags.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if err == nil && flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, err = flags.GetInt(name)
		}
	}

	str(FlagStore, &cfg.Store.Backend)
	str(FlagDataDir, &cfg.Store.Dir)
	str(FlagRedisAddr, &cfg.Store.RedisAddr)
	str(FlagStorageKey, &cfg.StorageKey)
	num(FlagCapNew, &cfg.Capacities.New)
	num(FlagCapInProcess, &cfg.Capacities.InProgress)
	num(FlagCapDone, &cfg.Capacities.Completed)
	str(FlagLang, &cfg.Language)
	str(FlagPort, &cfg.Port)
	str(FlagLogLevel, &cfg.LogLevel)
	return err
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if !slices.Contains(kvstore.Backends, strings.ToLower(c.Store.Backend)) {
		return fmt.Errorf("%w: unknown store backend %q", ErrConfigInvalid, c.Store.Backend)
	}
	if c.Capacities.New < 0 || c.Capacities.InProgress < 0 || c.Capacities.Completed < 0 {
		return fmt.Errorf("%w: capacities must not be negative", ErrConfigInvalid)
	}
	if c.Capacities == (kanban.Capacities{}) {
		return fmt.Errorf("%w: at least one column needs a capacity", ErrConfigInvalid)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	return nil
}

// ParseLogLevel maps a level name to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
