package noteboard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	flag "github.com/spf13/pflag"

	"github.com/madhatter5501/noteboard/internal/kvstore"
	"github.com/madhatter5501/noteboard/kanban"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func parseFlags(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("", parseFlags(t))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "board.json")
	writeFile(t, path, `{
		// comments and trailing commas are allowed
		"store": {"backend": "sqlite", "dir": "/var/lib/noteboard"},
		"capacities": {"new": 4, "completed": 10},
		"language": "ru",
	}`)

	cfg, err := LoadConfig(path, parseFlags(t, "--cap-new", "2", "--store", "badger"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	want := DefaultConfig()
	want.Store.Backend = "badger"         // flag beats file
	want.Store.Dir = "/var/lib/noteboard" // file beats default
	want.Capacities = kanban.Capacities{New: 2, InProgress: 5, Completed: 10}
	want.Language = "ru"
	want.Source = path
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigProjectFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, filepath.Join(dir, ConfigFileName), `{"port": "9090"}`)

	cfg, err := LoadConfig("", nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "9090" || cfg.Source != ConfigFileName {
		t.Errorf("Port, Source = %q, %q; want 9090 from %s", cfg.Port, cfg.Source, ConfigFileName)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"bad jsonc", `{"port": `, ErrConfigInvalid},
		{"bad backend", `{"store": {"backend": "tape"}}`, ErrConfigInvalid},
		{"negative capacity", `{"capacities": {"new": -1}}`, ErrConfigInvalid},
		{"all unlimited", `{"capacities": {"new": 0, "inProgress": 0, "completed": 0}}`, ErrConfigInvalid},
		{"bad log level", `{"logLevel": "loud"}`, ErrConfigInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			writeFile(t, path, tt.content)
			if _, err := LoadConfig(path, nil); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.json"), nil); !errors.Is(err, ErrConfigFileNotFound) {
		t.Errorf("missing file err = %v, want ErrConfigFileNotFound", err)
	}
}

func TestOpenApp(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	dir := t.TempDir()
	cfg.Store = kvstore.Config{Backend: kvstore.BackendFile, Dir: dir}
	cfg.Capacities = kanban.Capacities{New: 1, InProgress: 5}

	app, err := Open(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got, want := app.StoreLocation(), filepath.Join(dir, "data"); got != want {
		t.Errorf("StoreLocation() = %q, want %q", got, want)
	}
	if _, err := app.Board.AddCard(ctx, "first"); err != nil {
		t.Fatalf("AddCard: %v", err)
	}
	if _, err := app.Board.AddCard(ctx, "second"); !errors.Is(err, kanban.ErrCapacity) {
		t.Errorf("configured capacity not applied: err = %v", err)
	}
	if err := app.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if got := reopened.Board.Snapshot().NewColumn; len(got) != 1 || got[0].Title != "first" {
		t.Errorf("reloaded New column = %+v", got)
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger(os.Stderr, "debug"); err != nil {
		t.Errorf("NewLogger(debug): %v", err)
	}
	if _, err := NewLogger(os.Stderr, "chatty"); err == nil {
		t.Error("NewLogger(chatty) should fail")
	}
}
