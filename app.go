package noteboard

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/madhatter5501/noteboard/internal/i18n"
	"github.com/madhatter5501/noteboard/internal/kvstore"
	"github.com/madhatter5501/noteboard/internal/metrics"
	"github.com/madhatter5501/noteboard/kanban"
)

// App is a board opened over its configured store.
type App struct {
	Config  Config
	Logger  *slog.Logger
	Board   *kanban.Board
	Metrics *metrics.Metrics
	Text    *i18n.Localizer

	store kvstore.Store
	unsub func()
}

// NewLogger returns a text logger at the configured level.
func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// Open opens the store named by cfg and loads the board from it.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store, err := kvstore.Open(ctx, cfg.Store, logger.With("component", "store"))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}

	board, err := kanban.Open(ctx, kanban.NewPersistence(store, cfg.StorageKey), kanban.Options{
		Capacities: cfg.Capacities,
		TimeLayout: cfg.TimeLayout,
		Logger:     logger.With("component", "board"),
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load board: %w", err)
	}

	m := metrics.New()
	m.Observe(board.Snapshot())

	logger.Debug("Board opened",
		"store", cfg.Store.Backend,
		"location", store.Location(),
		"key", cfg.StorageKey,
		"locked", board.Locked())

	return &App{
		Config:  cfg,
		Logger:  logger,
		Board:   board,
		Metrics: m,
		Text:    i18n.For(cfg.Language),
		store:   store,
		unsub:   board.Subscribe(m.Observe),
	}, nil
}

// StoreLocation describes where the board document is kept.
func (a *App) StoreLocation() string {
	return a.store.Location()
}

// Close releases the store.
func (a *App) Close() error {
	if a.unsub != nil {
		a.unsub()
	}
	return a.store.Close()
}
