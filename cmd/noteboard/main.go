// Noteboard is a three-column kanban board for checklist notes.
// It prints or edits the board from the command line and can serve it as a
// web dashboard.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/madhatter5501/noteboard"
	"github.com/madhatter5501/noteboard/internal/web"
	"github.com/madhatter5501/noteboard/kanban"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, sigCh))
}

// command holds the flags that pick what run does.
type command struct {
	showVersion bool
	status      bool
	dashboard   bool
	add         string
	remove      string
	move        string
	toggle      string
}

func run(args []string, out, errOut io.Writer, sigCh <-chan os.Signal) int {
	flags := flag.NewFlagSet("noteboard", flag.ContinueOnError)
	flags.SetOutput(errOut)
	noteboard.RegisterFlags(flags)

	var cmd command
	flags.BoolVar(&cmd.showVersion, "version", false, "Show version")
	flags.BoolVar(&cmd.status, "status", false, "Show the board")
	flags.BoolVar(&cmd.dashboard, "dashboard", false, "Start the web dashboard")
	flags.StringVar(&cmd.add, "add", "", "Add a card with TITLE to the New column")
	flags.StringVar(&cmd.remove, "remove", "", "Remove the card at COLUMN:INDEX")
	flags.StringVar(&cmd.move, "move", "", "Move card ID:COLUMN")
	flags.StringVar(&cmd.toggle, "toggle", "", "Toggle checklist item ID:INDEX")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if cmd.showVersion {
		fmt.Fprintf(out, "noteboard %s (commit: %s, built: %s)\n", version, gitCommit, buildTime)
		return 0
	}

	configPath, _ := flags.GetString(noteboard.FlagConfig)
	cfg, err := noteboard.LoadConfig(configPath, flags)
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}

	logger, err := noteboard.NewLogger(errOut, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	app, err := noteboard.Open(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(errOut, "Failed to open board: %v\n", err)
		return 1
	}
	defer app.Close()

	if cfg.Source != "" {
		logger.Debug("Loaded config", "path", cfg.Source)
	}

	if cmd.dashboard {
		return runDashboard(app, out, errOut, sigCh)
	}

	if err := runCommand(ctx, app, cmd, out); err != nil {
		fmt.Fprintf(errOut, "Error: %s (%v)\n", app.Text.Error(err), err)
		return 1
	}
	return 0
}

// runCommand applies the board command named by cmd. With no command the
// board is printed.
func runCommand(ctx context.Context, app *noteboard.App, cmd command, out io.Writer) error {
	t := app.Text
	board := app.Board

	switch {
	case cmd.add != "":
		card, err := board.AddCard(ctx, cmd.add)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, t.Text("cli.card_added", card.ID))

	case cmd.remove != "":
		col, index, err := parseColumnIndex(cmd.remove)
		if err != nil {
			return err
		}
		if err := board.RemoveCard(ctx, col, index); err != nil {
			return err
		}
		fmt.Fprintln(out, t.Text("cli.card_removed", index, t.Column(col)))

	case cmd.move != "":
		id, target, ok := strings.Cut(cmd.move, ":")
		if !ok {
			return fmt.Errorf("%w: --move wants ID:COLUMN, got %q", kanban.ErrInvalidMove, cmd.move)
		}
		col, err := kanban.ParseColumn(target)
		if err != nil {
			return err
		}
		if err := board.MoveCard(ctx, id, col); err != nil {
			return err
		}
		fmt.Fprintln(out, t.Text("cli.card_moved", id, t.Column(col)))

	case cmd.toggle != "":
		id, index, err := parseIDIndex(cmd.toggle)
		if err != nil {
			return err
		}
		card, _, err := board.Card(id)
		if err != nil {
			return err
		}
		if index < 0 || index >= len(card.Items) {
			return fmt.Errorf("%w: card %s has no item %d", kanban.ErrNotFound, id, index)
		}
		action, err := board.ToggleItem(ctx, id, index, !card.Items[index].Completed)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, t.Text("cli.item_toggled", index, id))
		if action != kanban.ActionNone {
			_, col, _ := board.Card(id)
			fmt.Fprintln(out, t.Text("cli.card_moved", id, t.Column(col)))
		}

	default:
		printBoard(app, out)
	}
	return nil
}

// printBoard writes every column with its cards and checklist progress.
func printBoard(app *noteboard.App, out io.Writer) {
	t := app.Text
	snap := app.Board.Snapshot()

	total := 0
	for _, col := range kanban.Columns {
		cards := snap.Column(col)
		total += len(cards)

		limit := "-"
		if n := snap.Capacities.Of(col); n > 0 {
			limit = strconv.Itoa(n)
		}
		fmt.Fprintln(out, t.Text("cli.heading", t.Heading(t.Column(col)), len(cards), limit))

		if len(cards) == 0 {
			fmt.Fprintf(out, "  %s\n", t.Text("cli.no_cards"))
		}
		for _, card := range cards {
			done := 0
			for _, item := range card.Items {
				if item.Completed {
					done++
				}
			}
			fmt.Fprintf(out, "  [%s] %s  %d/%d (%.0f%%)\n",
				card.ID, card.Title, done, len(card.Items), kanban.CompletionPercentage(card))
			if card.CompletionDate != "" {
				fmt.Fprintf(out, "      %s\n", t.Text("ui.completed_on", card.CompletionDate))
			}
		}
		fmt.Fprintln(out)
	}

	if snap.Locked {
		fmt.Fprintln(out, t.Text("ui.board_locked"))
	}
	fmt.Fprintln(out, t.Text("ui.card_count", total))
}

func parseColumnIndex(s string) (kanban.ColumnID, int, error) {
	name, idx, ok := strings.Cut(s, ":")
	if !ok {
		return "", 0, fmt.Errorf("%w: --remove wants COLUMN:INDEX, got %q", kanban.ErrInvalidMove, s)
	}
	col, err := kanban.ParseColumn(name)
	if err != nil {
		return "", 0, err
	}
	index, err := strconv.Atoi(idx)
	if err != nil {
		return "", 0, fmt.Errorf("%w: index %q is not a number", kanban.ErrInvalidMove, idx)
	}
	return col, index, nil
}

func parseIDIndex(s string) (string, int, error) {
	id, idx, ok := strings.Cut(s, ":")
	if !ok {
		return "", 0, fmt.Errorf("%w: --toggle wants ID:INDEX, got %q", kanban.ErrInvalidMove, s)
	}
	index, err := strconv.Atoi(idx)
	if err != nil {
		return "", 0, fmt.Errorf("%w: index %q is not a number", kanban.ErrInvalidMove, idx)
	}
	return id, index, nil
}

func runDashboard(app *noteboard.App, out, errOut io.Writer, sigCh <-chan os.Signal) int {
	server, err := web.NewServer(app.Board, web.Options{
		Language: app.Config.Language,
		Metrics:  app.Metrics,
		Logger:   app.Logger,
	})
	if err != nil {
		fmt.Fprintf(errOut, "Failed to create server: %v\n", err)
		return 1
	}

	// Handle signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}
		fmt.Fprintln(out, "\nShutting down...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error("Shutdown failed", "error", err)
		}
	}()

	fmt.Fprintf(out, `
╔═══════════════════════════════════════════════════════════════╗
║                    Noteboard Dashboard                        ║
╠═══════════════════════════════════════════════════════════════╣
║  Server:   http://localhost:%s
║  Store:    %s (%s)
╚═══════════════════════════════════════════════════════════════╝

`, app.Config.Port, app.Config.Store.Backend, app.StoreLocation())

	if err := server.Start(":" + app.Config.Port); err != nil && ctx.Err() == nil {
		fmt.Fprintf(errOut, "Server error: %v\n", err)
		return 1
	}
	return 0
}
