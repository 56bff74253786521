package kanban

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeLayout formats comment and completion timestamps the way a
// browser's en-US toLocaleString does.
const DefaultTimeLayout = "1/2/2006, 3:04:05 PM"

// Options configures a Board.
type Options struct {
	Capacities Capacities
	TimeLayout string
	Now        func() time.Time
	Logger     *slog.Logger
}

// Board owns the three columns and every card on them. All methods are
// safe for concurrent use; operations are applied one at a time.
type Board struct {
	mu     sync.Mutex
	doc    Document
	locked bool

	store  DocumentStore
	caps   Capacities
	layout string
	now    func() time.Time
	logger *slog.Logger

	obsMu     sync.Mutex
	observers map[int]func(Snapshot)
	nextObs   int
}

// NewBoard creates an empty board persisting to store. A nil store keeps
// the board in memory only.
func NewBoard(store DocumentStore, opts Options) *Board {
	if opts.Capacities == (Capacities{}) {
		opts.Capacities = DefaultCapacities()
	}
	if opts.TimeLayout == "" {
		opts.TimeLayout = DefaultTimeLayout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Board{
		doc: Document{
			NewColumn:        []Card{},
			InProgressColumn: []Card{},
			CompletedColumn:  []Card{},
		},
		store:     store,
		caps:      opts.Capacities,
		layout:    opts.TimeLayout,
		now:       opts.Now,
		logger:    opts.Logger,
		observers: make(map[int]func(Snapshot)),
	}
}

// Open creates a board and hydrates it from store.
func Open(ctx context.Context, store DocumentStore, opts Options) (*Board, error) {
	b := NewBoard(store, opts)
	if err := b.Load(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Load replaces the board state with the stored document and recomputes
// the lock. A store with nothing saved yields an empty board. When the
// store returns a document alongside a persistence error, the board keeps
// the document for the session and the error is only logged.
func (b *Board) Load(ctx context.Context) error {
	if b.store == nil {
		return nil
	}
	doc, err := b.store.Load(ctx)
	if err != nil {
		if doc == nil || !errors.Is(err, ErrPersistence) {
			return wrapPersistence(err)
		}
		b.logger.Warn("Repaired board not written back", "error", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if doc == nil {
		doc = &Document{}
	}
	b.doc = doc.Clone()
	b.recomputeLockLocked()
	b.logger.Debug("Board loaded",
		"new", len(b.doc.NewColumn),
		"inProgress", len(b.doc.InProgressColumn),
		"completed", len(b.doc.CompletedColumn),
		"locked", b.locked)
	return nil
}

// --- Queries ---

// Snapshot returns a deep copy of the board state.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// Locked reports whether the in-process column is at capacity.
func (b *Board) Locked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// Capacities returns the column limits in force.
func (b *Board) Capacities() Capacities {
	return b.caps
}

// Card returns a copy of the card with the given id and the column
// holding it.
func (b *Board) Card(id string) (Card, ColumnID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	col, idx, err := b.findLocked(id)
	if err != nil {
		return Card{}, "", err
	}
	return b.doc.Column(col)[idx].Clone(), col, nil
}

// Subscribe registers fn to be called with a snapshot after every
// successful mutation. The returned function removes the subscription.
func (b *Board) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	b.obsMu.Lock()
	defer b.obsMu.Unlock()

	id := b.nextObs
	b.nextObs++
	b.observers[id] = fn

	return func() {
		b.obsMu.Lock()
		defer b.obsMu.Unlock()
		delete(b.observers, id)
	}
}

// --- Card mutations ---

// AddCard appends a new card to the New column. It fails when the board
// or the New column is full, and while the in-process column is full.
func (b *Board) AddCard(ctx context.Context, title string) (Card, error) {
	var card Card
	err := b.mutate(ctx, func() error {
		if limit := b.caps.boardLimit(); limit > 0 && b.doc.Total() >= limit {
			return fmt.Errorf("%w: board holds %d cards", ErrCapacity, b.doc.Total())
		}
		if full(b.caps.New, len(b.doc.NewColumn)) {
			return fmt.Errorf("%w: column %q holds %d cards", ErrCapacity, ColumnNew.Title(), len(b.doc.NewColumn))
		}
		if full(b.caps.InProgress, len(b.doc.InProgressColumn)) {
			return fmt.Errorf("%w: %w: column %q is full", ErrCapacity, ErrLocked, ColumnInProgress.Title())
		}

		title = strings.TrimSpace(title)
		if title == "" {
			title = DefaultCardTitle
		}
		card = Card{
			ID:     uuid.NewString(),
			Title:  title,
			Items:  []ChecklistItem{NewChecklistItem(), NewChecklistItem(), NewChecklistItem()},
			Status: StatusNew,
		}
		b.doc.NewColumn = append(b.doc.NewColumn, card)
		b.logger.Debug("Card added", "id", card.ID, "title", card.Title)
		return nil
	})
	if err != nil && !errors.Is(err, ErrPersistence) {
		return Card{}, err
	}
	return card.Clone(), err
}

// RemoveCard deletes the card at index in column.
func (b *Board) RemoveCard(ctx context.Context, column ColumnID, index int) error {
	return b.mutate(ctx, func() error {
		cards := b.doc.column(column)
		if cards == nil {
			return fmt.Errorf("%w: unknown column %q", ErrNotFound, column)
		}
		if index < 0 || index >= len(*cards) {
			return fmt.Errorf("%w: no card at %s[%d]", ErrNotFound, column, index)
		}
		removed := (*cards)[index]
		*cards = append((*cards)[:index:index], (*cards)[index+1:]...)
		b.recomputeLockLocked()
		b.logger.Debug("Card removed", "id", removed.ID, "column", column)
		return nil
	})
}

// MoveCard moves a card to target. Allowed moves are New to In process
// (subject to capacity), In process to Done, and In process back to New.
func (b *Board) MoveCard(ctx context.Context, id string, target ColumnID) error {
	return b.mutate(ctx, func() error {
		col, idx, err := b.findLocked(id)
		if err != nil {
			return err
		}
		switch {
		case col == ColumnNew && target == ColumnInProgress:
			return b.moveToInProcessLocked(idx)
		case col == ColumnInProgress && target == ColumnCompleted:
			b.moveToDoneLocked(idx)
			return nil
		case col == ColumnInProgress && target == ColumnNew:
			b.moveToNewLocked(idx)
			return nil
		case col == ColumnCompleted:
			return fmt.Errorf("%w: card %s cannot leave %q", ErrTerminalState, id, col.Title())
		}
		return fmt.Errorf("%w: %s to %s", ErrInvalidMove, col, target)
	})
}

// ApplyCardEdit runs the rules engine on a card and applies the resulting
// move.
func (b *Board) ApplyCardEdit(ctx context.Context, id string) (Action, error) {
	var action Action
	err := b.mutate(ctx, func() error {
		var err error
		action, err = b.applyLocked(id)
		return err
	})
	return action, err
}

// RecomputeLock re-derives the lock from the in-process column and copies
// it onto every card in the New column.
func (b *Board) RecomputeLock() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recomputeLockLocked()
	return b.locked
}

// --- Checklist commands ---

// ToggleItem sets the completed flag of an item.
func (b *Board) ToggleItem(ctx context.Context, id string, index int, completed bool) (Action, error) {
	return b.editItems(ctx, id, func(card *Card) error {
		if err := checkIndex(card, index); err != nil {
			return err
		}
		card.Items[index].Completed = completed
		return nil
	})
}

// EditItemText replaces the text of an item in editing mode.
func (b *Board) EditItemText(ctx context.Context, id string, index int, text string) (Action, error) {
	return b.editItems(ctx, id, func(card *Card) error {
		if err := checkIndex(card, index); err != nil {
			return err
		}
		if !card.Items[index].Editing {
			return fmt.Errorf("card %s item %d: %w", card.ID, index, ErrNotEditable)
		}
		card.Items[index].Text = text
		return nil
	})
}

// SetItemEditing switches an item between editing and saved.
func (b *Board) SetItemEditing(ctx context.Context, id string, index int, editing bool) (Action, error) {
	return b.editItems(ctx, id, func(card *Card) error {
		if err := checkIndex(card, index); err != nil {
			return err
		}
		card.Items[index].Editing = editing
		return nil
	})
}

// AddItem appends an empty item. Cards hold at most MaxItems.
func (b *Board) AddItem(ctx context.Context, id string) (Action, error) {
	return b.editItems(ctx, id, func(card *Card) error {
		if len(card.Items) >= MaxItems {
			return fmt.Errorf("%w: card %s has %d items", ErrCapacity, card.ID, len(card.Items))
		}
		card.Items = append(card.Items, NewChecklistItem())
		return nil
	})
}

// RemoveItem deletes an item. Cards hold at least MinItems.
func (b *Board) RemoveItem(ctx context.Context, id string, index int) (Action, error) {
	return b.editItems(ctx, id, func(card *Card) error {
		if err := checkIndex(card, index); err != nil {
			return err
		}
		if len(card.Items) <= MinItems {
			return fmt.Errorf("%w: card %s needs at least %d items", ErrCapacity, card.ID, MinItems)
		}
		card.Items = append(card.Items[:index:index], card.Items[index+1:]...)
		return nil
	})
}

// editItems applies fn to a card's checklist and then the rules engine.
// When either step fails the card is left as it was.
func (b *Board) editItems(ctx context.Context, id string, fn func(card *Card) error) (Action, error) {
	var action Action
	err := b.mutate(ctx, func() error {
		col, idx, err := b.findLocked(id)
		if err != nil {
			return err
		}
		card := &(*b.doc.column(col))[idx]
		if col == ColumnCompleted || card.Status == StatusDone {
			return fmt.Errorf("%w: card %s", ErrTerminalState, id)
		}
		if card.Locked {
			return fmt.Errorf("%w: card %s is locked while %q is full", ErrLocked, id, ColumnInProgress.Title())
		}

		backup := card.Clone()
		if err := fn(card); err != nil {
			*card = backup
			return err
		}
		action, err = b.applyLocked(id)
		if err != nil {
			*card = backup
			return err
		}
		return nil
	})
	return action, err
}

func checkIndex(card *Card, index int) error {
	if index < 0 || index >= len(card.Items) {
		return fmt.Errorf("%w: card %s has no item %d", ErrNotFound, card.ID, index)
	}
	return nil
}

// --- Internals (caller holds b.mu) ---

// mutate runs fn under the lock, then persists and notifies observers.
// fn must leave the board untouched when it returns an error.
func (b *Board) mutate(ctx context.Context, fn func() error) error {
	b.mu.Lock()
	if err := fn(); err != nil {
		b.mu.Unlock()
		return err
	}
	snap := b.snapshotLocked()
	err := b.persistLocked(ctx, snap.Document)
	b.mu.Unlock()

	b.notify(snap)
	return err
}

func (b *Board) persistLocked(ctx context.Context, doc Document) error {
	if b.store == nil {
		return nil
	}
	if err := b.store.Save(ctx, doc); err != nil {
		b.logger.Warn("Failed to persist board", "error", err)
		return wrapPersistence(err)
	}
	return nil
}

func (b *Board) notify(snap Snapshot) {
	b.obsMu.Lock()
	fns := make([]func(Snapshot), 0, len(b.observers))
	for _, fn := range b.observers {
		fns = append(fns, fn)
	}
	b.obsMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (b *Board) snapshotLocked() Snapshot {
	return Snapshot{
		Document:   b.doc.Clone(),
		Locked:     b.locked,
		Capacities: b.caps,
	}
}

func (b *Board) findLocked(id string) (ColumnID, int, error) {
	for _, col := range Columns {
		for i, c := range b.doc.Column(col) {
			if c.ID == id {
				return col, i, nil
			}
		}
	}
	return "", 0, fmt.Errorf("%w: card %s", ErrNotFound, id)
}

func (b *Board) recomputeLockLocked() {
	b.locked = full(b.caps.InProgress, len(b.doc.InProgressColumn))
	for i := range b.doc.NewColumn {
		b.doc.NewColumn[i].Locked = b.locked
	}
}

func (b *Board) timestamp() string {
	return b.now().Format(b.layout)
}

// applyLocked evaluates the rules for a card and performs the move. A card
// whose status disagrees with its column is left alone.
func (b *Board) applyLocked(id string) (Action, error) {
	col, idx, err := b.findLocked(id)
	if err != nil {
		return ActionNone, err
	}
	card := b.doc.Column(col)[idx]
	action := EvaluateTransition(card)

	switch {
	case action == ActionMoveToDone && col == ColumnInProgress:
		b.doc.InProgressColumn[idx].CompletionDate = b.timestamp()
		b.moveToDoneLocked(idx)
	case action == ActionMoveToNew && col == ColumnInProgress:
		b.moveToNewLocked(idx)
	case action == ActionMoveToInProcess && col == ColumnNew:
		if err := b.moveToInProcessLocked(idx); err != nil {
			return ActionNone, err
		}
	default:
		return ActionNone, nil
	}
	return action, nil
}

func (b *Board) moveToInProcessLocked(idx int) error {
	if full(b.caps.InProgress, len(b.doc.InProgressColumn)) {
		return fmt.Errorf("%w: %w: column %q holds %d cards",
			ErrCapacity, ErrLocked, ColumnInProgress.Title(), len(b.doc.InProgressColumn))
	}
	card := takeCard(&b.doc.NewColumn, idx)
	card.Status = StatusInProcess
	card.Locked = false
	card.Comment = fmt.Sprintf("Modified (%s)", b.timestamp())
	b.doc.InProgressColumn = append(b.doc.InProgressColumn, card)
	b.recomputeLockLocked()
	b.logger.Debug("Card moved", "id", card.ID, "to", ColumnInProgress)
	return nil
}

func (b *Board) moveToDoneLocked(idx int) {
	card := takeCard(&b.doc.InProgressColumn, idx)
	card.Status = StatusDone
	if card.CompletionDate == "" {
		card.CompletionDate = b.timestamp()
	}
	b.doc.CompletedColumn = append(b.doc.CompletedColumn, card)
	b.recomputeLockLocked()
	b.logger.Debug("Card moved", "id", card.ID, "to", ColumnCompleted)
}

// moveToNewLocked sends a card back to New, unless it is still more than
// half complete: then it is re-appended to the in-process column without a
// capacity check.
func (b *Board) moveToNewLocked(idx int) {
	card := takeCard(&b.doc.InProgressColumn, idx)
	ts := b.timestamp()
	if CompletionPercentage(card) > 50 {
		card.Status = StatusInProcess
		card.Comment = fmt.Sprintf("Modified (%s)", ts)
		b.doc.InProgressColumn = append(b.doc.InProgressColumn, card)
		b.recomputeLockLocked()
		b.logger.Debug("Card kept in process", "id", card.ID)
		return
	}
	card.Status = StatusNew
	card.Comment = fmt.Sprintf("Sent for Modified (%s)", ts)
	b.doc.NewColumn = append(b.doc.NewColumn, card)
	b.recomputeLockLocked()
	b.logger.Debug("Card moved", "id", card.ID, "to", ColumnNew)
}

func takeCard(cards *[]Card, idx int) Card {
	card := (*cards)[idx]
	*cards = append((*cards)[:idx:idx], (*cards)[idx+1:]...)
	return card
}

func wrapPersistence(err error) error {
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
