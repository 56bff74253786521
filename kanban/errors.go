package kanban

import "errors"

// Errors returned by board operations. Callers test them with errors.Is;
// returned errors wrap them with context.
var (
	ErrCapacity      = errors.New("capacity reached")
	ErrLocked        = errors.New("locked")
	ErrTerminalState = errors.New("card is done")
	ErrNotFound      = errors.New("not found")
	ErrPersistence   = errors.New("persistence failed")
	ErrInvalidMove   = errors.New("invalid move")

	// ErrNotEditable is returned for text edits on an item that is not in
	// editing mode.
	ErrNotEditable = &notEditableError{}
)

type notEditableError struct{}

func (*notEditableError) Error() string { return "item is not editable" }
func (*notEditableError) Unwrap() error { return ErrLocked }

// Error kinds, stable strings for API responses and message lookup.
const (
	KindCapacity    = "capacity"
	KindLocked      = "locked"
	KindTerminal    = "terminal"
	KindNotFound    = "not_found"
	KindPersistence = "persistence"
	KindInvalid     = "invalid"
	KindNotEditable = "not_editable"
	KindInternal    = "internal"
)

// Kind maps err to its error kind. Locked wins over capacity so that a
// blocked add or move surfaces as the lock.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotEditable):
		return KindNotEditable
	case errors.Is(err, ErrLocked):
		return KindLocked
	case errors.Is(err, ErrCapacity):
		return KindCapacity
	case errors.Is(err, ErrTerminalState):
		return KindTerminal
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidMove):
		return KindInvalid
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	}
	return KindInternal
}
