// Package kanban provides the note board: three ordered columns of cards,
// the rules that move cards between them based on checklist completion,
// and the persistence adapter that stores the board as one JSON document.
package kanban

import (
	"fmt"
)

// Status represents the stage a card is in.
type Status string

const (
	StatusNew       Status = "New"        // Freshly created or sent back for modification
	StatusInProcess Status = "In process" // Being worked on
	StatusDone      Status = "Done"       // Complete, no further edits
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProcess, StatusDone:
		return true
	}
	return false
}

// ColumnID identifies one of the three fixed columns.
type ColumnID string

const (
	ColumnNew        ColumnID = "newColumn"
	ColumnInProgress ColumnID = "inProgressColumn"
	ColumnCompleted  ColumnID = "completedColumn"
)

// Columns lists the columns in board order.
var Columns = []ColumnID{ColumnNew, ColumnInProgress, ColumnCompleted}

// ParseColumn accepts either a column ID or a short alias ("new",
// "in-process", "done").
func ParseColumn(s string) (ColumnID, error) {
	switch s {
	case string(ColumnNew), "new", "New":
		return ColumnNew, nil
	case string(ColumnInProgress), "in-process", "inprocess", "in_process", "In process":
		return ColumnInProgress, nil
	case string(ColumnCompleted), "done", "Done":
		return ColumnCompleted, nil
	}
	return "", fmt.Errorf("%w: unknown column %q", ErrNotFound, s)
}

// Title returns the display title of the column.
func (c ColumnID) Title() string {
	switch c {
	case ColumnNew:
		return "New"
	case ColumnInProgress:
		return "In process"
	case ColumnCompleted:
		return "Done"
	}
	return ""
}

// Status returns the card status implied by living in this column.
func (c ColumnID) Status() Status {
	switch c {
	case ColumnInProgress:
		return StatusInProcess
	case ColumnCompleted:
		return StatusDone
	}
	return StatusNew
}

// Checklist bounds.
const (
	MinItems = 3
	MaxItems = 5
)

// DefaultCardTitle is used when a card is added without a title.
const DefaultCardTitle = "New note"

// ChecklistItem is one line of a card's checklist.
type ChecklistItem struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	Editing   bool   `json:"editing"`
}

// NewChecklistItem returns an empty, editable item.
func NewChecklistItem() ChecklistItem {
	return ChecklistItem{Editing: true}
}

// Card is a note with a short checklist.
type Card struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Items          []ChecklistItem `json:"items"`
	Status         Status          `json:"status"`
	Locked         bool            `json:"locked"`
	Comment        string          `json:"comment,omitempty"`
	CompletionDate string          `json:"completionDate,omitempty"`
}

// Clone returns a deep copy of the card.
func (c Card) Clone() Card {
	out := c
	out.Items = append([]ChecklistItem(nil), c.Items...)
	return out
}

// CompletedCount returns the number of checked items.
func (c Card) CompletedCount() int {
	n := 0
	for _, item := range c.Items {
		if item.Completed {
			n++
		}
	}
	return n
}

// Document is the unit of persistence: the three columns in order.
type Document struct {
	NewColumn        []Card `json:"newColumn"`
	InProgressColumn []Card `json:"inProgressColumn"`
	CompletedColumn  []Card `json:"completedColumn"`
}

// Column returns the cards of the given column.
func (d *Document) Column(id ColumnID) []Card {
	switch id {
	case ColumnNew:
		return d.NewColumn
	case ColumnInProgress:
		return d.InProgressColumn
	case ColumnCompleted:
		return d.CompletedColumn
	}
	return nil
}

func (d *Document) column(id ColumnID) *[]Card {
	switch id {
	case ColumnNew:
		return &d.NewColumn
	case ColumnInProgress:
		return &d.InProgressColumn
	case ColumnCompleted:
		return &d.CompletedColumn
	}
	return nil
}

// Total returns the number of cards across all columns.
func (d *Document) Total() int {
	return len(d.NewColumn) + len(d.InProgressColumn) + len(d.CompletedColumn)
}

// Clone returns a deep copy of the document. Nil columns become empty
// slices so the JSON form always carries arrays.
func (d *Document) Clone() Document {
	cp := func(cards []Card) []Card {
		out := make([]Card, 0, len(cards))
		for _, c := range cards {
			out = append(out, c.Clone())
		}
		return out
	}
	return Document{
		NewColumn:        cp(d.NewColumn),
		InProgressColumn: cp(d.InProgressColumn),
		CompletedColumn:  cp(d.CompletedColumn),
	}
}

// Capacities holds the per-column card limits. Zero means unlimited.
type Capacities struct {
	New        int `json:"new"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
}

// DefaultCapacities returns the standard limits: 3 new, 5 in process,
// unlimited done.
func DefaultCapacities() Capacities {
	return Capacities{New: 3, InProgress: 5, Completed: 0}
}

// Of returns the capacity of a column.
func (c Capacities) Of(id ColumnID) int {
	switch id {
	case ColumnNew:
		return c.New
	case ColumnInProgress:
		return c.InProgress
	case ColumnCompleted:
		return c.Completed
	}
	return 0
}

// full reports whether n cards fill a column with the given limit.
func full(limit, n int) bool {
	return limit > 0 && n >= limit
}

// boardLimit returns the sum of all capacities, or 0 when any is unlimited.
func (c Capacities) boardLimit() int {
	if c.New <= 0 || c.InProgress <= 0 || c.Completed <= 0 {
		return 0
	}
	return c.New + c.InProgress + c.Completed
}

// Snapshot is a read-only copy of the board state.
type Snapshot struct {
	Document
	Locked     bool       `json:"locked"`
	Capacities Capacities `json:"capacities"`
}
