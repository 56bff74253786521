package kanban

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"
)

// EncodeDocument serializes the document. Columns are always arrays.
func EncodeDocument(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc.Clone())
	if err != nil {
		return nil, fmt.Errorf("%w: encode document: %w", ErrPersistence, err)
	}
	return data, nil
}

// DecodeDocument parses a stored document, tolerating legacy and partial
// records:
//   - a JSON null decodes to a nil document
//   - missing or malformed columns become empty
//   - entries that are not objects are dropped
//   - completed/editing/locked follow JavaScript truthiness
//   - missing ids are assigned, unknown statuses follow the column
//   - item lists are padded to MinItems and cut at MaxItems
//
// Bytes that are not JSON at all are an ErrPersistence.
func DecodeDocument(data []byte) (*Document, error) {
	doc, _, err := decodeDocument(data)
	return doc, err
}

// decodeDocument is DecodeDocument that also reports whether any card had
// to be repaired. A repaired document differs from the stored bytes and
// should be written back, or the ids assigned here change on every load.
func decodeDocument(data []byte) (*Document, bool, error) {
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, false, fmt.Errorf("%w: stored document is not valid JSON", ErrPersistence)
	}
	if string(data) == "null" {
		return nil, false, nil
	}

	doc := &Document{
		NewColumn:        []Card{},
		InProgressColumn: []Card{},
		CompletedColumn:  []Card{},
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		// Valid JSON that is not an object carries no columns.
		return doc, false, nil
	}

	repaired := false
	for _, col := range Columns {
		cards, fixed := decodeColumn(fields[string(col)], col)
		*doc.column(col) = cards
		repaired = repaired || fixed
	}
	return doc, repaired, nil
}

func decodeColumn(raw json.RawMessage, col ColumnID) ([]Card, bool) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		// An absent column is not worth a rewrite, a garbled one is.
		return []Card{}, len(raw) > 0
	}
	cards := make([]Card, 0, len(entries))
	repaired := false
	for _, entry := range entries {
		card, fixed, ok := decodeCard(entry, col)
		if !ok {
			repaired = true
			continue
		}
		cards = append(cards, card)
		repaired = repaired || fixed
	}
	return cards, repaired
}

func decodeCard(raw json.RawMessage, col ColumnID) (card Card, repaired, ok bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Card{}, false, false
	}

	card = Card{
		ID:             rawString(fields["id"]),
		Title:          rawString(fields["title"]),
		Status:         Status(rawString(fields["status"])),
		Locked:         truthy(fields["locked"]),
		Comment:        rawString(fields["comment"]),
		CompletionDate: rawString(fields["completionDate"]),
	}
	if card.ID == "" {
		card.ID = uuid.NewString()
		repaired = true
	}
	if !card.Status.Valid() {
		card.Status = col.Status()
		repaired = true
	}

	var entries []json.RawMessage
	_ = json.Unmarshal(fields["items"], &entries)
	for _, entry := range entries {
		if len(card.Items) == MaxItems {
			repaired = true
			break
		}
		var item map[string]json.RawMessage
		if err := json.Unmarshal(entry, &item); err != nil || item == nil {
			repaired = true
			continue
		}
		card.Items = append(card.Items, ChecklistItem{
			Text:      rawString(item["text"]),
			Completed: truthy(item["completed"]),
			Editing:   truthy(item["editing"]),
		})
	}
	for len(card.Items) < MinItems {
		card.Items = append(card.Items, NewChecklistItem())
		repaired = true
	}
	return card, repaired, true
}

// rawString returns the value when raw is a JSON string or number, and ""
// otherwise.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// truthy applies JavaScript's !!value to a JSON value. An absent value is
// false.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	switch raw[0] {
	case 'n':
		return false
	case 't':
		return true
	case 'f':
		return false
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
		return s != ""
	case '{', '[':
		return true
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return false
	}
	return f != 0 && !math.IsNaN(f)
}
