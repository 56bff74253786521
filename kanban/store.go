package kanban

import (
	"context"
	"fmt"
)

// DefaultStorageKey is the key the board document is stored under.
const DefaultStorageKey = "todo-columns"

// KVStore is a key-value store holding opaque values. Set overwrites.
// Get reports found=false for an absent key.
type KVStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// DocumentStore loads and saves the board document.
// Load returns a nil document when nothing has been saved yet.
type DocumentStore interface {
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc Document) error
}

// Persistence stores the document as JSON under a single key.
type Persistence struct {
	kv  KVStore
	key string
}

var _ DocumentStore = (*Persistence)(nil)

// NewPersistence creates a persistence adapter over kv. An empty key
// selects DefaultStorageKey.
func NewPersistence(kv KVStore, key string) *Persistence {
	if key == "" {
		key = DefaultStorageKey
	}
	return &Persistence{kv: kv, key: key}
}

// Key returns the storage key in use.
func (p *Persistence) Key() string {
	return p.key
}

// Load reads and decodes the document. A record that needed repair, such
// as cards saved without an id, is written back so the repaired form is
// what the next Load sees. If that write fails, the decoded document is
// still returned together with the ErrPersistence error.
func (p *Persistence) Load(ctx context.Context) (*Document, error) {
	data, found, err := p.kv.Get(ctx, p.key)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrPersistence, p.key, err)
	}
	if !found {
		return nil, nil
	}
	doc, repaired, err := decodeDocument(data)
	if err != nil || !repaired {
		return doc, err
	}
	if err := p.Save(ctx, *doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// Save encodes the document and overwrites the stored value.
func (p *Persistence) Save(ctx context.Context, doc Document) error {
	data, err := EncodeDocument(doc)
	if err != nil {
		return err
	}
	if err := p.kv.Set(ctx, p.key, data); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, p.key, err)
	}
	return nil
}
