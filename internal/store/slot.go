package store

import "context"

// DefaultSlotName is the slot holding the serialized task collection.
const DefaultSlotName = "todos"

// Slot is a single named unit of durable storage that is read once at
// startup and overwritten wholesale on every mutation.
type Slot interface {
	// Name returns the slot identifier.
	Name() string

	// Load returns the stored bytes, or ErrSlotEmpty if nothing was saved yet.
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the slot contents.
	Save(ctx context.Context, data []byte) error

	// Close releases the backend.
	Close() error
}
