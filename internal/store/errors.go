package store

import (
	"errors"
	"fmt"
)

// Sentinel errors for task store operations.
var (
	ErrValidation = errors.New("task text must not be blank")
	ErrNotFound   = errors.New("task not found")
	ErrSlotEmpty  = errors.New("storage slot is empty")
)

// StorageError reports a failed read or write of the durable slot.
// It never aborts a mutation; in-memory state stays authoritative.
type StorageError struct {
	Op   string // "load" or "save"
	Slot string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Slot, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
