// Package store provides the in-memory task collection for Chime, persisted
// wholesale to a durable Slot after every mutation.
package store

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/fentz26/chime/internal/models"
	"github.com/google/uuid"
)

// StorageErrorHandler receives persistence failures. Mutations that trigger
// them have already been applied in memory.
type StorageErrorHandler func(err *StorageError)

// Option configures a Store.
type Option func(*Store)

// WithStorageErrorHandler overrides the default handler, which logs.
func WithStorageErrorHandler(h StorageErrorHandler) Option {
	return func(s *Store) {
		if h != nil {
			s.onStorageError = h
		}
	}
}

// WithIDGenerator replaces uuid generation. Used by tests.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// Store holds the ordered task collection.
type Store struct {
	mu    sync.RWMutex
	slot  Slot
	tasks []models.Task

	onStorageError StorageErrorHandler
	newID          func() string
}

// Patch describes an edit. Nil fields are left untouched.
type Patch struct {
	Text          *string
	Reminder      *time.Time
	ClearReminder bool
}

// Open loads the collection from slot. A missing or corrupt slot yields an
// empty collection; it is never an error.
func Open(ctx context.Context, slot Slot, opts ...Option) *Store {
	s := &Store{
		slot: slot,
		onStorageError: func(err *StorageError) {
			log.Printf("Warning: %v", err)
		},
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := slot.Load(ctx)
	switch {
	case errors.Is(err, ErrSlotEmpty):
		// first run
	case err != nil:
		s.onStorageError(&StorageError{Op: "load", Slot: slot.Name(), Err: err})
	default:
		tasks, err := decodeTasks(data)
		if err != nil {
			s.onStorageError(&StorageError{Op: "load", Slot: slot.Name(), Err: err})
		} else {
			s.tasks = tasks
		}
	}

	log.Printf("Loaded %d tasks from slot %q", len(s.tasks), slot.Name())
	return s
}

// Close closes the underlying slot.
func (s *Store) Close() error {
	return s.slot.Close()
}

// Slot returns the backing slot.
func (s *Store) Slot() Slot {
	return s.slot
}

// List returns a deep-copied snapshot of all tasks in insertion order.
func (s *Store) List() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out
}

// Get returns a copy of a task.
func (s *Store) Get(id string) (models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.Task{}, ErrNotFound
	}
	return s.tasks[i].Clone(), nil
}

// Create appends a new task. Blank text is rejected with ErrValidation.
func (s *Store) Create(text string, reminder *time.Time) (models.Task, error) {
	if isBlank(text) {
		return models.Task{}, ErrValidation
	}

	task := models.Task{
		Text:      text,
		Completed: false,
	}
	if reminder != nil {
		rt := *reminder
		task.ReminderTime = &rt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task.ID = s.newID()
	s.tasks = append(s.tasks, task)
	s.persistLocked()
	return task.Clone(), nil
}

// Update applies a patch. The patch is validated as a whole before anything changes.
func (s *Store) Update(id string, p Patch) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.Task{}, ErrNotFound
	}

	next := s.tasks[i].Clone()
	if p.Text != nil {
		next.Text = *p.Text
	}
	if isBlank(next.Text) {
		return models.Task{}, ErrValidation
	}
	switch {
	case p.ClearReminder:
		next.ReminderTime = nil
	case p.Reminder != nil:
		rt := *p.Reminder
		next.ReminderTime = &rt
	}
	if !models.SameReminder(next.ReminderTime, s.tasks[i].ReminderTime) {
		next.ReminderRev++
	}

	s.tasks[i] = next
	s.persistLocked()
	return next.Clone(), nil
}

// ToggleComplete flips the completed flag.
func (s *Store) ToggleComplete(id string) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.Task{}, ErrNotFound
	}

	s.tasks[i].Completed = !s.tasks[i].Completed
	s.persistLocked()
	return s.tasks[i].Clone(), nil
}

// Delete removes a task. Unknown ids are a no-op.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil
	}

	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	s.persistLocked()
	return nil
}

func (s *Store) indexOf(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked writes the whole collection. Caller must hold s.mu.
func (s *Store) persistLocked() {
	data, err := encodeTasks(s.tasks)
	if err == nil {
		err = s.slot.Save(context.Background(), data)
	}
	if err != nil {
		s.onStorageError(&StorageError{Op: "save", Slot: s.slot.Name(), Err: err})
	}
}

func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
