// Package lifecycle provides the task mutation API used by every front end:
// create, edit, toggle, delete, and the single editing session.
package lifecycle

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/fentz26/chime/internal/models"
	"github.com/fentz26/chime/internal/store"
)

// ErrNoEditSession is returned when saving without an active edit.
var ErrNoEditSession = errors.New("no task is being edited")

// Alarm is the manual stop control of the alert dispatcher.
type Alarm interface {
	Stop() error
}

// EditSession holds the editable fields of the task in edit mode.
type EditSession struct {
	TaskID       string     `json:"task_id"`
	Text         string     `json:"text"`
	ReminderTime *time.Time `json:"reminder_time,omitempty"`
}

// Service composes store operations with the editing session.
type Service struct {
	store *store.Store
	alarm Alarm

	mu      sync.Mutex
	editing *EditSession
}

// NewService creates a new lifecycle service.
func NewService(s *store.Store, alarm Alarm) *Service {
	return &Service{
		store: s,
		alarm: alarm,
	}
}

// List returns a snapshot of all tasks.
func (s *Service) List() []models.Task {
	return s.store.List()
}

// Get retrieves a task by ID.
func (s *Service) Get(id string) (models.Task, error) {
	return s.store.Get(id)
}

// Create adds a task.
func (s *Service) Create(text string, reminder *time.Time) (models.Task, error) {
	task, err := s.store.Create(text, reminder)
	if err != nil {
		return models.Task{}, err
	}
	log.Printf("Created task %s", task.ID)
	return task, nil
}

// Toggle flips completion. Completing a task suppresses its future alerts.
func (s *Service) Toggle(id string) (models.Task, error) {
	return s.store.ToggleComplete(id)
}

// Delete removes a task. Unknown ids are not an error. Deleting the task
// under edit ends the session.
func (s *Service) Delete(id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}

	s.mu.Lock()
	if s.editing != nil && s.editing.TaskID == id {
		s.editing = nil
	}
	s.mu.Unlock()
	return nil
}

// BeginEdit puts a task in edit mode, seeded from its current state.
// Any other session is discarded.
func (s *Service) BeginEdit(id string) (EditSession, error) {
	task, err := s.store.Get(id)
	if err != nil {
		return EditSession{}, err
	}

	session := EditSession{TaskID: task.ID, Text: task.Text, ReminderTime: task.ReminderTime}

	s.mu.Lock()
	s.editing = &session
	s.mu.Unlock()
	return session, nil
}

// CurrentEdit returns the active session, if any.
func (s *Service) CurrentEdit() (EditSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.editing == nil {
		return EditSession{}, false
	}
	return *s.editing, true
}

// SaveEdit validates and commits the session. A nil reminder clears it.
// On a validation error the session stays open so the input can be fixed.
func (s *Service) SaveEdit(text string, reminder *time.Time) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.editing == nil {
		return models.Task{}, ErrNoEditSession
	}

	patch := store.Patch{Text: &text}
	if reminder == nil {
		patch.ClearReminder = true
	} else {
		patch.Reminder = reminder
	}

	task, err := s.store.Update(s.editing.TaskID, patch)
	switch {
	case errors.Is(err, store.ErrValidation):
		s.editing.Text = text
		s.editing.ReminderTime = reminder
		return models.Task{}, err
	case err != nil:
		s.editing = nil
		return models.Task{}, err
	}

	s.editing = nil
	return task, nil
}

// CancelEdit discards the session without touching the task.
func (s *Service) CancelEdit() {
	s.mu.Lock()
	s.editing = nil
	s.mu.Unlock()
}

// StopAlarm silences the audible alarm.
func (s *Service) StopAlarm() error {
	return s.alarm.Stop()
}
