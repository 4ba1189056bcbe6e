package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fentz26/chime/internal/models"
	"github.com/google/go-cmp/cmp"
)

// memSlot is an in-memory Slot that can be told to fail.
type memSlot struct {
	data    []byte
	loadErr error
	saveErr error
	saves   int
}

func (m *memSlot) Name() string { return "mem" }

func (m *memSlot) Load(ctx context.Context) ([]byte, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.data == nil {
		return nil, ErrSlotEmpty
	}
	return m.data, nil
}

func (m *memSlot) Save(ctx context.Context, data []byte) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *memSlot) Close() error { return nil }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	slot, err := OpenSQLiteSlot(filepath.Join(t.TempDir(), "test.db"), DefaultSlotName)
	if err != nil {
		t.Fatalf("Failed to open slot: %v", err)
	}
	s := Open(context.Background(), slot)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenSQLiteSlotCreatesFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "chime.db")

	slot, err := OpenSQLiteSlot(dbPath, DefaultSlotName)
	if err != nil {
		t.Fatalf("OpenSQLiteSlot failed: %v", err)
	}
	defer slot.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
	if err := slot.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestTaskLifecycle(t *testing.T) {
	s := newTestStore(t)

	// Create
	task, err := s.Create("Buy milk", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if task.ID == "" {
		t.Error("Task ID should not be empty")
	}
	if task.Completed {
		t.Error("New task should not be completed")
	}

	// Update text and reminder
	rt := time.Now().Add(time.Hour)
	text := "Buy oat milk"
	updated, err := s.Update(task.ID, Patch{Text: &text, Reminder: &rt})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Text != text || updated.ReminderTime == nil || !updated.ReminderTime.Equal(rt) {
		t.Errorf("Unexpected task after update: %+v", updated)
	}

	// Clear reminder, keep text
	updated, err = s.Update(task.ID, Patch{ClearReminder: true})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.ReminderTime != nil || updated.Text != text {
		t.Errorf("Unexpected task after clearing reminder: %+v", updated)
	}

	// Toggle
	toggled, err := s.ToggleComplete(task.ID)
	if err != nil {
		t.Fatalf("ToggleComplete failed: %v", err)
	}
	if !toggled.Completed {
		t.Error("Expected task to be completed")
	}

	// Delete
	if err := s.Delete(task.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(s.List()) != 0 {
		t.Errorf("Expected empty list after delete, got %d", len(s.List()))
	}
}

func TestBlankTextRejected(t *testing.T) {
	s := newTestStore(t)
	existing, _ := s.Create("keep me", nil)
	before := s.List()

	for _, text := range []string{"", " ", "\t\n  "} {
		if _, err := s.Create(text, nil); !errors.Is(err, ErrValidation) {
			t.Errorf("Create(%q) error = %v, want ErrValidation", text, err)
		}
		txt := text
		if _, err := s.Update(existing.ID, Patch{Text: &txt}); !errors.Is(err, ErrValidation) {
			t.Errorf("Update(%q) error = %v, want ErrValidation", text, err)
		}
	}

	if diff := cmp.Diff(before, s.List()); diff != "" {
		t.Errorf("Store changed after rejected mutations (-before +after):\n%s", diff)
	}
}

func TestUnknownID(t *testing.T) {
	s := newTestStore(t)
	s.Create("one", nil)
	before := s.List()

	text := "x"
	if _, err := s.Update("nope", Patch{Text: &text}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update unknown id error = %v, want ErrNotFound", err)
	}
	if _, err := s.ToggleComplete("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ToggleComplete unknown id error = %v, want ErrNotFound", err)
	}
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get unknown id error = %v, want ErrNotFound", err)
	}
	if err := s.Delete("nope"); err != nil {
		t.Errorf("Delete unknown id should be a no-op, got %v", err)
	}

	if diff := cmp.Diff(before, s.List()); diff != "" {
		t.Errorf("Store changed (-before +after):\n%s", diff)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, backend := range []string{"sqlite", "file"} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			open := func() Slot {
				var (
					slot Slot
					err  error
				)
				if backend == "sqlite" {
					slot, err = OpenSQLiteSlot(filepath.Join(dir, "chime.db"), DefaultSlotName)
				} else {
					slot, err = OpenFileSlot(dir, DefaultSlotName)
				}
				if err != nil {
					t.Fatalf("open slot: %v", err)
				}
				return slot
			}

			s := Open(context.Background(), open())
			base := time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC)
			for i := 0; i < 5; i++ {
				var rt *time.Time
				if i%2 == 0 {
					v := base.Add(time.Duration(i) * time.Minute)
					rt = &v
				}
				task, err := s.Create(fmt.Sprintf("task %d", i), rt)
				if err != nil {
					t.Fatalf("Create failed: %v", err)
				}
				if i == 3 {
					s.ToggleComplete(task.ID)
				}
			}
			want := s.List()
			s.Close()

			reloaded := Open(context.Background(), open())
			defer reloaded.Close()

			if diff := cmp.Diff(want, reloaded.List()); diff != "" {
				t.Errorf("Reloaded collection differs (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOpenCorruptSlotYieldsEmpty(t *testing.T) {
	var reported []*StorageError
	slot := &memSlot{data: []byte("{not json")}

	s := Open(context.Background(), slot, WithStorageErrorHandler(func(err *StorageError) {
		reported = append(reported, err)
	}))

	if len(s.List()) != 0 {
		t.Errorf("Expected empty collection, got %d tasks", len(s.List()))
	}
	if len(reported) != 1 || reported[0].Op != "load" {
		t.Errorf("Expected one load error, got %v", reported)
	}
}

func TestOpenUnreadableSlotYieldsEmpty(t *testing.T) {
	slot := &memSlot{loadErr: errors.New("disk on fire")}
	s := Open(context.Background(), slot, WithStorageErrorHandler(func(*StorageError) {}))

	if len(s.List()) != 0 {
		t.Errorf("Expected empty collection, got %d tasks", len(s.List()))
	}
}

func TestOpenSkipsBadRecords(t *testing.T) {
	slot := &memSlot{data: []byte(`[
		{"id":"a","text":"ok","completed":false,"reminderTime":"2026-01-02T10:00"},
		{"id":"","text":"no id","completed":false},
		{"id":"b","text":"   ","completed":false},
		{"id":"a","text":"dup","completed":true},
		{"id":"c","text":"bad time","completed":true,"reminderTime":"soon"}
	]`)}

	s := Open(context.Background(), slot)
	tasks := s.List()

	if len(tasks) != 2 {
		t.Fatalf("Expected 2 tasks, got %d: %+v", len(tasks), tasks)
	}
	if tasks[0].ID != "a" || tasks[0].ReminderTime == nil {
		t.Errorf("Unexpected first task: %+v", tasks[0])
	}
	if tasks[1].ID != "c" || tasks[1].ReminderTime != nil || !tasks[1].Completed {
		t.Errorf("Unexpected second task: %+v", tasks[1])
	}
}

func TestOpenSkipsBadlyTypedRecords(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantIDs  []string
		wantRmdr []bool
	}{
		{
			name:     "numeric reminder drops only the reminder",
			data:     `[{"id":"a","text":"keep me"},{"id":"b","text":"ok","reminderTime":12345}]`,
			wantIDs:  []string{"a", "b"},
			wantRmdr: []bool{false, false},
		},
		{
			name:     "string completed skips that record",
			data:     `[{"id":"a","text":"keep me"},{"id":"b","text":"ok","completed":"yes"}]`,
			wantIDs:  []string{"a"},
			wantRmdr: []bool{false},
		},
		{
			name:     "non-object element skips that element",
			data:     `[42,{"id":"a","text":"keep me","reminderTime":null},"x"]`,
			wantIDs:  []string{"a"},
			wantRmdr: []bool{false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reported []*StorageError
			slot := &memSlot{data: []byte(tt.data)}
			s := Open(context.Background(), slot, WithStorageErrorHandler(func(err *StorageError) {
				reported = append(reported, err)
			}))

			tasks := s.List()
			if len(tasks) != len(tt.wantIDs) {
				t.Fatalf("Expected %d tasks, got %d: %+v", len(tt.wantIDs), len(tasks), tasks)
			}
			for i, task := range tasks {
				if task.ID != tt.wantIDs[i] {
					t.Errorf("Task %d: expected id %s, got %s", i, tt.wantIDs[i], task.ID)
				}
				if task.HasReminder() != tt.wantRmdr[i] {
					t.Errorf("Task %d: unexpected reminder %v", i, task.ReminderTime)
				}
			}
			if len(reported) != 0 {
				t.Errorf("Expected no storage errors, got %v", reported)
			}

			// the next save must keep the good records
			if _, err := s.Create("new", nil); err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			reopened := Open(context.Background(), slot)
			if got := len(reopened.List()); got != len(tt.wantIDs)+1 {
				t.Errorf("Expected %d tasks after save, got %d", len(tt.wantIDs)+1, got)
			}
		})
	}
}

func TestSaveFailureKeepsMemoryState(t *testing.T) {
	var reported []*StorageError
	slot := &memSlot{saveErr: errors.New("read-only filesystem")}
	s := Open(context.Background(), slot, WithStorageErrorHandler(func(err *StorageError) {
		reported = append(reported, err)
	}))

	task, err := s.Create("still here", nil)
	if err != nil {
		t.Fatalf("Create should succeed despite storage failure: %v", err)
	}
	if got, err := s.Get(task.ID); err != nil || got.Text != "still here" {
		t.Errorf("Get after failed save = %+v, %v", got, err)
	}
	if len(reported) != 1 || reported[0].Op != "save" {
		t.Errorf("Expected one save error, got %v", reported)
	}
}

func TestEveryMutationPersists(t *testing.T) {
	slot := &memSlot{}
	s := Open(context.Background(), slot)

	task, _ := s.Create("a", nil)
	text := "b"
	s.Update(task.ID, Patch{Text: &text})
	s.ToggleComplete(task.ID)
	s.Delete("unknown")
	s.Delete(task.ID)

	if slot.saves != 4 {
		t.Errorf("Expected 4 saves, got %d", slot.saves)
	}
	if string(slot.data) != "[]" {
		t.Errorf("Expected empty array persisted, got %s", slot.data)
	}
}

func TestReminderRevCountsReminderChanges(t *testing.T) {
	s := newTestStore(t)
	a := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	b := a.Add(time.Hour)
	task, _ := s.Create("a", &a)

	text := "renamed"
	steps := []struct {
		name    string
		patch   Patch
		wantRev uint64
	}{
		{"text only", Patch{Text: &text}, 0},
		{"same reminder", Patch{Reminder: &a}, 0},
		{"moved", Patch{Reminder: &b}, 1},
		{"moved back", Patch{Reminder: &a}, 2},
		{"cleared", Patch{ClearReminder: true}, 3},
		{"cleared again", Patch{ClearReminder: true}, 3},
	}
	for _, step := range steps {
		got, err := s.Update(task.ID, step.patch)
		if err != nil {
			t.Fatalf("%s: update failed: %v", step.name, err)
		}
		if got.ReminderRev != step.wantRev {
			t.Errorf("%s: expected rev %d, got %d", step.name, step.wantRev, got.ReminderRev)
		}
	}
}

func TestListIsSnapshot(t *testing.T) {
	s := newTestStore(t)
	rt := time.Now()
	s.Create("a", &rt)

	snap := s.List()
	snap[0].Text = "mutated"
	*snap[0].ReminderTime = rt.Add(time.Hour)

	got := s.List()[0]
	if got.Text != "a" || !got.ReminderTime.Equal(rt) {
		t.Errorf("Snapshot mutation leaked into store: %+v", got)
	}
}

func TestPersistedFormat(t *testing.T) {
	slot := &memSlot{}
	ids := []string{"id-1"}
	s := Open(context.Background(), slot, WithIDGenerator(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}))

	rt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.Create("Pay rent", &rt)

	want := `[{"id":"id-1","text":"Pay rent","completed":false,"reminderTime":"2026-01-02T03:04:05Z"}]`
	if string(slot.data) != want {
		t.Errorf("Persisted form = %s, want %s", slot.data, want)
	}
	if !models.SameReminder(s.List()[0].ReminderTime, &rt) {
		t.Error("Reminder not kept in memory")
	}
}
