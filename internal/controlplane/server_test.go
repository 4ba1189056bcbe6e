package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/fentz26/chime/internal/alert"
	"github.com/fentz26/chime/internal/lifecycle"
	"github.com/fentz26/chime/internal/models"
	"github.com/fentz26/chime/internal/scheduler"
	"github.com/fentz26/chime/internal/store"
)

type stubAlarm struct {
	status alert.Status
	stops  int
}

func (a *stubAlarm) Status() alert.Status { return a.status }

func (a *stubAlarm) Stop() error {
	a.stops++
	a.status.Playing = false
	return nil
}

type stubStats struct{}

func (stubStats) Stats() scheduler.Stats {
	return scheduler.Stats{Running: true, Interval: "1s", Window: "1m0s", Ticks: 3}
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("disk gone") }

func newTestServer(t *testing.T) (*Server, *stubAlarm) {
	t.Helper()
	slot, err := store.OpenSQLiteSlot(filepath.Join(t.TempDir(), "test.db"), store.DefaultSlotName)
	if err != nil {
		t.Fatalf("open slot: %v", err)
	}
	st := store.Open(context.Background(), slot)
	t.Cleanup(func() { st.Close() })

	alarm := &stubAlarm{status: alert.Status{Playing: true, Permission: alert.PermissionGranted}}
	s := NewServer(lifecycle.NewService(st, alarm), slot, "127.0.0.1:0")
	s.SetAlarm(alarm)
	s.SetScheduler(stubStats{})
	return s, alarm
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeTask(t *testing.T, w *httptest.ResponseRecorder) models.Task {
	t.Helper()
	var task models.Task
	if err := json.NewDecoder(w.Body).Decode(&task); err != nil {
		t.Fatalf("Failed to decode task: %v", err)
	}
	return task
}

func TestHealthEndpoint_OK(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s.Handler(), http.MethodGet, "/health", nil)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var health HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !health.OK {
		t.Error("Expected health.OK to be true")
	}
	if health.DB != "ok" {
		t.Errorf("Expected DB status 'ok', got '%s'", health.DB)
	}
	if health.Version == "" {
		t.Error("Expected version to be set")
	}
}

func TestHealthEndpoint_StorageDown(t *testing.T) {
	s, _ := newTestServer(t)
	s.pinger = failingPinger{}

	w := do(t, s.Handler(), http.MethodGet, "/health", nil)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s.Handler(), http.MethodPost, "/health", nil)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestCreateAndListTasks(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/tasks", TaskRequest{Text: "Pay rent", ReminderTime: "2030-01-02T09:00:00Z"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decodeTask(t, w)
	if created.ID == "" || created.Text != "Pay rent" || created.Completed {
		t.Errorf("Unexpected task: %+v", created)
	}
	want := time.Date(2030, 1, 2, 9, 0, 0, 0, time.UTC)
	if created.ReminderTime == nil || !created.ReminderTime.Equal(want) {
		t.Errorf("Expected reminder %v, got %v", want, created.ReminderTime)
	}

	do(t, h, http.MethodPost, "/tasks", TaskRequest{Text: "Water plants"})

	w = do(t, h, http.MethodGet, "/tasks", nil)
	var tasks []models.Task
	if err := json.NewDecoder(w.Body).Decode(&tasks); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(tasks) != 2 || tasks[0].Text != "Pay rent" || tasks[1].Text != "Water plants" {
		t.Errorf("Unexpected list: %+v", tasks)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		name string
		body interface{}
	}{
		{"blank text", TaskRequest{Text: "   "}},
		{"bad reminder", TaskRequest{Text: "x", ReminderTime: "tomorrow-ish"}},
		{"not json", "just a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/tasks", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestListTasksStatusFilter(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	a := decodeTask(t, do(t, h, http.MethodPost, "/tasks", TaskRequest{Text: "a"}))
	do(t, h, http.MethodPost, "/tasks", TaskRequest{Text: "b"})
	do(t, h, http.MethodPost, "/tasks/"+a.ID+"/toggle", nil)

	var done []models.Task
	json.NewDecoder(do(t, h, http.MethodGet, "/tasks?status=done", nil).Body).Decode(&done)
	if len(done) != 1 || done[0].ID != a.ID {
		t.Errorf("Expected only %s done, got %+v", a.ID, done)
	}

	var open []models.Task
	json.NewDecoder(do(t, h, http.MethodGet, "/tasks?status=open", nil).Body).Decode(&open)
	if len(open) != 1 || open[0].Text != "b" {
		t.Errorf("Expected only b open, got %+v", open)
	}

	if w := do(t, h, http.MethodGet, "/tasks?status=later", nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestTaskByID(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	task := decodeTask(t, do(t, h, http.MethodPost, "/tasks", TaskRequest{Text: "a"}))

	if w := do(t, h, http.MethodGet, "/tasks/"+task.ID, nil); w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/tasks/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	toggled := decodeTask(t, do(t, h, http.MethodPost, "/tasks/"+task.ID+"/toggle", nil))
	if !toggled.Completed {
		t.Error("Expected task to be completed after toggle")
	}
	if w := do(t, h, http.MethodPost, "/tasks/missing/toggle", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestDeleteTask(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	task := decodeTask(t, do(t, h, http.MethodPost, "/tasks", TaskRequest{Text: "a"}))

	if w := do(t, h, http.MethodDelete, "/tasks/"+task.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
	if w := do(t, h, http.MethodDelete, "/tasks/"+task.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("Expected repeated delete to return 204, got %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/tasks/"+task.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", w.Code)
	}
}

func TestEditFlow(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	task := decodeTask(t, do(t, h, http.MethodPost, "/tasks", TaskRequest{Text: "draft", ReminderTime: "2030-01-02T09:00:00Z"}))

	if w := do(t, h, http.MethodGet, "/edit", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 with no session, got %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/edit/save", TaskRequest{Text: "x"}); w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 with no session, got %d", w.Code)
	}

	w := do(t, h, http.MethodPost, "/tasks/"+task.ID+"/edit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var session lifecycle.EditSession
	if err := json.NewDecoder(w.Body).Decode(&session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.TaskID != task.ID || session.Text != "draft" {
		t.Errorf("Unexpected session: %+v", session)
	}

	if w := do(t, h, http.MethodPost, "/edit/save", TaskRequest{Text: " "}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for blank edit, got %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/edit", nil); w.Code != http.StatusOK {
		t.Errorf("Expected session to survive a validation error, got %d", w.Code)
	}

	saved := decodeTask(t, do(t, h, http.MethodPost, "/edit/save", TaskRequest{Text: "final"}))
	if saved.Text != "final" {
		t.Errorf("Expected text 'final', got %q", saved.Text)
	}
	if saved.ReminderTime != nil {
		t.Errorf("Expected reminder cleared, got %v", saved.ReminderTime)
	}
	if w := do(t, h, http.MethodGet, "/edit", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected session to end after save, got %d", w.Code)
	}
}

func TestEditCancel(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	task := decodeTask(t, do(t, h, http.MethodPost, "/tasks", TaskRequest{Text: "keep"}))
	do(t, h, http.MethodPost, "/tasks/"+task.ID+"/edit", nil)

	if w := do(t, h, http.MethodPost, "/edit/cancel", nil); w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/edit", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected no session after cancel, got %d", w.Code)
	}

	got := decodeTask(t, do(t, h, http.MethodGet, "/tasks/"+task.ID, nil))
	if got.Text != "keep" {
		t.Errorf("Expected text unchanged, got %q", got.Text)
	}
}

func TestAlarmEndpoints(t *testing.T) {
	s, alarm := newTestServer(t)
	h := s.Handler()

	var status alert.Status
	json.NewDecoder(do(t, h, http.MethodGet, "/alarm", nil).Body).Decode(&status)
	if !status.Playing {
		t.Error("Expected alarm to report playing")
	}

	if w := do(t, h, http.MethodPost, "/alarm/stop", nil); w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if alarm.stops != 1 {
		t.Errorf("Expected 1 stop, got %d", alarm.stops)
	}
	if w := do(t, h, http.MethodGet, "/alarm/stop", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestSchedulerEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s.Handler(), http.MethodGet, "/scheduler", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var stats scheduler.Stats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if !stats.Running || stats.Ticks != 3 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}
