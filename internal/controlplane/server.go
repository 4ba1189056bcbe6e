// Package controlplane provides the local HTTP API for Chime.
package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/fentz26/chime/internal/alert"
	"github.com/fentz26/chime/internal/lifecycle"
	"github.com/fentz26/chime/internal/models"
	"github.com/fentz26/chime/internal/scheduler"
)

// Version is reported by the health endpoint.
const Version = "0.3.0"

// Pinger checks the storage backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AlarmReporter exposes the alert dispatcher state.
type AlarmReporter interface {
	Status() alert.Status
}

// StatsReporter exposes reminder scanner statistics.
type StatsReporter interface {
	Stats() scheduler.Stats
}

// Server provides the HTTP API for Chime.
type Server struct {
	service   *lifecycle.Service
	pinger    Pinger
	alarm     AlarmReporter
	scheduler StatsReporter
	addr      string
	server    *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(service *lifecycle.Service, pinger Pinger, addr string) *Server {
	return &Server{
		service: service,
		pinger:  pinger,
		addr:    addr,
	}
}

// SetAlarm wires the dispatcher for GET /alarm.
func (s *Server) SetAlarm(a AlarmReporter) {
	s.alarm = a
}

// SetScheduler wires the scanner for GET /scheduler.
func (s *Server) SetScheduler(sch StatsReporter) {
	s.scheduler = sch
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/tasks", s.handleTasks)
	mux.HandleFunc("/tasks/", s.handleTaskByID)
	mux.HandleFunc("/edit", s.handleEdit)
	mux.HandleFunc("/edit/", s.handleEditAction)
	mux.HandleFunc("/alarm", s.handleAlarm)
	mux.HandleFunc("/alarm/stop", s.handleAlarmStop)
	mux.HandleFunc("/scheduler", s.handleScheduler)

	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("Starting Chime daemon on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			health.OK = false
			health.DB = fmt.Sprintf("error: %v", err)
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, health)
}

// handleTasks handles POST /tasks and GET /tasks
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createTask(w, r)
	case http.MethodGet:
		s.listTasks(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleTaskByID handles /tasks/{id} and /tasks/{id}/{action}
func (s *Server) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/tasks/")
	parts := strings.Split(path, "/")

	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "task id required", http.StatusBadRequest)
		return
	}

	taskID := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getTask(w, taskID)
	case action == "" && r.Method == http.MethodDelete:
		s.deleteTask(w, taskID)
	case action == "toggle" && r.Method == http.MethodPost:
		s.toggleTask(w, taskID)
	case action == "edit" && r.Method == http.MethodPost:
		s.beginEdit(w, taskID)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// --- Task Handlers ---

// TaskRequest is the body for creating a task or saving an edit.
// An empty reminder_time means no reminder.
type TaskRequest struct {
	Text         string `json:"text"`
	ReminderTime string `json:"reminder_time"`
}

func decodeTaskRequest(r *http.Request) (string, *time.Time, error) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", nil, ErrInvalidJSON
	}
	rt, err := models.ParseReminderTime(req.ReminderTime)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadReminder, err)
	}
	return req.Text, rt, nil
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	text, rt, err := decodeTaskRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	task, err := s.service.Create(text, rt)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && status != "open" && status != "done" {
		http.Error(w, "status must be open or done", http.StatusBadRequest)
		return
	}

	tasks := make([]models.Task, 0)
	for _, t := range s.service.List() {
		if (status == "open" && t.Completed) || (status == "done" && !t.Completed) {
			continue
		}
		tasks = append(tasks, t)
	}

	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) getTask(w http.ResponseWriter, taskID string) {
	task, err := s.service.Get(taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) deleteTask(w http.ResponseWriter, taskID string) {
	if err := s.service.Delete(taskID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleTask(w http.ResponseWriter, taskID string) {
	task, err := s.service.Toggle(taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// --- Edit Handlers ---

func (s *Server) beginEdit(w http.ResponseWriter, taskID string) {
	session, err := s.service.BeginEdit(taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleEdit handles GET /edit
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	session, ok := s.service.CurrentEdit()
	if !ok {
		http.Error(w, lifecycle.ErrNoEditSession.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleEditAction handles POST /edit/save and POST /edit/cancel
func (s *Server) handleEditAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch strings.TrimPrefix(r.URL.Path, "/edit/") {
	case "save":
		text, rt, err := decodeTaskRequest(r)
		if err != nil {
			writeError(w, err)
			return
		}
		task, err := s.service.SaveEdit(text, rt)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	case "cancel":
		s.service.CancelEdit()
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// --- Alarm and Scheduler Handlers ---

func (s *Server) handleAlarm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.alarm == nil {
		http.Error(w, "alarm not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.alarm.Status())
}

func (s *Server) handleAlarmStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.service.StopAlarm(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleScheduler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.scheduler == nil {
		http.Error(w, "scheduler not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.scheduler.Stats())
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
	}
	http.Error(w, err.Error(), status)
}
