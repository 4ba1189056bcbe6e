package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fentz26/chime/internal/alert"
	"github.com/fentz26/chime/internal/controlplane"
	"github.com/fentz26/chime/internal/lifecycle"
	"github.com/fentz26/chime/internal/models"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}

// Client wraps HTTP calls to the Chime API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// ListTasks fetches tasks from the API. status is "", "open" or "done".
func (c *Client) ListTasks(status string) ([]models.Task, error) {
	path := "/tasks"
	if status != "" {
		path += "?status=" + status
	}

	var tasks []models.Task
	if err := c.do(http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTask adds a task. at may be empty for no reminder.
func (c *Client) CreateTask(text, at string) (models.Task, error) {
	var task models.Task
	err := c.do(http.MethodPost, "/tasks", controlplane.TaskRequest{Text: text, ReminderTime: at}, &task)
	return task, err
}

// ToggleTask flips a task's completion flag.
func (c *Client) ToggleTask(id string) (models.Task, error) {
	var task models.Task
	err := c.do(http.MethodPost, "/tasks/"+id+"/toggle", nil, &task)
	return task, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(id string) error {
	return c.do(http.MethodDelete, "/tasks/"+id, nil, nil)
}

// BeginEdit opens the daemon's edit session for a task.
func (c *Client) BeginEdit(id string) (lifecycle.EditSession, error) {
	var session lifecycle.EditSession
	err := c.do(http.MethodPost, "/tasks/"+id+"/edit", nil, &session)
	return session, err
}

// SaveEdit commits the open edit session. An empty at clears the reminder.
func (c *Client) SaveEdit(text, at string) (models.Task, error) {
	var task models.Task
	err := c.do(http.MethodPost, "/edit/save", controlplane.TaskRequest{Text: text, ReminderTime: at}, &task)
	return task, err
}

// CancelEdit discards the open edit session.
func (c *Client) CancelEdit() error {
	return c.do(http.MethodPost, "/edit/cancel", nil, nil)
}

// AlarmStatus fetches the dispatcher state.
func (c *Client) AlarmStatus() (alert.Status, error) {
	var status alert.Status
	err := c.do(http.MethodGet, "/alarm", nil, &status)
	return status, err
}

// StopAlarm silences the alarm.
func (c *Client) StopAlarm() error {
	return c.do(http.MethodPost, "/alarm/stop", nil, nil)
}

// CheckHealth checks if the daemon is healthy
func (c *Client) CheckHealth() (bool, error) {
	var health controlplane.HealthResponse
	if err := c.do(http.MethodGet, "/health", nil, &health); err != nil {
		return false, err
	}
	return health.OK, nil
}

func (c *Client) do(method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(data))}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
