package tui

import (
	"strings"
	"time"

	"github.com/fentz26/chime/internal/alert"
	"github.com/fentz26/chime/internal/lifecycle"
	"github.com/fentz26/chime/internal/models"
)

type commandResultMsg struct {
	message string
}

type errMsg struct {
	err error
}

type tasksLoadedMsg struct {
	tasks []models.Task
}

type daemonStatusMsg struct {
	online bool
}

type alarmStatusMsg struct {
	status alert.Status
}

type editStartedMsg struct {
	session lifecycle.EditSession
}

type editSavedMsg struct {
	task models.Task
}

// editFailedMsg keeps the edit form open when the input can be corrected.
type editFailedMsg struct {
	err      error
	keepOpen bool
}

type tickMsg time.Time

// parseAdd splits "add" arguments of the form "<text> @ <time>".
func parseAdd(args string) (text, at string) {
	idx := strings.LastIndex(args, " @ ")
	if idx < 0 {
		return strings.TrimSpace(args), ""
	}
	return strings.TrimSpace(args[:idx]), strings.TrimSpace(args[idx+3:])
}

// reminderInput formats a reminder for the edit form's time field.
func reminderInput(t *time.Time) string {
	if t == nil {
		return ""
	}
	if t.Second() != 0 || t.Nanosecond() != 0 {
		return models.FormatReminderTime(t)
	}
	return t.Local().Format("2006-01-02 15:04")
}
