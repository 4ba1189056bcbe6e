// Package models defines the core domain types for Chime.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Task is a single to-do item with an optional reminder.
type Task struct {
	ID           string     `json:"id"`
	Text         string     `json:"text"`
	Completed    bool       `json:"completed"`
	ReminderTime *time.Time `json:"reminder_time,omitempty"`
	// ReminderRev counts reminder edits within this process. Not persisted.
	ReminderRev uint64 `json:"-"`
}

// HasReminder reports whether the task carries a reminder time.
func (t Task) HasReminder() bool {
	return t.ReminderTime != nil
}

// Clone returns a deep copy of the task. The reminder pointer is never shared.
func (t Task) Clone() Task {
	if t.ReminderTime != nil {
		rt := *t.ReminderTime
		t.ReminderTime = &rt
	}
	return t
}

// reminderLayouts are tried in order. Zone-less layouts are read in local time,
// which is what an HTML datetime-local input produces.
var reminderLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseReminderTime parses a user or storage supplied reminder timestamp.
// An empty (or blank) string means no reminder and returns nil, nil.
func ParseReminderTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &t, nil
	}
	for _, layout := range reminderLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid reminder time %q", s)
}

// FormatReminderTime renders a reminder for storage and the wire.
func FormatReminderTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// SameReminder reports whether two optional reminder values denote the same instant.
func SameReminder(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
