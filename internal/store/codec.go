package store

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fentz26/chime/internal/models"
)

// record is the persisted shape of a task. Field names match the browser
// local-storage format so existing exports load unchanged.
type record struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	Completed    bool   `json:"completed"`
	ReminderTime string `json:"reminderTime,omitempty"`
}

func encodeTasks(tasks []models.Task) ([]byte, error) {
	records := make([]record, len(tasks))
	for i, t := range tasks {
		records[i] = record{
			ID:           t.ID,
			Text:         t.Text,
			Completed:    t.Completed,
			ReminderTime: models.FormatReminderTime(t.ReminderTime),
		}
	}
	return json.Marshal(records)
}

// storedRecord is read leniently: the reminder is kept raw so a value of
// the wrong type only costs the reminder, not the task.
type storedRecord struct {
	ID           string          `json:"id"`
	Text         string          `json:"text"`
	Completed    bool            `json:"completed"`
	ReminderTime json.RawMessage `json:"reminderTime"`
}

// decodeTasks rebuilds the collection. A slot that is not a JSON array is an
// error; each element is decoded on its own, bad records are skipped and an
// unparseable reminder is dropped.
func decodeTasks(data []byte) ([]models.Task, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}

	seen := make(map[string]bool, len(elems))
	tasks := make([]models.Task, 0, len(elems))
	for i, elem := range elems {
		var r storedRecord
		if err := json.Unmarshal(elem, &r); err != nil {
			log.Printf("Skipping stored task #%d: %v", i, err)
			continue
		}
		if r.ID == "" || strings.TrimSpace(r.Text) == "" {
			log.Printf("Skipping stored task #%d: missing id or text", i)
			continue
		}
		if seen[r.ID] {
			log.Printf("Skipping stored task #%d: duplicate id %s", i, r.ID)
			continue
		}
		seen[r.ID] = true

		task := models.Task{ID: r.ID, Text: r.Text, Completed: r.Completed}
		rt, err := decodeReminder(r.ReminderTime)
		if err != nil {
			log.Printf("Dropping reminder of stored task %s: %v", r.ID, err)
		} else {
			task.ReminderTime = rt
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// decodeReminder accepts a missing, null or string reminder.
func decodeReminder(raw json.RawMessage) (*time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("reminder is not a string: %s", raw)
	}
	return models.ParseReminderTime(s)
}
