// Package alert turns due reminders into a desktop notification and a
// looping audible alarm.
package alert

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fentz26/chime/internal/models"
)

// DefaultTitle is the notification title used when none is configured.
const DefaultTitle = "Todo Reminder"

// notifyTimeout bounds a single notification submission.
const notifyTimeout = 5 * time.Second

// Permission is the host's answer to the notification permission request.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Notifier submits user-facing notifications.
type Notifier interface {
	RequestPermission(ctx context.Context) (Permission, error)
	Notify(ctx context.Context, title, body string) error
}

// Player is the single loopable alarm sound.
type Player interface {
	// Play starts looping from the beginning and returns immediately.
	Play() error
	// Stop halts playback and rewinds. Stopping a silent player is a no-op.
	Stop() error
}

// liveness is implemented by players whose loop can end on its own.
type liveness interface {
	Playing() bool
}

// Alert describes the last fired reminder.
type Alert struct {
	TaskID  string    `json:"task_id"`
	Text    string    `json:"text"`
	FiredAt time.Time `json:"fired_at"`
}

// Status is a point-in-time view of the dispatcher.
type Status struct {
	Playing    bool       `json:"playing"`
	Permission Permission `json:"permission"`
	LastAlert  *Alert     `json:"last_alert,omitempty"`
}

// Dispatcher fires alerts. It knows nothing about the task store.
type Dispatcher struct {
	notifier Notifier
	player   Player
	title    string

	mu         sync.Mutex
	playing    bool
	permission Permission
	lastAlert  *Alert

	now func() time.Time
}

// NewDispatcher creates a dispatcher. An empty title uses DefaultTitle.
func NewDispatcher(n Notifier, p Player, title string) *Dispatcher {
	if title == "" {
		title = DefaultTitle
	}
	return &Dispatcher{
		notifier:   n,
		player:     p,
		title:      title,
		permission: PermissionDefault,
		now:        time.Now,
	}
}

// Init requests notification permission. Denial or failure is logged and
// degrades to audio-only alerts.
func (d *Dispatcher) Init(ctx context.Context) {
	perm, err := d.notifier.RequestPermission(ctx)
	if err != nil {
		log.Printf("Notification permission request failed: %v (audio only)", err)
		perm = PermissionDenied
	}
	if perm != PermissionGranted {
		log.Printf("Notifications %s, alerts will be audio only", perm)
	}

	d.mu.Lock()
	d.permission = perm
	d.mu.Unlock()
}

// Fire starts the alarm unless it is already playing, then sends one
// notification for the task when permission was granted.
func (d *Dispatcher) Fire(ctx context.Context, task models.Task) error {
	d.mu.Lock()
	d.syncPlayingLocked()
	if !d.playing {
		if err := d.player.Play(); err != nil {
			log.Printf("Alarm playback failed: %v", err)
		} else {
			d.playing = true
		}
	}
	d.lastAlert = &Alert{TaskID: task.ID, Text: task.Text, FiredAt: d.now()}
	perm := d.permission
	d.mu.Unlock()

	if perm != PermissionGranted {
		return nil
	}

	nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := d.notifier.Notify(nctx, d.title, task.Text); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// Stop halts and rewinds the alarm. It is a no-op when nothing is playing.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.playing {
		return nil
	}
	d.playing = false
	if err := d.player.Stop(); err != nil {
		return fmt.Errorf("stop alarm: %w", err)
	}
	return nil
}

// Status returns the current dispatcher state.
func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.syncPlayingLocked()
	st := Status{Playing: d.playing, Permission: d.permission}
	if d.lastAlert != nil {
		a := *d.lastAlert
		st.LastAlert = &a
	}
	return st
}

// syncPlayingLocked drops the playing flag when the player has stopped by
// itself, for example after an output error.
func (d *Dispatcher) syncPlayingLocked() {
	if !d.playing {
		return
	}
	if lp, ok := d.player.(liveness); ok && !lp.Playing() {
		log.Printf("Alarm ended without a stop request")
		d.playing = false
	}
}
