package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fentz26/chime/internal/models"
)

// Snapshotter provides a copied view of the task collection.
type Snapshotter interface {
	List() []models.Task
}

// Alerter is told about each newly due task.
type Alerter interface {
	Fire(ctx context.Context, task models.Task) error
}

// Stats is a point-in-time view of scanner activity.
type Stats struct {
	Running  bool      `json:"running"`
	Interval string    `json:"interval"`
	Window   string    `json:"window"`
	Ticks    int       `json:"ticks"`
	Fired    int       `json:"fired"`
	Tracked  int       `json:"tracked"`
	LastTick time.Time `json:"last_tick"`
}

// firedEntry is the reminder value and revision a task already fired for.
type firedEntry struct {
	at  time.Time
	rev uint64
}

func (e firedEntry) matches(task models.Task) bool {
	return task.ReminderTime != nil && e.rev == task.ReminderRev && e.at.Equal(*task.ReminderTime)
}

// Scanner polls the task collection and fires each reminder once.
type Scanner struct {
	source  Snapshotter
	alerter Alerter
	config  *Config

	mu       sync.Mutex
	fired    map[string]firedEntry
	ticks    int
	nfired   int
	lastTick time.Time
	running  bool

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Test hook
	now func() time.Time
}

// New creates a new scanner. A nil cfg uses DefaultConfig.
func New(source Snapshotter, alerter Alerter, cfg *Config) *Scanner {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scanner{
		source:  source,
		alerter: alerter,
		config:  cfg,
		fired:   make(map[string]firedEntry),
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
	}
}

// Start begins the scan loop. Calling it again while running does nothing.
func (s *Scanner) Start() {
	s.mu.Lock()
	if s.running || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()
	log.Printf("Reminder scanner started (interval %s, window %s)", s.config.Interval, s.config.Window)
}

// Stop cancels the loop and waits for it to exit. It is safe to call
// more than once, and before Start.
func (s *Scanner) Stop() {
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	if wasRunning {
		log.Println("Reminder scanner stopped")
	}
}

// loop ticks until the context is cancelled.
func (s *Scanner) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.scan(s.now())
		}
	}
}

// scan checks one snapshot against now and fires every newly due task.
func (s *Scanner) scan(now time.Time) {
	tasks := s.source.List()

	s.mu.Lock()
	s.ticks++
	s.lastTick = now
	s.prune(tasks)
	s.mu.Unlock()

	for _, task := range tasks {
		if !s.isDue(task, now) {
			continue
		}

		s.mu.Lock()
		last, seen := s.fired[task.ID]
		alreadyFired := seen && last.matches(task)
		s.mu.Unlock()
		if alreadyFired {
			continue
		}

		log.Printf("Reminder due for task %s (%q)", task.ID, task.Text)
		if err := s.alerter.Fire(s.ctx, task); err != nil {
			log.Printf("Error firing alert for task %s: %v", task.ID, err)
		}

		s.mu.Lock()
		s.fired[task.ID] = firedEntry{at: *task.ReminderTime, rev: task.ReminderRev}
		s.nfired++
		s.mu.Unlock()
	}
}

// isDue reports whether the reminder has passed but by less than the window.
func (s *Scanner) isDue(task models.Task, now time.Time) bool {
	if task.Completed || task.ReminderTime == nil {
		return false
	}
	elapsed := now.Sub(*task.ReminderTime)
	return elapsed >= 0 && elapsed < s.config.Window
}

// prune drops entries for deleted tasks and for reminders that were edited
// or cleared since they fired, even if edited back to the same value.
// Caller must hold s.mu.
func (s *Scanner) prune(tasks []models.Task) {
	if len(s.fired) == 0 {
		return
	}
	current := make(map[string]models.Task, len(tasks))
	for _, t := range tasks {
		current[t.ID] = t
	}
	for id, last := range s.fired {
		task, ok := current[id]
		if !ok || !last.matches(task) {
			delete(s.fired, id)
		}
	}
}

// Stats returns current scanner statistics.
func (s *Scanner) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Running:  s.running,
		Interval: s.config.Interval.String(),
		Window:   s.config.Window.String(),
		Ticks:    s.ticks,
		Fired:    s.nfired,
		Tracked:  len(s.fired),
		LastTick: s.lastTick,
	}
}
