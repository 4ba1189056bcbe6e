package alert

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/fentz26/chime/internal/connectors"
)

// looper runs one background loop at a time and tears it down on stop.
type looper struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (l *looper) start(run func(ctx context.Context)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done

	go func() {
		defer close(done)
		run(ctx)
		cancel()

		// A loop that ends on its own must not look active.
		l.mu.Lock()
		if l.done == done {
			l.cancel, l.done = nil, nil
		}
		l.mu.Unlock()
	}()
}

func (l *looper) stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (l *looper) active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

// BellPlayer rings the terminal bell on a fixed cadence.
type BellPlayer struct {
	w        io.Writer
	interval time.Duration
	loop     looper
}

// NewBellPlayer writes BEL to w every interval while playing.
func NewBellPlayer(w io.Writer, interval time.Duration) *BellPlayer {
	if interval <= 0 {
		interval = time.Second
	}
	return &BellPlayer{w: w, interval: interval}
}

// Play starts ringing immediately.
func (p *BellPlayer) Play() error {
	p.loop.start(func(ctx context.Context) {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			if _, err := io.WriteString(p.w, "\a"); err != nil {
				log.Printf("Bell write failed: %v", err)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})
	return nil
}

// Stop silences the bell.
func (p *BellPlayer) Stop() error {
	p.loop.stop()
	return nil
}

// Playing reports whether the bell loop is active.
func (p *BellPlayer) Playing() bool {
	return p.loop.active()
}

// CommandPlayer loops a sound file through a host audio player.
// Each pass starts the file from the beginning, so Stop also rewinds.
type CommandPlayer struct {
	conn  connectors.Connector
	bin   string
	sound string
	retry time.Duration
	loop  looper
}

// audioPlayers is the preference order for host audio binaries.
var audioPlayers = []string{"paplay", "afplay", "aplay"}

// NewCommandPlayer picks the first available audio binary.
func NewCommandPlayer(conn connectors.Connector, sound string) (*CommandPlayer, error) {
	if sound == "" {
		return nil, fmt.Errorf("no alarm sound configured")
	}
	for _, bin := range audioPlayers {
		if conn.Available(bin) {
			return &CommandPlayer{conn: conn, bin: bin, sound: sound, retry: time.Second}, nil
		}
	}
	return nil, fmt.Errorf("no audio player found (tried %v)", audioPlayers)
}

// Play starts the playback loop.
func (p *CommandPlayer) Play() error {
	p.loop.start(func(ctx context.Context) {
		for ctx.Err() == nil {
			res, err := p.conn.Execute(ctx, p.bin, []string{p.sound})
			if ctx.Err() != nil {
				return
			}
			if err != nil || res.ExitCode != 0 {
				if err == nil {
					err = fmt.Errorf("exit code %d: %s", res.ExitCode, res.Stderr)
				}
				log.Printf("Alarm playback via %s failed: %v", p.bin, err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(p.retry):
				}
			}
		}
	})
	return nil
}

// Stop kills the current pass and ends the loop.
func (p *CommandPlayer) Stop() error {
	p.loop.stop()
	return nil
}

// Playing reports whether the playback loop is active.
func (p *CommandPlayer) Playing() bool {
	return p.loop.active()
}

// MutePlayer is used when audio is disabled. Alerts still notify.
type MutePlayer struct{}

// Play does nothing.
func (MutePlayer) Play() error { return nil }

// Stop does nothing.
func (MutePlayer) Stop() error { return nil }
