// Package scheduler provides the reminder scanner that detects due reminders.
package scheduler

import (
	"fmt"
	"time"
)

// Config defines the scanner cadence and due window.
type Config struct {
	// Interval is the time between scans.
	Interval time.Duration `yaml:"interval"`
	// Window is how late a reminder may be observed and still fire.
	Window time.Duration `yaml:"window"`
}

// DefaultConfig returns the default scanner configuration.
func DefaultConfig() *Config {
	return &Config{
		Interval: 1 * time.Second,
		Window:   60 * time.Second,
	}
}

// Validate checks that the interval fits inside the window.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", c.Interval)
	}
	if c.Window <= 0 {
		return fmt.Errorf("scheduler window must be positive, got %s", c.Window)
	}
	if c.Interval >= c.Window {
		return fmt.Errorf("scheduler interval %s must be shorter than window %s", c.Interval, c.Window)
	}
	return nil
}
