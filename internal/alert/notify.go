package alert

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/chime/internal/connectors"
)

var (
	bannerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#F9FAFB")).
				Background(lipgloss.Color("#7C3AED")).
				Padding(0, 1)

	bannerBodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	bannerTimeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

// WriterNotifier prints notifications to a terminal or log stream.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier writes to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

// RequestPermission always grants; writing to our own stream needs no consent.
func (n *WriterNotifier) RequestPermission(ctx context.Context) (Permission, error) {
	return PermissionGranted, nil
}

// Notify writes a single styled line.
func (n *WriterNotifier) Notify(ctx context.Context, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	line := fmt.Sprintf("%s %s %s\n",
		bannerTitleStyle.Render("🔔 "+title),
		bannerBodyStyle.Render(body),
		bannerTimeStyle.Render(time.Now().Format("15:04:05")),
	)
	_, err := io.WriteString(n.w, line)
	return err
}

// CommandNotifier posts desktop notifications through host binaries.
type CommandNotifier struct {
	conn connectors.Connector
	goos string
}

// NewCommandNotifier uses notify-send on Linux and osascript on macOS.
func NewCommandNotifier(conn connectors.Connector) *CommandNotifier {
	return &CommandNotifier{conn: conn, goos: runtime.GOOS}
}

func (n *CommandNotifier) binary() string {
	switch n.goos {
	case "darwin":
		return "osascript"
	case "linux", "freebsd", "openbsd", "netbsd":
		return "notify-send"
	default:
		return ""
	}
}

// RequestPermission grants when the platform notifier is installed.
func (n *CommandNotifier) RequestPermission(ctx context.Context) (Permission, error) {
	bin := n.binary()
	if bin == "" {
		return PermissionDenied, fmt.Errorf("desktop notifications unsupported on %s", n.goos)
	}
	if !n.conn.Available(bin) {
		return PermissionDenied, nil
	}
	return PermissionGranted, nil
}

// Notify submits the notification without waiting for acknowledgment.
func (n *CommandNotifier) Notify(ctx context.Context, title, body string) error {
	bin := n.binary()

	var args []string
	switch bin {
	case "osascript":
		script := fmt.Sprintf("display notification %s with title %s", appleScriptQuote(body), appleScriptQuote(title))
		args = []string{"-e", script}
	case "notify-send":
		args = []string{"--app-name=chime", title, body}
	default:
		return fmt.Errorf("desktop notifications unsupported on %s", n.goos)
	}

	res, err := n.conn.Execute(ctx, bin, args)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%s exited %d: %s", bin, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func appleScriptQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// FallbackNotifier uses primary when it is permitted and fallback otherwise.
// The choice is made once, in RequestPermission.
type FallbackNotifier struct {
	primary  Notifier
	fallback Notifier

	mu     sync.Mutex
	active Notifier
}

// NewFallbackNotifier prefers primary.
func NewFallbackNotifier(primary, fallback Notifier) *FallbackNotifier {
	return &FallbackNotifier{primary: primary, fallback: fallback}
}

// RequestPermission asks primary first and falls back on denial or error.
func (n *FallbackNotifier) RequestPermission(ctx context.Context) (Permission, error) {
	perm, err := n.primary.RequestPermission(ctx)
	if err == nil && perm == PermissionGranted {
		n.setActive(n.primary)
		return perm, nil
	}

	n.setActive(n.fallback)
	return n.fallback.RequestPermission(ctx)
}

// Notify sends through whichever notifier was selected.
func (n *FallbackNotifier) Notify(ctx context.Context, title, body string) error {
	n.mu.Lock()
	active := n.active
	n.mu.Unlock()

	if active == nil {
		return fmt.Errorf("notification permission not requested")
	}
	return active.Notify(ctx, title, body)
}

func (n *FallbackNotifier) setActive(active Notifier) {
	n.mu.Lock()
	n.active = active
	n.mu.Unlock()
}
