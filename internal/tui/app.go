// Package tui provides the interactive terminal UI for Chime.
package tui

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/chime/internal/alert"
	"github.com/fentz26/chime/internal/lifecycle"
	"github.com/fentz26/chime/internal/models"
)

var (
	// Colors
	accentColor    = lipgloss.Color("#F59E0B")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)

	taskItemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	doneItemStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(mutedColor).
			Strikethrough(true)

	selectedStyle = lipgloss.NewStyle().
			Background(accentColor).
			Foreground(lipgloss.Color("#111827")).
			Bold(true).
			Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	alarmStyle = lipgloss.NewStyle().
			Background(errorColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 1)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

const (
	modeList = "list"
	modeEdit = "edit"
)

// App is the main TUI application model.
type App struct {
	client       *Client
	tasks        []models.Task
	selectedIdx  int
	input        textinput.Model
	editText     textinput.Model
	editAt       textinput.Model
	editFocus    int
	editing      *lifecycle.EditSession
	viewport     viewport.Model
	width        int
	height       int
	mode         string
	message      string
	filterIdx    int
	loading      bool
	daemonOnline bool
	alarm        alert.Status
	suggestions  *Suggestions
}

var filters = []string{"", "open", "done"}
var filterNames = []string{"ALL", "OPEN", "DONE"}

// New creates a new TUI application.
func New(apiAddr string) *App {
	ti := textinput.New()
	ti.Placeholder = "Type: add <text> @ 2025-03-01 09:00 | done | edit | rm | stop  (/ for commands)"
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 80

	text := textinput.New()
	text.Placeholder = "What needs doing?"
	text.CharLimit = 256
	text.Width = 60

	at := textinput.New()
	at.Placeholder = "YYYY-MM-DD HH:MM (empty for no reminder)"
	at.CharLimit = 64
	at.Width = 40

	return &App{
		client:      NewClient(apiAddr),
		input:       ti,
		editText:    text,
		editAt:      at,
		viewport:    viewport.New(80, 20),
		mode:        modeList,
		loading:     true,
		suggestions: NewSuggestions(),
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.fetchTasks(),
		a.checkDaemon(),
		a.fetchAlarm(),
		a.tickCmd(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.mode == modeEdit {
			return a, a.updateEdit(msg)
		}

		switch msg.String() {
		case "s":
			if a.alarm.Playing && a.input.Value() == "" {
				return a, a.stopAlarm()
			}

		case "up":
			if a.suggestions.IsVisible() {
				a.suggestions.Prev()
			} else if a.selectedIdx > 0 {
				a.selectedIdx--
				a.syncViewport()
			}
			return a, nil

		case "down":
			if a.suggestions.IsVisible() {
				a.suggestions.Next()
			} else if a.selectedIdx < len(a.tasks)-1 {
				a.selectedIdx++
				a.syncViewport()
			}
			return a, nil

		case "tab":
			if a.acceptSuggestion() {
				return a, nil
			}
			a.filterIdx = (a.filterIdx + 1) % len(filters)
			return a, a.fetchTasks()

		case "enter":
			if a.acceptSuggestion() {
				return a, nil
			}
			cmd := strings.TrimSpace(a.input.Value())
			if cmd != "" {
				a.input.SetValue("")
				a.suggestions.Update("")
				return a, a.executeCommand(cmd)
			}
			if task, ok := a.selected(); ok {
				return a, a.toggleTask(task)
			}
			return a, nil
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 4
		a.viewport.Width = msg.Width
		a.viewport.Height = max(5, msg.Height-10)
		a.syncViewport()

	case tasksLoadedMsg:
		a.loading = false
		a.tasks = msg.tasks
		if a.selectedIdx >= len(a.tasks) {
			a.selectedIdx = max(0, len(a.tasks)-1)
		}
		a.syncViewport()

	case daemonStatusMsg:
		a.daemonOnline = msg.online

	case alarmStatusMsg:
		a.daemonOnline = true
		a.alarm = msg.status

	case tickMsg:
		cmds = append(cmds, a.fetchAlarm(), a.tickCmd())
		if a.mode == modeList {
			cmds = append(cmds, a.fetchTasks())
		}

	case editStartedMsg:
		return a, a.openEditor(msg.session)

	case editSavedMsg:
		a.closeEditor()
		a.message = fmt.Sprintf("✓ Saved %q", msg.task.Text)
		return a, a.fetchTasks()

	case editFailedMsg:
		a.message = "Error: " + msg.err.Error()
		if !msg.keepOpen {
			a.closeEditor()
			return a, a.fetchTasks()
		}
		return a, nil

	case commandResultMsg:
		a.message = msg.message
		return a, tea.Batch(a.fetchTasks(), a.fetchAlarm())

	case errMsg:
		a.message = "Error: " + msg.err.Error()
		var apiErr *APIError
		if !errors.As(msg.err, &apiErr) {
			a.daemonOnline = false
		}
	}

	// Route everything else to the active input.
	var cmd tea.Cmd
	if a.mode == modeEdit {
		cmd = a.updateEditInputs(msg)
	} else {
		a.input, cmd = a.input.Update(msg)
		a.suggestions.Update(a.input.Value())
	}
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

func (a *App) acceptSuggestion() bool {
	if !a.suggestions.IsVisible() {
		return false
	}
	if selected := a.suggestions.Selected(); selected != nil {
		a.input.SetValue(selected.Text + " ")
		a.input.CursorEnd()
	}
	a.suggestions.Update("")
	return true
}

func (a *App) selected() (models.Task, bool) {
	if a.selectedIdx < 0 || a.selectedIdx >= len(a.tasks) {
		return models.Task{}, false
	}
	return a.tasks[a.selectedIdx], true
}

// --- Edit mode ---

func (a *App) openEditor(session lifecycle.EditSession) tea.Cmd {
	a.mode = modeEdit
	a.editing = &session
	a.editText.SetValue(session.Text)
	a.editText.CursorEnd()
	a.editAt.SetValue(reminderInput(session.ReminderTime))
	a.editFocus = 0
	a.input.Blur()
	a.editAt.Blur()
	a.message = ""
	return a.editText.Focus()
}

func (a *App) closeEditor() {
	a.mode = modeList
	a.editing = nil
	a.editText.Blur()
	a.editAt.Blur()
	a.input.Focus()
}

func (a *App) updateEdit(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		a.closeEditor()
		a.message = "Edit cancelled"
		return a.cancelEdit()

	case "tab", "shift+tab", "up", "down":
		a.editFocus = 1 - a.editFocus
		if a.editFocus == 0 {
			a.editAt.Blur()
			return a.editText.Focus()
		}
		a.editText.Blur()
		return a.editAt.Focus()

	case "enter":
		return a.saveEdit(a.editText.Value(), strings.TrimSpace(a.editAt.Value()))
	}

	return a.updateEditInputs(msg)
}

func (a *App) updateEditInputs(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if a.editFocus == 0 {
		a.editText, cmd = a.editText.Update(msg)
	} else {
		a.editAt, cmd = a.editAt.Update(msg)
	}
	return cmd
}

// --- View ---

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	// Header with daemon status
	daemonStatus := onlineStyle.Render("● DAEMON")
	if !a.daemonOnline {
		daemonStatus = offlineStyle.Render("○ DAEMON")
	}

	open := 0
	for _, t := range a.tasks {
		if !t.Completed {
			open++
		}
	}

	header := titleStyle.Render("⏰ CHIME")
	header += "  " + daemonStatus
	header += "  " + lipgloss.NewStyle().Foreground(cyanColor).Render(fmt.Sprintf("[%d open]", open))
	if a.alarm.Permission == alert.PermissionDenied {
		header += "  " + lipgloss.NewStyle().Foreground(mutedColor).Render("(notifications off)")
	}

	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", a.width) + "\n")

	if a.alarm.Playing {
		text := "Reminder due"
		if a.alarm.LastAlert != nil {
			text = a.alarm.LastAlert.Text
		}
		b.WriteString(alarmStyle.Width(a.width).Render(fmt.Sprintf("🔔 %s  (press s to stop)", text)) + "\n")
	}

	switch a.mode {
	case modeList:
		filterLabel := fmt.Sprintf(" Filter: [%s]", filterNames[a.filterIdx])
		b.WriteString(lipgloss.NewStyle().Foreground(mutedColor).Render(filterLabel) + "\n")
		b.WriteString(a.viewport.View())
	case modeEdit:
		b.WriteString(a.renderEditor())
	}

	// Message bar
	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	} else {
		b.WriteString("\n")
	}

	if a.mode == modeList {
		b.WriteString("\n")
		b.WriteString(inputBoxStyle.Render(a.input.View()))

		// Suggestions dropdown renders below the input
		if a.suggestions.IsVisible() {
			b.WriteString("\n")
			b.WriteString(a.suggestions.Render(a.width))
		}
	}
	b.WriteString("\n")

	// Status bar
	var status string
	switch a.mode {
	case modeEdit:
		status = " Tab:switch field | Enter:save | Esc:cancel | Ctrl+C:quit"
	default:
		status = fmt.Sprintf(" Tasks: %d | ↑↓:nav | Enter:toggle | Tab:filter | /:commands | Ctrl+C:quit", len(a.tasks))
	}
	b.WriteString(statusBarStyle.Width(a.width).Render(status))

	return b.String()
}

// syncViewport re-renders the task list and keeps the selection visible.
func (a *App) syncViewport() {
	a.viewport.SetContent(a.renderTaskList())
	if a.selectedIdx < a.viewport.YOffset {
		a.viewport.SetYOffset(a.selectedIdx)
	} else if a.selectedIdx >= a.viewport.YOffset+a.viewport.Height {
		a.viewport.SetYOffset(a.selectedIdx - a.viewport.Height + 1)
	}
}

func (a *App) renderTaskList() string {
	if a.loading && len(a.tasks) == 0 {
		return "\n  Loading tasks...\n"
	}
	if len(a.tasks) == 0 {
		return "\n  No tasks found. Type: add <text> to create one.\n"
	}

	lines := make([]string, 0, len(a.tasks))
	for i, task := range a.tasks {
		mark := "[ ]"
		if task.Completed {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %s", mark, task.Text)
		if task.HasReminder() {
			line += "  ⏰ " + task.ReminderTime.Local().Format("Jan 2 15:04")
		}

		switch {
		case i == a.selectedIdx:
			lines = append(lines, selectedStyle.Render("▶ "+line))
		case task.Completed:
			lines = append(lines, doneItemStyle.Render("  "+line))
		default:
			lines = append(lines, taskItemStyle.Render("  "+line))
		}
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderEditor() string {
	var b strings.Builder

	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Edit task") + "\n\n")
	b.WriteString("Text:     " + a.editText.View() + "\n")
	b.WriteString("Reminder: " + a.editAt.View() + "\n\n")
	b.WriteString(helpStyle.Render("Clear the reminder field to remove the reminder."))

	return "\n" + panelStyle.Render(b.String()) + "\n"
}

// --- Commands ---

func (a *App) fetchTasks() tea.Cmd {
	filter := filters[a.filterIdx]
	return func() tea.Msg {
		tasks, err := a.client.ListTasks(filter)
		if err != nil {
			return errMsg{err}
		}
		return tasksLoadedMsg{tasks}
	}
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		ok, err := a.client.CheckHealth()
		return daemonStatusMsg{online: err == nil && ok}
	}
}

func (a *App) fetchAlarm() tea.Cmd {
	return func() tea.Msg {
		status, err := a.client.AlarmStatus()
		if err != nil {
			return daemonStatusMsg{online: false}
		}
		return alarmStatusMsg{status}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) stopAlarm() tea.Cmd {
	return func() tea.Msg {
		if err := a.client.StopAlarm(); err != nil {
			return errMsg{err}
		}
		return commandResultMsg{"✓ Alarm stopped"}
	}
}

func (a *App) toggleTask(task models.Task) tea.Cmd {
	return func() tea.Msg {
		updated, err := a.client.ToggleTask(task.ID)
		if err != nil {
			return errMsg{err}
		}
		if updated.Completed {
			return commandResultMsg{fmt.Sprintf("✓ Done: %s", updated.Text)}
		}
		return commandResultMsg{fmt.Sprintf("Reopened: %s", updated.Text)}
	}
}

func (a *App) beginEdit(task models.Task) tea.Cmd {
	return func() tea.Msg {
		session, err := a.client.BeginEdit(task.ID)
		if err != nil {
			return errMsg{err}
		}
		return editStartedMsg{session}
	}
}

func (a *App) saveEdit(text, at string) tea.Cmd {
	return func() tea.Msg {
		task, err := a.client.SaveEdit(text, at)
		if err != nil {
			var apiErr *APIError
			keepOpen := errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest
			return editFailedMsg{err: err, keepOpen: keepOpen}
		}
		return editSavedMsg{task}
	}
}

func (a *App) cancelEdit() tea.Cmd {
	return func() tea.Msg {
		if err := a.client.CancelEdit(); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (a *App) executeCommand(input string) tea.Cmd {
	parts := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(parts) == 0 {
		return nil
	}

	cmd := parts[0]
	task, hasTask := a.selected()

	switch cmd {
	case "q", "quit", "exit":
		return tea.Quit

	case "filter":
		a.filterIdx = (a.filterIdx + 1) % len(filters)
		return a.fetchTasks()

	case "stop":
		return a.stopAlarm()

	case "done", "edit", "rm", "delete":
		if !hasTask {
			return func() tea.Msg { return commandResultMsg{"No task selected"} }
		}
	}

	switch cmd {
	case "done":
		return a.toggleTask(task)
	case "edit":
		return a.beginEdit(task)
	}

	args := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(input, "/"), cmd))

	return func() tea.Msg {
		switch cmd {
		case "add":
			text, at := parseAdd(args)
			if text == "" {
				return commandResultMsg{"Usage: add <text> @ <time>"}
			}
			created, err := a.client.CreateTask(text, at)
			if err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			if created.HasReminder() {
				return commandResultMsg{fmt.Sprintf("✓ Added %q, reminder at %s", created.Text, reminderInput(created.ReminderTime))}
			}
			return commandResultMsg{fmt.Sprintf("✓ Added %q", created.Text)}

		case "rm", "delete":
			if err := a.client.DeleteTask(task.ID); err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{fmt.Sprintf("✓ Deleted %q", task.Text)}

		default:
			return commandResultMsg{fmt.Sprintf("Unknown: %s (try: add, done, edit, rm, stop)", cmd)}
		}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
