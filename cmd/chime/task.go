package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fentz26/chime/internal/controlplane"
	"github.com/fentz26/chime/internal/lifecycle"
	"github.com/fentz26/chime/internal/models"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Add a new task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done [task-id]",
	Short: "Toggle a task between open and done",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDone,
}

var taskEditCmd = &cobra.Command{
	Use:   "edit [task-id]",
	Short: "Edit a task's text or reminder",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskEdit,
}

var taskRmCmd = &cobra.Command{
	Use:   "rm [task-id]",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRm,
}

var (
	reminderAt    string
	taskStatus    string
	editText      string
	clearReminder bool
)

func init() {
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskShowCmd, taskDoneCmd, taskEditCmd, taskRmCmd)

	taskAddCmd.Flags().StringVar(&reminderAt, "at", "", "Reminder time (e.g. 2025-03-01T09:00 or RFC 3339)")

	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Filter by status (open, done)")

	taskEditCmd.Flags().StringVar(&editText, "text", "", "New task text")
	taskEditCmd.Flags().StringVar(&reminderAt, "at", "", "New reminder time")
	taskEditCmd.Flags().BoolVar(&clearReminder, "clear-at", false, "Remove the reminder")
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	body := controlplane.TaskRequest{
		Text:         strings.Join(args, " "),
		ReminderTime: reminderAt,
	}

	resp, err := apiPost("/tasks", body)
	if err != nil {
		return err
	}

	var task models.Task
	if err := json.Unmarshal(resp, &task); err != nil {
		return err
	}

	fmt.Printf("Created task: %s\n", task.ID)
	if task.HasReminder() {
		fmt.Printf("Reminder:     %s\n", formatReminder(task.ReminderTime))
	}
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	url := "/tasks"
	if taskStatus != "" {
		url += "?status=" + taskStatus
	}

	resp, err := apiGet(url)
	if err != nil {
		return err
	}

	var tasks []models.Task
	if err := json.Unmarshal(resp, &tasks); err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTEXT\tSTATUS\tREMINDER")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", truncateID(t.ID), truncate(t.Text, 40), statusLabel(t), formatReminder(t.ReminderTime))
	}
	w.Flush()
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/tasks/" + args[0])
	if err != nil {
		return err
	}

	var task models.Task
	if err := json.Unmarshal(resp, &task); err != nil {
		return err
	}

	fmt.Printf("ID:       %s\n", task.ID)
	fmt.Printf("Text:     %s\n", task.Text)
	fmt.Printf("Status:   %s\n", statusLabel(task))
	fmt.Printf("Reminder: %s\n", formatReminder(task.ReminderTime))
	return nil
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	resp, err := apiPost("/tasks/"+args[0]+"/toggle", nil)
	if err != nil {
		return err
	}

	var task models.Task
	if err := json.Unmarshal(resp, &task); err != nil {
		return err
	}

	fmt.Printf("Task %s is now %s\n", truncateID(task.ID), statusLabel(task))
	return nil
}

// runTaskEdit drives one edit session: begin, merge flags over the
// seeded values, save.
func runTaskEdit(cmd *cobra.Command, args []string) error {
	if clearReminder && reminderAt != "" {
		return fmt.Errorf("--at and --clear-at are mutually exclusive")
	}

	resp, err := apiPost("/tasks/"+args[0]+"/edit", nil)
	if err != nil {
		return err
	}

	var session lifecycle.EditSession
	if err := json.Unmarshal(resp, &session); err != nil {
		return err
	}

	body := controlplane.TaskRequest{
		Text:         session.Text,
		ReminderTime: models.FormatReminderTime(session.ReminderTime),
	}
	if cmd.Flags().Changed("text") {
		body.Text = editText
	}
	if reminderAt != "" {
		body.ReminderTime = reminderAt
	}
	if clearReminder {
		body.ReminderTime = ""
	}

	resp, err = apiPost("/edit/save", body)
	if err != nil {
		// leave the daemon free for the next edit
		apiPost("/edit/cancel", nil)
		return err
	}

	var task models.Task
	if err := json.Unmarshal(resp, &task); err != nil {
		return err
	}

	fmt.Printf("Updated task %s\n", truncateID(task.ID))
	return nil
}

func runTaskRm(cmd *cobra.Command, args []string) error {
	if err := apiDelete("/tasks/" + args[0]); err != nil {
		return err
	}

	fmt.Printf("Deleted task %s\n", args[0])
	return nil
}

// --- Helpers ---

func statusLabel(t models.Task) string {
	if t.Completed {
		return "done"
	}
	return "open"
}

func formatReminder(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
