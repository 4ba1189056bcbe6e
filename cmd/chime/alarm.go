package main

import (
	"encoding/json"
	"fmt"

	"github.com/fentz26/chime/internal/alert"
	"github.com/fentz26/chime/internal/scheduler"
	"github.com/spf13/cobra"
)

var alarmCmd = &cobra.Command{
	Use:   "alarm",
	Short: "Inspect or silence the reminder alarm",
}

var alarmStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the alarm sound",
	RunE:  runAlarmStop,
}

var alarmStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show alarm and reminder scanner status",
	RunE:  runAlarmStatus,
}

func init() {
	alarmCmd.AddCommand(alarmStopCmd, alarmStatusCmd)
}

func runAlarmStop(cmd *cobra.Command, args []string) error {
	if _, err := apiPost("/alarm/stop", nil); err != nil {
		return err
	}
	fmt.Println("Alarm stopped")
	return nil
}

func runAlarmStatus(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/alarm")
	if err != nil {
		return err
	}

	var status alert.Status
	if err := json.Unmarshal(resp, &status); err != nil {
		return err
	}

	playing := "silent"
	if status.Playing {
		playing = "ringing"
	}
	fmt.Printf("Alarm:         %s\n", playing)
	fmt.Printf("Notifications: %s\n", status.Permission)
	if status.LastAlert != nil {
		fmt.Printf("Last alert:    %q at %s\n", status.LastAlert.Text, status.LastAlert.FiredAt.Local().Format("2006-01-02 15:04:05"))
	}

	resp, err = apiGet("/scheduler")
	if err != nil {
		return err
	}

	var stats scheduler.Stats
	if err := json.Unmarshal(resp, &stats); err != nil {
		return err
	}
	fmt.Printf("Scanner:       running=%t ticks=%d fired=%d window=%s\n", stats.Running, stats.Ticks, stats.Fired, stats.Window)
	return nil
}
