package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fentz26/chime/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chime",
	Short: "Chime - todo list with alarm reminders",
	Long:  `Chime keeps a small todo list and rings an alarm when a task's reminder comes due.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr    string
	configPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:7467", "API server address")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", filepath.Join(config.Dir(), "config.yaml"), "Path to config file (.yaml, .json or .jsonc)")

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(alarmCmd)
	rootCmd.AddCommand(tuiCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
