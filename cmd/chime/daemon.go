package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fentz26/chime/internal/alert"
	"github.com/fentz26/chime/internal/config"
	"github.com/fentz26/chime/internal/connectors"
	"github.com/fentz26/chime/internal/connectors/localexec"
	"github.com/fentz26/chime/internal/controlplane"
	"github.com/fentz26/chime/internal/lifecycle"
	"github.com/fentz26/chime/internal/scheduler"
	"github.com/fentz26/chime/internal/store"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	backend    string
	dataDir    string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the Chime daemon",
	Long:  `Starts the Chime daemon which owns the task list, scans for due reminders and serves the HTTP API.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides config)")
	daemonCmd.Flags().StringVar(&backend, "backend", "", "Storage backend: sqlite or file (overrides config)")
	daemonCmd.Flags().StringVar(&dataDir, "data-dir", "", "Data directory (overrides config)")
}

func loadDaemonConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if backend != "" {
		cfg.Backend = backend
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openSlot(cfg *config.Config) (store.Slot, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return store.OpenFileSlot(cfg.DataDir, store.DefaultSlotName)
	default:
		return store.OpenSQLiteSlot(cfg.DBPath(), store.DefaultSlotName)
	}
}

func buildNotifier(cfg *config.Config, conn connectors.Connector) alert.Notifier {
	terminal := alert.NewWriterNotifier(os.Stderr)
	switch cfg.Alert.Notifier {
	case "terminal":
		return terminal
	case "command":
		return alert.NewCommandNotifier(conn)
	default:
		return alert.NewFallbackNotifier(alert.NewCommandNotifier(conn), terminal)
	}
}

func buildPlayer(cfg *config.Config, conn connectors.Connector) alert.Player {
	bell, _ := cfg.BellInterval()
	switch cfg.Alert.Player {
	case "none":
		return alert.MutePlayer{}
	case "command":
		p, err := alert.NewCommandPlayer(conn, cfg.Alert.Sound)
		if err == nil {
			return p
		}
		log.Printf("Warning: %v (falling back to terminal bell)", err)
	}
	return alert.NewBellPlayer(os.Stderr, bell)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log.Println("Starting Chime daemon...")

	cfg, err := loadDaemonConfig()
	if err != nil {
		return err
	}
	schedulerCfg, err := cfg.SchedulerConfig()
	if err != nil {
		return err
	}

	// Initialize store
	slot, err := openSlot(cfg)
	if err != nil {
		return err
	}
	s := store.Open(context.Background(), slot, store.WithStorageErrorHandler(func(err *store.StorageError) {
		log.Printf("Storage error: %v (changes kept in memory)", err)
	}))
	log.Printf("Using %s storage in %s", cfg.Backend, cfg.DataDir)

	// Initialize alerts
	connector := localexec.New(cfg.DataDir)
	dispatcher := alert.NewDispatcher(buildNotifier(cfg, connector), buildPlayer(cfg, connector), cfg.Alert.Title)
	initCtx, initCancel := context.WithTimeout(context.Background(), 5*time.Second)
	dispatcher.Init(initCtx)
	initCancel()

	// Create service and server
	service := lifecycle.NewService(s, dispatcher)
	var pinger controlplane.Pinger
	if p, ok := slot.(controlplane.Pinger); ok {
		pinger = p
	}
	server := controlplane.NewServer(service, pinger, cfg.Listen)
	server.SetAlarm(dispatcher)

	// Create and start scheduler
	sched := scheduler.New(s, dispatcher, schedulerCfg)
	server.SetScheduler(sched)

	sched.Start()
	defer sched.Stop()

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
			abortRuntime(sched, dispatcher, s)
			return err
		}
	}

	log.Println("Stopping reminder scanner...")
	sched.Stop()

	if err := dispatcher.Stop(); err != nil {
		log.Printf("Alarm stop error: %v", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Closing storage...")
	if err := s.Close(); err != nil {
		log.Printf("Storage close error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}

// abortRuntime releases what the daemon started once the server has
// failed. Release errors are logged; the server error is returned.
func abortRuntime(sched interface{ Stop() }, alarm interface{ Stop() error }, st io.Closer) {
	sched.Stop()
	if err := alarm.Stop(); err != nil {
		log.Printf("Alarm stop error: %v", err)
	}
	if err := st.Close(); err != nil {
		log.Printf("Storage close error: %v", err)
	}
}
