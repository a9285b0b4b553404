package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/hrmon/internal/connection"
	"github.com/srg/hrmon/internal/monitor"
	"github.com/srg/hrmon/pkg/config"
	"github.com/srg/hrmon/scanner"
)

// app bundles what every command needs: configuration, logger and the monitor.
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	monitor *monitor.Monitor
}

// newApp loads --config, configures logging and creates the monitor over the shared radio.
func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	opts := monitor.Options{
		Scan: scanner.ScanOptions{
			Duration:        cfg.ScanDuration,
			DuplicateFilter: cfg.DuplicateFilter,
		},
		Connection:       connection.Options{PhaseTimeout: cfg.PhaseTimeout},
		SubscriberBuffer: cfg.SubscriberBuffer,
	}

	m, err := monitor.NewWithSharedRadio(opts, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, monitor: m}, nil
}

func (a *app) Close() {
	a.monitor.Close()
}

// interruptContext is cancelled on Ctrl+C or SIGTERM.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
