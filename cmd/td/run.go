package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zulandar/timedock/internal/activity"
	"github.com/zulandar/timedock/internal/api"
	"github.com/zulandar/timedock/internal/audit"
	"github.com/zulandar/timedock/internal/capture"
	"github.com/zulandar/timedock/internal/config"
	"github.com/zulandar/timedock/internal/dashboard"
	"github.com/zulandar/timedock/internal/events"
	"github.com/zulandar/timedock/internal/lifecycle"
	"github.com/zulandar/timedock/internal/session"
	"github.com/zulandar/timedock/internal/store"
	"github.com/zulandar/timedock/internal/sweep"
	"github.com/zulandar/timedock/internal/syncer"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the capture and sync agent",
		Long:  "Starts the tracking session, the sync poll loop, the reconciliation sweeper and the local operator dashboard, and runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd, configPath, verbose)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "timedock.yaml", "path to Timedock config file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func newLogger(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func runAgent(cmd *cobra.Command, configPath string, verbose bool) error {
	godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()

	log := newLogger(verbose)

	db, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	if err := store.AutoMigrate(db); err != nil {
		return err
	}

	client, err := api.NewClient(api.Credentials{
		BaseURL:        cfg.API.BaseURL,
		Token:          cfg.API.Token,
		TenantID:       cfg.Account.TenantID,
		OrganizationID: cfg.Account.OrganizationID,
		EmployeeID:     cfg.Account.EmployeeID,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Server-side tracking preferences override the local ones when the
	// service is reachable; otherwise the local config stands.
	var capturer capture.Capturer
	screenshotsAllowed := true
	if settings, err := client.GetEmployeeSettings(ctx); err != nil {
		log.WithError(err).Warn("employee settings unavailable, using local config")
	} else {
		screenshotsAllowed = settings.AllowScreenshotCapture
		if !settings.TrackKeyboardMouse {
			cfg.Tracking.TrackInput = false
		}
	}
	if screenshotsAllowed {
		sc, err := capture.NewScreenCapturer(cfg.Storage.ScreenshotDir, cfg.Tracking.MonitorMode)
		if err != nil {
			return err
		}
		capturer = sc
	}

	bus := events.NewBus()
	trail := audit.NewTrail(db, log)
	counter := activity.NewCounter()

	controller, err := session.NewController(db, cfg, counter, nil, capturer, bus, log)
	if err != nil {
		return err
	}
	engine, err := syncer.NewEngine(db, client, cfg, trail, bus, log)
	if err != nil {
		return err
	}
	sweeper, err := sweep.NewSweeper(db, engine, trail, cfg, log)
	if err != nil {
		return err
	}
	handler, err := lifecycle.NewHandler(controller, cfg.ResumeSettle(), log)
	if err != nil {
		return err
	}

	// Surface pipeline events in the log; the UI bridge that would consume
	// them is out of scope here.
	evCh, unsubscribe := bus.Subscribe(32)
	defer unsubscribe()
	go func() {
		for ev := range evCh {
			entry := log.WithField("event", ev.Kind.String())
			if ev.Reason != "" {
				entry = entry.WithField("reason", ev.Reason)
			}
			entry.Info("pipeline event")
		}
	}()

	if cfg.Dashboard.Enabled {
		go func() {
			err := dashboard.Start(ctx, dashboard.StartOpts{
				DB:         db,
				Trail:      trail,
				Controller: controller,
				Engine:     engine,
				Port:       cfg.Dashboard.Port,
			})
			if err != nil {
				log.WithError(err).Error("dashboard stopped")
			}
		}()
	}

	if err := controller.StartTracking(ctx); err != nil {
		return err
	}
	go engine.Run(ctx)

	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()
	// Immediate check: pick up anything a previous crash left behind.
	sweeper.RunNow()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	handler.Handle(ctx, lifecycle.SignalShutdown)
	cancel()
	log.Info("agent stopped")
	return nil
}
