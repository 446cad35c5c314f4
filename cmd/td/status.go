package main

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/zulandar/timedock/internal/api"
	"github.com/zulandar/timedock/internal/config"
	"github.com/zulandar/timedock/internal/store"
)

func newStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show remote timer state and local queue depth",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "timedock.yaml", "path to Timedock config file")
	return cmd
}

func runStatus(cmd *cobra.Command, configPath string) error {
	godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()

	out := cmd.OutOrStdout()

	db, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	if err := store.AutoMigrate(db); err != nil {
		return err
	}

	samples, err := store.CountSamples(db)
	if err != nil {
		return err
	}
	shots, err := store.CountScreenshots(db)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Local queue: %d samples, %d screenshots pending\n", samples, shots)

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

	status, err := client.GetTimerStatus(cmd.Context())
	if err != nil {
		fmt.Fprintf(out, "Remote timer: unavailable (%v)\n", err)
		return nil
	}
	if status.Running {
		fmt.Fprintf(out, "Remote timer: running since %s (%s)\n",
			status.StartedAt.Format(time.RFC3339),
			time.Duration(status.Duration)*time.Second)
	} else {
		fmt.Fprintln(out, "Remote timer: stopped")
	}
	return nil
}
