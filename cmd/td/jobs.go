package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zulandar/timedock/internal/audit"
	"github.com/zulandar/timedock/internal/config"
	"github.com/zulandar/timedock/internal/models"
	"github.com/zulandar/timedock/internal/store"
)

func newJobsCmd() *cobra.Command {
	var (
		configPath string
		queue      string
		status     string
		limit      int
		offset     int
	)

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect sync-job history",
		Long:  "Displays the sync-job audit log. Supports filtering by queue and status with limit/offset pagination.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobs(cmd, configPath, audit.Filter{
				Queue:  queue,
				Status: status,
				Limit:  limit,
				Offset: offset,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "timedock.yaml", "path to Timedock config file")
	cmd.Flags().StringVar(&queue, "queue", "", "filter by queue (timer_retry, time_slot_retry, screenshot)")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (waiting, running, succeeded, failed, cancelled)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of entries to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "pagination offset")
	return cmd
}

func runJobs(cmd *cobra.Command, configPath string, filter audit.Filter) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	if err := store.AutoMigrate(db); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	trail := audit.NewTrail(db, logrus.New())

	jobs, total, err := trail.List(filter)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No sync jobs found.")
		return nil
	}

	fmt.Fprintf(out, "%-6s %-16s %-10s %-9s %-20s %s\n", "ID", "QUEUE", "STATUS", "ATTEMPTS", "CREATED", "ERROR")
	for _, job := range jobs {
		fmt.Fprintf(out, "%-6d %-16s %-10s %-9d %-20s %s\n",
			job.ID, job.QueueName, job.Status, job.Attempts,
			job.CreatedAt.Format(time.DateTime), truncateError(job))
	}
	fmt.Fprintf(out, "\n%d of %d jobs shown\n", len(jobs), total)
	return nil
}

func truncateError(job models.SyncJob) string {
	msg := strings.ReplaceAll(job.LastError, "\n", " ")
	if len(msg) > 60 {
		return msg[:57] + "..."
	}
	return msg
}
