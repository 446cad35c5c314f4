package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/timedock/internal/config"
	"github.com/zulandar/timedock/internal/store"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the local durable store",
	}
	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the local database",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			fmt.Fprintf(cmd.OutOrStdout(), "Database ready at %s\n", cfg.Storage.DBPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "timedock.yaml", "path to Timedock config file")
	return cmd
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and recreate all pipeline tables",
		Long:  "Destroys all unsynced samples, screenshots and audit history. Asks for confirmation unless --force is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if !force {
				fmt.Fprintf(cmd.OutOrStdout(), "This deletes all unsynced records in %s. Continue? [y/N] ", cfg.Storage.DBPath)
				reader := bufio.NewReader(cmd.InOrStdin())
				answer, _ := reader.ReadString('\n')
				if strings.ToLower(strings.TrimSpace(answer)) != "y" {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			db, err := store.Open(cfg.Storage.DBPath)
			if err != nil {
				return err
			}
			if err := store.Reset(db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database reset at %s\n", cfg.Storage.DBPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "timedock.yaml", "path to Timedock config file")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")
	return cmd
}
