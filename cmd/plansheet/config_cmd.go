package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"plansheet/internal/config"
	appLog "plansheet/internal/log"
	"plansheet/internal/schedule"
)

func newConfigCmd(rf *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path := rf.configPath
			if path == "" {
				path = defaultConfigPath
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config %s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			cfg := config.DefaultConfig()
			cfg.API.BaseURL = "https://api.example.org/v2"
			cfg.API.TokenURL = "https://api.example.org/oauth/token"
			if err := config.Save(path, cfg); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			appLog.Info("config written", "path", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := rf.loadConfig()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return err
			}
			if path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n", path)
			}
			_, err = cmd.OutOrStdout().Write(out)
			if verr := cfg.Validate(); verr != nil {
				appLog.Warn("configuration is not runnable", "problem", verr.Error())
			}
			return err
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func newWindowCmd(rf *rootFlags) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "window",
		Short: "Print the service search window for the configured weekday",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := rf.loadConfig()
			if err != nil {
				return err
			}
			day, err := schedule.ParseWeekday(cfg.Search.Weekday)
			if err != nil {
				return err
			}
			loc, err := schedule.LoadLocation(cfg.Search.Timezone)
			if err != nil {
				return err
			}

			ref := time.Now()
			if at != "" {
				if ref, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}
			start, end := schedule.NextOccurrenceWindow(ref, day, loc)
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "zone:  %s\n", loc)
			fmt.Fprintf(w, "start: %s\n", start.Format(time.RFC3339))
			fmt.Fprintf(w, "end:   %s\n", end.Format(time.RFC3339Nano))
			fmt.Fprintf(w, "hours: %.0f\n", end.Add(time.Nanosecond).Sub(start).Hours())
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "reference instant (RFC 3339) instead of now")
	return cmd
}
