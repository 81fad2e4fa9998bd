package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"plansheet/internal/config"
	appLog "plansheet/internal/log"
)

// defaultConfigPath is used when --config is not given and the file exists.
const defaultConfigPath = "plansheet.yaml"

type rootFlags struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	rf := &rootFlags{}
	root := &cobra.Command{
		Use:           "plansheet",
		Short:         "Render service plans into per-team printable sheets",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&rf.configPath, "config", "c", "", "configuration file (.yaml, .yml or .json)")
	root.PersistentFlags().StringVar(&rf.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	run := newRunCmd(rf)
	root.RunE = run.RunE
	root.Flags().AddFlagSet(run.Flags())

	root.AddCommand(run, newConfigCmd(rf), newWindowCmd(rf))
	return root
}

// loadConfig resolves .env, file and environment into one Config and
// configures the global logger from it.
func (rf *rootFlags) loadConfig() (*config.Config, string, error) {
	if err := config.LoadDotEnv(rf.envFile); err != nil {
		return nil, "", err
	}

	path := rf.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("config %s: %w", defaultConfigPath, err)
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	appLog.Configure(os.Stderr, appLog.Format(cfg.Log.Format), appLog.ParseLevel(cfg.Log.Level))
	return cfg, path, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// interactive reports whether selection prompts may be shown.
func interactive(mode string) bool {
	switch mode {
	case config.InteractiveAlways:
		return true
	case config.InteractiveNever:
		return false
	}
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stderr.Fd())
}
