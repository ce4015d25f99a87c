package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"eventcal/internal/config"
	appLog "eventcal/internal/log"
	"eventcal/internal/store"
)

const version = "0.1.0"

// app carries the state shared by every subcommand once the persistent
// flags have been processed.
type app struct {
	configPath string
	logLevel   string

	conf *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "eventcal",
		Short:         "Recurring-event calendar service",
		Long:          "eventcal stores master events, expands recurring ones on demand and serves them over HTTP and as an iCalendar feed.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			appLog.SetLevel(appLog.ParseLevel(a.logLevel))

			conf, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", a.configPath, err)
			}
			a.conf = conf
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "./eventcal.yaml", "Path to config file (created with defaults if missing)")
	root.PersistentFlags().StringVarP(&a.logLevel, "loglevel", "l", "info", "Set log level. Available: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(a),
		newExpandCmd(a),
		newImportCmd(a),
		newExportCmd(a),
	)
	return root
}

// databasePath resolves a relative database path against the config file's
// directory.
func (a *app) databasePath() string {
	if filepath.IsAbs(a.conf.Database) {
		return a.conf.Database
	}
	return filepath.Join(filepath.Dir(a.configPath), a.conf.Database)
}

func (a *app) openStore() (*store.SQLite, error) {
	path := a.databasePath()
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	appLog.Debug("store opened", "database", path)
	return st, nil
}

// parseFlagTime accepts RFC3339 or YYYY-MM-DD (midnight in loc).
func parseFlagTime(v string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC3339 or YYYY-MM-DD", v)
	}
	return t, nil
}
