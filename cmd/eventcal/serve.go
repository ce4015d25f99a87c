package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"eventcal/internal/agenda"
	appLog "eventcal/internal/log"
	"eventcal/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the agenda digest job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := a.conf
			// --listen overrides config file listen if provided.
			if listen != "" {
				conf.Listen = listen
			}

			appLog.Info("eventcal starting", "version", version)
			appLog.Info("effective config",
				"listen", conf.Listen,
				"timezone", conf.Timezone,
				"database", a.databasePath(),
				"horizon_days", conf.HorizonDays,
				"backfill_days", conf.BackfillDays,
				"max_occurrences", conf.MaxOccurrences,
				"digest", conf.Digest,
				"basic_auth", conf.BasicAuth != nil,
			)

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			sched, err := agenda.NewScheduler(st, agenda.SchedulerConfig{
				Spec:           conf.Digest,
				Location:       conf.Location(),
				Horizon:        conf.Horizon(),
				MaxOccurrences: conf.MaxOccurrences,
			})
			if err != nil {
				return err
			}
			sched.Start()

			serveErr := web.StartServer(cmd.Context(), conf, st)

			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := sched.Stop(stopCtx); err != nil {
				appLog.Warn("digest job did not stop in time", "error", err.Error())
			}

			appLog.Info("eventcal exiting")
			return serveErr
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}
