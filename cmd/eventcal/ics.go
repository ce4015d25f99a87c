package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"eventcal/internal/ics"
	"eventcal/internal/store"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		feedURL  string
		timeout  time.Duration
		retryMax int
	)

	cmd := &cobra.Command{
		Use:   "import [file.ics]",
		Short: "Import VEVENTs from an iCalendar file or URL, updating events with the same UID",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (feedURL != "") {
				return errors.New("give either a file or --url")
			}

			var (
				body   []byte
				source string
				err    error
			)
			if feedURL != "" {
				source = "feed"
				body, err = ics.NewFetcher(timeout, retryMax).Fetch(cmd.Context(), feedURL)
			} else {
				source = args[0]
				body, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			events, err := ics.ParseICS(body)
			if err != nil {
				return fmt.Errorf("parse %s: %w", source, err)
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := store.Import(cmd.Context(), st, events)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d, skipped %d\n", res.Created, res.Updated, res.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&feedURL, "url", "", "Fetch the feed over HTTP instead of reading a file")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "Per-attempt timeout for --url")
	cmd.Flags().IntVar(&retryMax, "retries", 3, "Retries for --url on connection errors and 5xx responses")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every stored event as an iCalendar feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			events, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			body := ics.ExportICS(events, a.conf.CalendarName)

			if out == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			}
			return os.WriteFile(out, []byte(body), 0o644)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}
