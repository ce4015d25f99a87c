package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"eventcal/internal/recurrence"
)

func newExpandCmd(a *app) *cobra.Command {
	var (
		startFlag string
		endFlag   string
		list      bool
	)

	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Print the occurrences of stored events in a window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := a.conf.Location()

			start := time.Now().In(loc)
			if startFlag != "" {
				t, err := parseFlagTime(startFlag, loc)
				if err != nil {
					return err
				}
				start = t
			}
			end := start.Add(a.conf.Horizon())
			if endFlag != "" {
				t, err := parseFlagTime(endFlag, loc)
				if err != nil {
					return err
				}
				end = t
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			events, err := st.List(cmd.Context())
			if err != nil {
				return err
			}

			res, err := recurrence.ExpandAll(events, recurrence.ExpandConfig{
				RangeStart:             start,
				RangeEnd:               end,
				MaxOccurrencesPerEvent: a.conf.MaxOccurrences,
			})
			if err != nil {
				return err
			}

			occs := res.Occurrences
			if list {
				occs = recurrence.Dedup(occs)
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "START\tEND\tTITLE\tOCCURRENCE")
			for _, o := range occs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					o.Start.In(loc).Format("2006-01-02 15:04"),
					o.End.In(loc).Format("2006-01-02 15:04"),
					o.Source.Title,
					o.ID,
				)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			for _, id := range res.TruncatedEvents {
				fmt.Fprintf(out, "truncated: %s hit the %d occurrence cap\n", id, a.conf.MaxOccurrences)
			}
			for _, id := range res.DegradedEvents {
				fmt.Fprintf(out, "degraded: %s has an unreadable rule\n", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&startFlag, "start", "", "Window start, RFC3339 or YYYY-MM-DD (default now)")
	cmd.Flags().StringVar(&endFlag, "end", "", "Window end, RFC3339 or YYYY-MM-DD (default start + horizon_days)")
	cmd.Flags().BoolVar(&list, "list", false, "One line per series instead of every occurrence")
	return cmd
}
