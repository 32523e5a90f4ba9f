package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-secureform/pkg/events"
)

func newEventsCmd(a *app) *cobra.Command {
	var (
		dbPath    string
		limit     int
		eventType string
		formName  string
		since     time.Duration
		counts    bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recorded security events",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(dbPath)
			if path == "" {
				path = a.settings.EventsDB
			}
			if path == "" {
				return fmt.Errorf("no events database: set --db or events_db")
			}

			store, err := events.OpenSQLite(path, events.WithStoreLogger(a.logger))
			if err != nil {
				return err
			}
			defer store.Close()

			if counts {
				totals, err := store.Counts(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, totals)
				}
				return writeCounts(cmd, totals)
			}

			q := events.Query{Type: events.Type(eventType), Form: formName, Limit: limit}
			if since > 0 {
				q.Since = time.Now().Add(-since)
			}
			list, err := store.Recent(cmd.Context(), q)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, list)
			}
			return writeEvents(cmd, list)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "events database (defaults to events_db)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of events")
	cmd.Flags().StringVar(&eventType, "type", "", "only events of this type")
	cmd.Flags().StringVar(&formName, "form", "", "only events for this form")
	cmd.Flags().DurationVar(&since, "since", 0, "only events newer than this (e.g. 1h)")
	cmd.Flags().BoolVar(&counts, "counts", false, "print totals per event type")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func writeEvents(cmd *cobra.Command, list []events.Event) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tFORM\tFIELD\tACTION\tLENGTHS\tDETAIL")
	for _, e := range list {
		lengths := ""
		if e.OriginalLength > 0 || e.SanitizedLength > 0 {
			lengths = fmt.Sprintf("%d->%d", e.OriginalLength, e.SanitizedLength)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Time.UTC().Format(time.RFC3339), e.Type, e.Form, e.Field, e.Action, lengths, e.Detail)
	}
	return w.Flush()
}

func writeCounts(cmd *cobra.Command, totals map[events.Type]int) error {
	types := make([]string, 0, len(totals))
	for t := range totals {
		types = append(types, string(t))
	}
	sort.Strings(types)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tCOUNT")
	for _, t := range types {
		fmt.Fprintf(w, "%s\t%d\n", t, totals[events.Type(t)])
	}
	return w.Flush()
}
