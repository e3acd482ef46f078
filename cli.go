package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"evtimesel/internal/config"
	"evtimesel/internal/eventtime"
	"evtimesel/internal/fdsnevent"
)

type lookupFlags struct {
	before  float64
	after   float64
	network string
	station string
	loc     string
	channel string
}

func newLookupCmd(root *rootFlags) *cobra.Command {
	var f lookupFlags

	cmd := &cobra.Command{
		Use:   "lookup <eventid>",
		Short: "Resolve an event and print the derived time window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.before < 0 {
				return fmt.Errorf("--before must be >= 0")
			}
			if f.after < 0 {
				return fmt.Errorf("--after must be >= 0")
			}

			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel, os.Stderr)
			client := fdsnevent.NewClient(cfg.EventURL, fdsnevent.WithTimeout(cfg.RequestTimeout))

			res, err := runLookup(cmd.Context(), cfg, client, args[0], f, logger)
			if err != nil {
				return err
			}
			printCLI(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().Float64Var(&f.before, "before", 0, "Minutes before the origin time (e.g. 5, 2.5)")
	cmd.Flags().Float64Var(&f.after, "after", 0, "Minutes after the origin time")
	cmd.Flags().StringVar(&f.network, "net", "", "Network code for the dataselect URL")
	cmd.Flags().StringVar(&f.station, "sta", "", "Station code for the dataselect URL")
	cmd.Flags().StringVar(&f.loc, "loc", "", "Location code for the dataselect URL")
	cmd.Flags().StringVar(&f.channel, "cha", "", "Channel code for the dataselect URL")
	return cmd
}

// eventService is what the lookup needs from the event client.
type eventService interface {
	eventtime.Resolver
	Available(ctx context.Context) bool
}

func runLookup(ctx context.Context, cfg config.Config, svc eventService, eventID string, f lookupFlags, logger *slog.Logger) (LookupResult, error) {
	if !svc.Available(ctx) {
		return LookupResult{}, fmt.Errorf("event service unavailable at %s", cfg.EventURL)
	}

	s := newSession(cfg, svc, logger, nil)
	defer s.close()

	s.form.SetValue(eventtime.FieldEventID, eventID)
	s.form.SetValue(eventtime.FieldBefore, formatMinutes(f.before))
	s.form.SetValue(eventtime.FieldAfter, formatMinutes(f.after))
	s.form.SetValue(fieldNetwork, f.network)
	s.form.SetValue(fieldStation, f.station)
	s.form.SetValue(fieldLocation, f.loc)
	s.form.SetValue(fieldChannel, f.channel)

	if err := s.ctrl.Submit(eventID); err != nil {
		return LookupResult{}, fmt.Errorf("%s: %w", eventID, err)
	}
	if _, ok := s.ctrl.Reference(); !ok {
		msg := s.form.Status().Message
		if msg == "" {
			msg = "empty event id"
		}
		return LookupResult{}, errors.New(msg)
	}
	return s.result(), nil
}

func formatMinutes(m float64) string {
	if m == 0 {
		return ""
	}
	return strconv.FormatFloat(m, 'f', -1, 64)
}

func printCLI(w io.Writer, res LookupResult) {
	fmt.Fprintf(w, "Event:        %s\n", res.EventID)
	fmt.Fprintf(w, "Origin Time:  %s\n", res.OriginTime)
	fmt.Fprintf(w, "Window:       -%s / +%s min\n", orDefault(res.Before, "0"), orDefault(res.After, "0"))
	fmt.Fprintf(w, "  starttime:  %s\n", res.StartTime)
	fmt.Fprintf(w, "  endtime:    %s\n", res.EndTime)
	fmt.Fprintf(w, "Dataselect:   %s\n", res.DataselectURL)
}
