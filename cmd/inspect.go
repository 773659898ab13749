package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hw-transit/ptschedule/storage"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [run-id]",
	Short: "Lists stored runs, or summarizes one of them",
	Args:  cobra.MaximumNArgs(1),
	RunE:  inspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func inspect(cmd *cobra.Command, args []string) error {
	s, err := openStorage()
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("one of --sqlite-dir and --postgres is required")
	}
	defer s.Close()

	if len(args) == 0 {
		return listRuns(s, os.Stdout)
	}
	return summarizeRun(s, args[0], os.Stdout)
}

func listRuns(s storage.Storage, w io.Writer) error {
	runs, err := s.ListRuns(storage.ListRunsFilter{})
	if err != nil {
		return err
	}

	for _, run := range runs {
		fmt.Fprintf(
			w,
			"%s %s lines=%s routes=%d departures=%d rollover=%s\n",
			run.ID,
			run.CreatedAt.Format(time.RFC3339),
			strings.Join(run.Lines, ","),
			run.Routes,
			run.Departures,
			run.Rollover,
		)
	}

	return nil
}

func summarizeRun(s storage.Storage, run string, w io.Writer) error {
	runs, err := s.ListRuns(storage.ListRunsFilter{ID: run})
	if err != nil {
		return err
	}
	if len(runs) == 1 {
		fmt.Fprintf(w, "run %s, input %s, %s rollover\n", runs[0].ID, runs[0].InputHash, runs[0].Rollover)
	}

	reader, err := s.GetReader(run)
	if err != nil {
		return err
	}

	lines, err := reader.Lines()
	if err != nil {
		return err
	}

	for _, line := range lines {
		fmt.Fprintf(w, "%s (%s)\n", line.ID, line.Direction)

		routes, err := reader.Routes(line.ID)
		if err != nil {
			return err
		}
		for _, route := range routes {
			departures, err := reader.Departures(route.ID)
			if err != nil {
				return err
			}

			first, last := "-", "-"
			if len(departures) > 0 {
				first = departures[0].Time.String()
				last = departures[len(departures)-1].Time.String()
			}

			fmt.Fprintf(
				w,
				"    %s %s -> %s, %d stops, %d departures %s..%s\n",
				route.ID, route.From, route.To, len(route.Stops), len(departures), first, last,
			)
		}
	}

	vehicles, err := reader.Vehicles()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d vehicles\n", len(vehicles))

	return nil
}
