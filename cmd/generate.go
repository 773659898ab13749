package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/hw-transit/ptschedule"
	"github.com/hw-transit/ptschedule/matsimxml"
)

var generateCmd = &cobra.Command{
	Use:   "generate [line...]",
	Short: "Generates schedule and vehicles for the given lines (all lines by default)",
	RunE:  generate,
}

var (
	scheduleOut string
	vehiclesOut string
	vehicleType string
	rollover    string
	docType     bool
	runID       string
)

func init() {
	generateCmd.Flags().StringVarP(&scheduleOut, "schedule-out", "", "replace_schedule.xml", "Schedule output file (gzipped if ending in .gz)")
	generateCmd.Flags().StringVarP(&vehiclesOut, "vehicles-out", "", "replace_vehicles.xml", "Vehicles output file (gzipped if ending in .gz)")
	generateCmd.Flags().StringVarP(&vehicleType, "vehicle-type", "", ptschedule.DefaultVehicleType, "Vehicle type of generated vehicles")
	generateCmd.Flags().StringVarP(&rollover, "rollover", "", ptschedule.RolloverLegacy.String(), "Departure clock rollover rule (legacy, strict)")
	generateCmd.Flags().BoolVarP(&docType, "doctype", "", false, "Declare MATSim DTD/schema in output")
	generateCmd.Flags().StringVarP(&runID, "run-id", "", "", "Id of the stored run (random UUID by default)")

	rootCmd.AddCommand(generateCmd)
}

type generateOptions struct {
	Lines       []string
	ScheduleOut string
	VehiclesOut string
	VehicleType string
	Rollover    string
	DocType     bool
	RunID       string
}

func generate(cmd *cobra.Command, args []string) error {
	return runGenerate(cmd.Context(), generateOptions{
		Lines:       args,
		ScheduleOut: scheduleOut,
		VehiclesOut: vehiclesOut,
		VehicleType: vehicleType,
		Rollover:    rollover,
		DocType:     docType,
		RunID:       runID,
	})
}

func runGenerate(ctx context.Context, opts generateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	rule, err := ptschedule.ParseRolloverRule(opts.Rollover)
	if err != nil {
		return err
	}

	loader, err := newLoader()
	if err != nil {
		return err
	}

	s, err := openStorage()
	if err != nil {
		return err
	}
	if s != nil {
		defer s.Close()
	}

	generator := ptschedule.NewGenerator(loader, s)
	generator.Rollover = rule
	generator.VehicleType = opts.VehicleType

	schedule, err := generator.Run(ctx, opts.Lines)
	if err != nil {
		return err
	}

	// Stored first, so a storage failure leaves no output files behind
	if s != nil {
		metadata, err := generator.Persist(opts.RunID, schedule)
		if err != nil {
			return fmt.Errorf("storing run: %w", err)
		}
		log.Printf("Stored run %s (input %s)", metadata.ID, metadata.InputHash)
	}

	xmlOpts := matsimxml.Options{DocType: opts.DocType}

	log.Printf("Writing %d lines to %s", len(schedule.Lines), opts.ScheduleOut)
	err = matsimxml.WriteScheduleFile(opts.ScheduleOut, schedule, xmlOpts)
	if err != nil {
		return err
	}

	log.Printf("Writing %d vehicles to %s", len(schedule.Vehicles), opts.VehiclesOut)
	err = matsimxml.WriteVehiclesFile(opts.VehiclesOut, schedule.Vehicles, xmlOpts)
	if err != nil {
		return err
	}

	return nil
}
