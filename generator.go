package ptschedule

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hw-transit/ptschedule/model"
	"github.com/hw-transit/ptschedule/parse"
	"github.com/hw-transit/ptschedule/storage"
)

// Generator builds complete schedules, one line at a time, from the
// tables of a Loader.
type Generator struct {
	Profile     LineProfile
	Rollover    RolloverRule
	VehicleType string
	Logger      *log.Logger
	TimeNow     func() time.Time

	loader  *parse.Loader
	storage storage.Storage
}

// Creates a Generator reading from the given loader. If s is non-nil,
// Persist() writes finished schedules to it.
func NewGenerator(loader *parse.Loader, s storage.Storage) *Generator {
	return &Generator{
		Profile:     DefaultLineProfile(),
		Rollover:    RolloverLegacy,
		VehicleType: DefaultVehicleType,
		Logger:      log.Default(),
		TimeNow:     time.Now,

		loader:  loader,
		storage: s,
	}
}

// Generates the given lines, in order. With no lines given, every
// line of the frequency table is generated.
//
// Any failure aborts the run and no schedule is returned. Listing a
// line twice is an error, since its vehicle ids would collide.
func (g *Generator) Run(ctx context.Context, lines []string) (*model.Schedule, error) {
	if len(lines) == 0 {
		all, err := g.loader.Lines(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing lines: %w", err)
		}
		lines = all
	}

	ids := NewIDGenerator(g.Profile.IDPrefix, g.VehicleType)
	builder := &Builder{
		Profile:  g.Profile,
		Rollover: g.Rollover,
		IDs:      ids,
		Logger:   g.Logger,
	}

	schedule := &model.Schedule{
		Lines:    []*model.TransitLine{},
		Vehicles: []model.Vehicle{},
	}
	seen := map[string]bool{}

	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if seen[line] {
			return nil, fmt.Errorf("line %s requested more than once", line)
		}
		seen[line] = true

		tables, err := g.loader.LineTables(ctx, line)
		if err != nil {
			return nil, fmt.Errorf("line %s: %w", line, err)
		}

		transitLine, vehicles, err := builder.BuildLine(line, tables)
		if err != nil {
			return nil, err
		}

		schedule.Lines = append(schedule.Lines, transitLine)
		schedule.Vehicles = append(schedule.Vehicles, vehicles...)
	}

	return schedule, nil
}

// Writes the schedule to storage under the given run id, followed by
// its RunMetadata. An empty run id is replaced by a random UUID.
func (g *Generator) Persist(runID string, schedule *model.Schedule) (*storage.RunMetadata, error) {
	if g.storage == nil {
		return nil, fmt.Errorf("generator has no storage")
	}

	if runID == "" {
		runID = uuid.NewString()
	}

	writer, err := g.storage.GetWriter(runID)
	if err != nil {
		return nil, fmt.Errorf("getting writer for run %s: %w", runID, err)
	}

	err = storage.WriteSchedule(writer, schedule)
	if err != nil {
		return nil, fmt.Errorf("writing run %s: %w", runID, err)
	}

	metadata := &storage.RunMetadata{
		ID:        runID,
		CreatedAt: g.TimeNow().UTC(),
		InputHash: g.loader.Hash(),
		Lines:     []string{},
		Rollover:  g.Rollover.String(),
		Vehicles:  len(schedule.Vehicles),
	}
	for _, line := range schedule.Lines {
		metadata.Lines = append(metadata.Lines, line.Line)
		metadata.Routes += len(line.Routes)
		for _, route := range line.Routes {
			metadata.Departures += len(route.Departures)
		}
	}

	err = g.storage.WriteRunMetadata(metadata)
	if err != nil {
		return nil, fmt.Errorf("writing metadata for run %s: %w", runID, err)
	}

	return metadata, nil
}
