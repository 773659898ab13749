package storage

import (
	"time"

	"github.com/hw-transit/ptschedule/model"
)

type Storage interface {
	// Retrieves all run metadata records matching the given
	// filter, most recent first.
	ListRuns(filter ListRunsFilter) ([]*RunMetadata, error)

	// Writes a RunMetadata record. If a record with the same ID
	// exists, it is replaced.
	WriteRunMetadata(metadata *RunMetadata) error

	// Gets a reader for the schedule generated by the given run.
	GetReader(run string) (ScheduleReader, error)

	// Gets a writer for the given run. Any schedule previously
	// written for the run is discarded.
	GetWriter(run string) (ScheduleWriter, error)

	// Releases database connections. Readers and writers obtained
	// from the storage can't be used afterwards.
	Close() error
}

type ListRunsFilter struct {
	// If set, only include the run with this ID.
	ID string

	// If set, only include runs generated from inputs with this
	// hash.
	InputHash string
}

// Describes one generator run. The generated schedule itself is
// accessed via ScheduleReader.
type RunMetadata struct {
	ID         string
	CreatedAt  time.Time
	InputHash  string
	Lines      []string
	Rollover   string
	Routes     int
	Departures int
	Vehicles   int
}

// Writes a generated schedule.
//
// Departures tend to outnumber everything else, so BeginDepartures()
// and EndDepartures() are called before and after all calls to
// WriteDeparture(), allowing transactions/batching.
type ScheduleWriter interface {
	// Writes a line's id, name, direction and attributes. Routes
	// are written separately.
	WriteLine(line *model.TransitLine) error

	// Writes a route with its stops and path. Departures are
	// written separately.
	WriteRoute(lineID string, route *model.Route) error

	BeginDepartures() error
	WriteDeparture(routeID string, departure *model.Departure) error
	EndDepartures() error

	WriteVehicle(vehicle *model.Vehicle) error
	Close() error
}

// Reads back a generated schedule. Everything is returned in the order
// it was written.
type ScheduleReader interface {
	// Lines without routes.
	Lines() ([]*model.TransitLine, error)

	// Routes of a line with stops and path, but without
	// departures.
	Routes(lineID string) ([]*model.Route, error)

	Departures(routeID string) ([]*model.Departure, error)
	Vehicles() ([]*model.Vehicle, error)
}
