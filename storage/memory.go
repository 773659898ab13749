package storage

import (
	"fmt"
	"sort"

	"github.com/hw-transit/ptschedule/model"
)

// In memory implementation of Storage below

type MemoryStorage struct {
	Runs     map[string]*MemoryStorageRun
	Metadata map[string]*RunMetadata
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Runs:     map[string]*MemoryStorageRun{},
		Metadata: map[string]*RunMetadata{},
	}
}

func (s *MemoryStorage) Close() error {
	return nil
}

func (s *MemoryStorage) ListRuns(filter ListRunsFilter) ([]*RunMetadata, error) {
	runs := []*RunMetadata{}
	for _, metadata := range s.Metadata {
		if filter.ID != "" && metadata.ID != filter.ID {
			continue
		}
		if filter.InputHash != "" && metadata.InputHash != filter.InputHash {
			continue
		}
		runs = append(runs, metadata)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

func (s *MemoryStorage) WriteRunMetadata(metadata *RunMetadata) error {
	s.Metadata[metadata.ID] = metadata
	return nil
}

func (s *MemoryStorage) GetReader(run string) (ScheduleReader, error) {
	r, ok := s.Runs[run]
	if !ok {
		return nil, fmt.Errorf("run %s not found", run)
	}
	return r, nil
}

func (s *MemoryStorage) GetWriter(run string) (ScheduleWriter, error) {
	r := &MemoryStorageRun{
		routesByLine:      map[string][]*model.Route{},
		departuresByRoute: map[string][]*model.Departure{},
		lineIDs:           map[string]bool{},
		routeIDs:          map[string]bool{},
		vehicleIDs:        map[string]bool{},
	}
	s.Runs[run] = r
	return r, nil
}

type MemoryStorageRun struct {
	lines             []*model.TransitLine
	routesByLine      map[string][]*model.Route
	departuresByRoute map[string][]*model.Departure
	vehicles          []*model.Vehicle

	lineIDs    map[string]bool
	routeIDs   map[string]bool
	vehicleIDs map[string]bool

	inDepartures bool
}

func (r *MemoryStorageRun) WriteLine(line *model.TransitLine) error {
	if r.lineIDs[line.ID] {
		return fmt.Errorf("repeated line id: %s", line.ID)
	}
	r.lineIDs[line.ID] = true

	r.lines = append(r.lines, &model.TransitLine{
		ID:         line.ID,
		Name:       line.Name,
		Line:       line.Line,
		Direction:  line.Direction,
		Attributes: append([]model.Attribute{}, line.Attributes...),
	})
	return nil
}

func (r *MemoryStorageRun) WriteRoute(lineID string, route *model.Route) error {
	if !r.lineIDs[lineID] {
		return fmt.Errorf("unknown line id: %s", lineID)
	}
	if r.routeIDs[route.ID] {
		return fmt.Errorf("repeated route id: %s", route.ID)
	}
	r.routeIDs[route.ID] = true

	r.routesByLine[lineID] = append(r.routesByLine[lineID], &model.Route{
		ID:            route.ID,
		Index:         route.Index,
		From:          route.From,
		To:            route.To,
		TransportMode: route.TransportMode,
		Attributes:    append([]model.Attribute{}, route.Attributes...),
		Stops:         append([]model.Stop{}, route.Stops...),
		Path:          append([]model.PathSegment{}, route.Path...),
	})
	return nil
}

func (r *MemoryStorageRun) BeginDepartures() error {
	r.inDepartures = true
	return nil
}

func (r *MemoryStorageRun) WriteDeparture(routeID string, departure *model.Departure) error {
	if !r.inDepartures {
		return fmt.Errorf("departure written outside BeginDepartures/EndDepartures")
	}
	if !r.routeIDs[routeID] {
		return fmt.Errorf("unknown route id: %s", routeID)
	}
	d := *departure
	r.departuresByRoute[routeID] = append(r.departuresByRoute[routeID], &d)
	return nil
}

func (r *MemoryStorageRun) EndDepartures() error {
	if !r.inDepartures {
		return fmt.Errorf("EndDepartures without BeginDepartures")
	}
	r.inDepartures = false
	return nil
}

func (r *MemoryStorageRun) WriteVehicle(vehicle *model.Vehicle) error {
	if r.vehicleIDs[vehicle.ID] {
		return fmt.Errorf("repeated vehicle id: %s", vehicle.ID)
	}
	r.vehicleIDs[vehicle.ID] = true
	v := *vehicle
	r.vehicles = append(r.vehicles, &v)
	return nil
}

func (r *MemoryStorageRun) Close() error {
	return nil
}

func (r *MemoryStorageRun) Lines() ([]*model.TransitLine, error) {
	lines := []*model.TransitLine{}
	for _, l := range r.lines {
		line := *l
		line.Attributes = append([]model.Attribute{}, l.Attributes...)
		lines = append(lines, &line)
	}
	return lines, nil
}

func (r *MemoryStorageRun) Routes(lineID string) ([]*model.Route, error) {
	routes := []*model.Route{}
	for _, rt := range r.routesByLine[lineID] {
		route := *rt
		route.Attributes = append([]model.Attribute{}, rt.Attributes...)
		route.Stops = append([]model.Stop{}, rt.Stops...)
		route.Path = append([]model.PathSegment{}, rt.Path...)
		routes = append(routes, &route)
	}
	return routes, nil
}

func (r *MemoryStorageRun) Departures(routeID string) ([]*model.Departure, error) {
	departures := []*model.Departure{}
	for _, d := range r.departuresByRoute[routeID] {
		dep := *d
		departures = append(departures, &dep)
	}
	return departures, nil
}

func (r *MemoryStorageRun) Vehicles() ([]*model.Vehicle, error) {
	vehicles := []*model.Vehicle{}
	for _, v := range r.vehicles {
		vehicle := *v
		vehicles = append(vehicles, &vehicle)
	}
	return vehicles, nil
}
