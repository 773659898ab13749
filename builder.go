package ptschedule

import (
	"fmt"
	"io"
	"log"
	"math"
	"strings"

	"github.com/hw-transit/ptschedule/model"
	"github.com/hw-transit/ptschedule/parse"
)

// Builds transit lines from input tables.
type Builder struct {
	Profile  LineProfile
	Rollover RolloverRule
	IDs      *IDGenerator
	Logger   *log.Logger
}

func NewBuilder(ids *IDGenerator) *Builder {
	return &Builder{
		Profile:  DefaultLineProfile(),
		Rollover: RolloverLegacy,
		IDs:      ids,
		Logger:   log.Default(),
	}
}

// A route with stops and path resolved, but no departures assigned
// yet.
type routeDraft struct {
	freq  model.LineFrequency
	route *model.Route
	times []model.ClockTime
}

// Builds one transit line with a route per frequency row. Line ids
// ending in "_r" are built in backward direction from the tables of
// their base line.
//
// All routes are resolved before any vehicle is issued, so a line
// that fails leaves no trace in the IDGenerator.
func (b *Builder) BuildLine(line string, tables *model.LineTables) (*model.TransitLine, []model.Vehicle, error) {
	if b.IDs == nil {
		return nil, nil, fmt.Errorf("line %s: builder has no IDGenerator", line)
	}

	base, direction := model.ParseLine(line)
	logger := b.logger()

	if len(tables.Frequencies) == 0 {
		return nil, nil, &DataIntegrityError{
			Line:   line,
			Table:  parse.FrequencyFile,
			Reason: "has no frequency rows",
		}
	}
	for _, freq := range tables.Frequencies {
		if freq.Line != line {
			return nil, nil, &DataIntegrityError{
				Line:   line,
				Table:  parse.FrequencyFile,
				Reason: fmt.Sprintf("got frequency row of line %s", freq.Line),
			}
		}
	}

	if direction == model.DirectionBackward {
		logger.Printf("Adapting input for backward line %s", line)
	}
	view := ToForwardView(tables, direction)

	links, err := b.joinLinks(line, view)
	if err != nil {
		return nil, nil, err
	}

	minutes, err := joinTravelTimes(line, base, view)
	if err != nil {
		return nil, nil, err
	}

	transitLine := &model.TransitLine{
		ID:        b.Profile.LineID(line),
		Name:      line,
		Line:      line,
		Direction: direction,
		Attributes: []model.Attribute{
			{Name: "gtfs_agency_id", Class: javaString, Value: b.Profile.AgencyID},
			{Name: "gtfs_route_short_name", Class: javaString, Value: strings.ToUpper(base)},
			{Name: "gtfs_route_type", Class: javaString, Value: b.Profile.RouteType},
		},
	}

	drafts := []routeDraft{}
	for n, freq := range tables.Frequencies {
		route, err := b.buildRoute(line, base, n, freq, view.Stations, links, minutes)
		if err != nil {
			return nil, nil, err
		}

		logger.Printf(
			"Creating transit route id=%s from %s to %s, beginning at %02d:%02dh until %02d:00h going every %d min",
			route.ID, freq.From, freq.To, freq.StartHour, freq.StartMinute, freq.EndHour, freq.FrequencyMinutes,
		)

		times, err := GenerateDepartures(freq, b.Rollover)
		if err != nil {
			return nil, nil, fmt.Errorf("line %s route %s: %w", line, route.ID, err)
		}

		drafts = append(drafts, routeDraft{freq: freq, route: route, times: times})
	}

	vehicles := []model.Vehicle{}
	for n, draft := range drafts {
		routeKey := b.Profile.RouteKey(line, n)
		for _, t := range draft.times {
			k, vehicle, err := b.IDs.Next(routeKey)
			if err != nil {
				return nil, nil, fmt.Errorf("line %s: %w", line, err)
			}
			draft.route.Departures = append(draft.route.Departures, model.Departure{
				ID:        fmt.Sprintf("%s%s_%d", b.Profile.IDPrefix, routeKey, k),
				Sequence:  k,
				Time:      t,
				VehicleID: vehicle.ID,
			})
			vehicles = append(vehicles, vehicle)
		}

		logger.Printf("id=%s departs at %v", draft.route.ID, draft.times)
		transitLine.Routes = append(transitLine.Routes, draft.route)
	}

	return transitLine, vehicles, nil
}

func (b *Builder) logger() *log.Logger {
	if b.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return b.Logger
}

// Link of every station on the line. Stations missing from the
// mapping reject the line.
func (b *Builder) joinLinks(line string, view NormalizedTables) (map[string]string, error) {
	mapping := map[string]string{}
	for _, l := range view.Links {
		mapping[l.Name] = l.Forward
	}

	links := map[string]string{}
	for _, station := range view.Stations {
		link, found := mapping[station]
		if !found {
			return nil, &DataIntegrityError{
				Line:    line,
				Station: station,
				Table:   parse.StationLinksFile,
				Reason:  "is missing from the link mapping",
			}
		}
		if link == "" {
			return nil, &DataIntegrityError{
				Line:    line,
				Station: station,
				Table:   parse.StationLinksFile,
				Reason:  "has no link for this direction",
			}
		}
		links[station] = link
	}

	return links, nil
}

// Minutes needed to reach each station from its predecessor, keyed by
// the edge's destination.
func joinTravelTimes(line string, base string, view NormalizedTables) (map[string]float64, error) {
	minutes := map[string]float64{}
	for _, tt := range view.TravelTimes {
		if _, found := minutes[tt.To]; found {
			return nil, &DataIntegrityError{
				Line:    line,
				Station: tt.To,
				Table:   parse.TravelTimesFile(base),
				Reason:  "is reached by more than one travel time edge",
			}
		}
		minutes[tt.To] = tt.Forward
	}
	return minutes, nil
}

// Walks the station sequence, collecting stops and path segments
// between the window's from and to stations (inclusive).
func (b *Builder) buildRoute(
	line string,
	base string,
	n int,
	freq model.LineFrequency,
	stations model.StationSequence,
	links map[string]string,
	minutes map[string]float64,
) (*model.Route, error) {

	if freq.From == freq.To {
		return nil, &DataIntegrityError{
			Line:    line,
			Station: freq.From,
			Table:   parse.FrequencyFile,
			Reason:  "is both start and end of a route",
		}
	}

	if _, found := links[freq.From]; !found {
		return nil, &DataIntegrityError{
			Line:    line,
			Station: freq.From,
			Table:   parse.StationSequenceFile(base),
			Reason:  "is not on the line",
		}
	}

	route := &model.Route{
		ID:            b.Profile.LineID(line) + fmt.Sprintf("_%d", n),
		Index:         n,
		From:          freq.From,
		To:            freq.To,
		TransportMode: b.Profile.TransportMode,
		Attributes: []model.Attribute{
			{Name: "simple_route_type", Class: javaString, Value: b.Profile.TransportMode},
		},
	}

	inside := false
	closed := false
	elapsed := 0.0
	prev := ""

	for _, station := range stations {
		link := links[station]

		if station == freq.From {
			inside = true
			route.Stops = append(route.Stops, model.Stop{
				RefID:   b.stopRefID(link),
				Station: station,
				Offset:  0,
			})
			route.Path = append(route.Path, model.Stationary(link))
			prev = link
			continue
		}

		if !inside {
			continue
		}

		m, found := minutes[station]
		if !found || math.IsNaN(m) {
			return nil, &DataIntegrityError{
				Line:    line,
				Station: station,
				Table:   parse.TravelTimesFile(base),
				Reason:  "has no travel time from its predecessor",
			}
		}

		elapsed += m
		route.Stops = append(route.Stops, model.Stop{
			RefID:   b.stopRefID(link),
			Station: station,
			Offset:  model.Offset(int(elapsed)),
		})
		route.Path = append(route.Path, model.Connector(prev, link), model.Stationary(link))
		prev = link

		if station == freq.To {
			closed = true
			break
		}
	}

	if !closed {
		return nil, &DataIntegrityError{
			Line:    line,
			Station: freq.To,
			Table:   parse.StationSequenceFile(base),
			Reason:  fmt.Sprintf("is not reached after '%s'", freq.From),
		}
	}

	return route, nil
}

func (b *Builder) stopRefID(link string) string {
	if b.Profile.StopLinkPrefix == "" {
		return link
	}
	return strings.TrimPrefix(link, b.Profile.StopLinkPrefix)
}
