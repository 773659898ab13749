package ptschedule

import (
	"github.com/hw-transit/ptschedule/model"
)

// Input tables oriented in direction of travel. Only the Forward
// fields of travel times and links are meaningful.
type NormalizedTables struct {
	Stations    model.StationSequence
	TravelTimes []model.TravelTime
	Links       []model.StationLink
}

// Orients tables for the given direction. Backward travel reverses the
// station sequence, turns every travel time edge around (endpoints and
// minutes) and swaps the forward and backward links. The input is
// never modified.
//
// Frequency rows are not part of the view: their from and to already
// name stations in order of travel.
func ToForwardView(tables *model.LineTables, direction model.Direction) NormalizedTables {
	view := NormalizedTables{
		Stations:    make(model.StationSequence, 0, len(tables.Stations)),
		TravelTimes: make([]model.TravelTime, 0, len(tables.TravelTimes)),
		Links:       make([]model.StationLink, 0, len(tables.Links)),
	}

	if direction != model.DirectionBackward {
		view.Stations = append(view.Stations, tables.Stations...)
		view.TravelTimes = append(view.TravelTimes, tables.TravelTimes...)
		view.Links = append(view.Links, tables.Links...)
		return view
	}

	for i := len(tables.Stations) - 1; i >= 0; i-- {
		view.Stations = append(view.Stations, tables.Stations[i])
	}

	for _, tt := range tables.TravelTimes {
		view.TravelTimes = append(view.TravelTimes, model.TravelTime{
			From:     tt.To,
			To:       tt.From,
			Forward:  tt.Backward,
			Backward: tt.Forward,
		})
	}

	for _, l := range tables.Links {
		view.Links = append(view.Links, model.StationLink{
			Name:     l.Name,
			Forward:  l.Backward,
			Backward: l.Forward,
		})
	}

	return view
}
