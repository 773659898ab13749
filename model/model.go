package model

import (
	"fmt"
	"strings"
)

// Holds all external facing types and constants.

// Line ids carrying this suffix describe the backward direction of
// the line without it.
const BackwardSuffix = "_r"

type Direction int8

const (
	DirectionForward Direction = iota
	DirectionBackward
)

func (d Direction) String() string {
	if d == DirectionBackward {
		return "backward"
	}
	return "forward"
}

// Splits a line id such as "s2_r" into its base id ("s2") and
// direction.
func ParseLine(line string) (string, Direction) {
	if base, found := strings.CutSuffix(line, BackwardSuffix); found {
		return base, DirectionBackward
	}
	return line, DirectionForward
}

// One headway window of a line. Each row of frequency.csv becomes one
// transit route.
type LineFrequency struct {
	Line             string
	StartHour        int
	StartMinute      int
	EndHour          int
	FrequencyMinutes int
	From             string
	To               string
}

// Station names of a line, in the line's forward direction.
type StationSequence []string

// Minutes needed to reach To when arriving from From. Forward and
// Backward hold the running time for each direction of travel.
type TravelTime struct {
	From     string
	To       string
	Forward  float64
	Backward float64
}

// Network links a vehicle stands on when serving a station.
type StationLink struct {
	Name     string
	Forward  string
	Backward string
}

// The four inputs needed to build one line.
type LineTables struct {
	Frequencies []LineFrequency
	Stations    StationSequence
	TravelTimes []TravelTime
	Links       []StationLink
}

// Minutes since the first stop of a route.
type Offset int

// Formats as HH:MM:SS. Seconds are always zero.
func (o Offset) String() string {
	return fmt.Sprintf("%02d:%02d:00", int(o)/60, int(o)%60)
}

type Stop struct {
	RefID   string
	Station string
	Offset  Offset
}

// Vehicles never dwell at stops, so arrival and departure offsets
// coincide and awaitDeparture is always set.
func (s Stop) ArrivalOffset() string   { return s.Offset.String() }
func (s Stop) DepartureOffset() string { return s.Offset.String() }
func (s Stop) AwaitDeparture() bool    { return true }

type SegmentKind int8

const (
	// Standing on the link serving a station.
	SegmentStationary SegmentKind = iota

	// Link connecting two station links.
	SegmentConnector
)

// One element of a route's link path. Paths alternate stationary
// and connector segments, starting and ending with a stationary one.
type PathSegment struct {
	Kind SegmentKind
	From string
	To   string
}

func Stationary(link string) PathSegment {
	return PathSegment{Kind: SegmentStationary, From: link}
}

func Connector(from, to string) PathSegment {
	return PathSegment{Kind: SegmentConnector, From: from, To: to}
}

// The network link id this segment refers to.
func (p PathSegment) LinkID() string {
	if p.Kind == SegmentConnector {
		return p.From + "-" + p.To
	}
	return p.From
}

// Wall clock time of a departure. Minute may reach 60 under the
// legacy rollover rule, and is rendered as such.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d:00", c.Hour, c.Minute)
}

type Departure struct {
	ID        string
	Sequence  int
	Time      ClockTime
	VehicleID string
}

type Vehicle struct {
	ID   string
	Type string
}

type Attribute struct {
	Name  string
	Class string
	Value string
}

type Route struct {
	ID            string
	Index         int
	From          string
	To            string
	TransportMode string
	Attributes    []Attribute
	Stops         []Stop
	Path          []PathSegment
	Departures    []Departure
}

type TransitLine struct {
	ID         string
	Name       string
	Line       string
	Direction  Direction
	Attributes []Attribute
	Routes     []*Route
}

// A full generated schedule: all lines and the vehicles their
// departures reference, in generation order.
type Schedule struct {
	Lines    []*TransitLine
	Vehicles []Vehicle
}
