// Package ptschedule generates synthetic MATSim transit schedules from
// tabular line data: frequency windows, station sequences, travel
// times and the network links serving each station.
package ptschedule

import (
	"errors"
	"fmt"
)

const (
	DefaultIDPrefix      = "hw_"
	DefaultIDSuffix      = "---1"
	DefaultAgencyID      = "401"
	DefaultRouteType     = "109"
	DefaultTransportMode = "Suburban Railway"
	DefaultVehicleType   = "S-Bahn_veh_type"

	// Link ids carrying this prefix are served by a stop facility
	// with the same id minus the prefix.
	DefaultStopLinkPrefix = "pt_"

	javaString = "java.lang.String"
)

var ErrInvalidFrequency = errors.New("invalid frequency window")

// Returned when the input tables don't agree with each other, e.g. a
// station of the line sequence is missing from the link mapping.
// The whole line is rejected.
type DataIntegrityError struct {
	Line    string
	Station string
	Table   string
	Reason  string
}

func (e *DataIntegrityError) Error() string {
	if e.Station == "" {
		return fmt.Sprintf("line %s: %s (%s)", e.Line, e.Reason, e.Table)
	}
	return fmt.Sprintf("line %s: station '%s' %s (%s)", e.Line, e.Station, e.Reason, e.Table)
}

// Naming and attributes applied to every generated line.
type LineProfile struct {
	IDPrefix       string
	IDSuffix       string
	AgencyID       string
	RouteType      string
	TransportMode  string
	StopLinkPrefix string
}

func DefaultLineProfile() LineProfile {
	return LineProfile{
		IDPrefix:       DefaultIDPrefix,
		IDSuffix:       DefaultIDSuffix,
		AgencyID:       DefaultAgencyID,
		RouteType:      DefaultRouteType,
		TransportMode:  DefaultTransportMode,
		StopLinkPrefix: DefaultStopLinkPrefix,
	}
}

// "s2_r" -> "hw_s2_r---1"
func (p LineProfile) LineID(line string) string {
	return p.IDPrefix + line + p.IDSuffix
}

// Identifies route n of a line without the id prefix, e.g.
// "s2_r---1_0". Departure and vehicle ids are derived from it.
func (p LineProfile) RouteKey(line string, n int) string {
	return fmt.Sprintf("%s%s_%d", line, p.IDSuffix, n)
}
