// Package matsimxml writes generated schedules as MATSim
// transitSchedule and vehicleDefinitions documents, and reads them
// back.
package matsimxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hw-transit/ptschedule/model"
)

const (
	ScheduleDocType = `<!DOCTYPE transitSchedule SYSTEM "http://www.matsim.org/files/dtd/transitSchedule_v2.dtd">`

	VehiclesNamespace      = "http://www.matsim.org/files/dtd"
	VehiclesSchemaLocation = "http://www.matsim.org/files/dtd http://www.matsim.org/files/dtd/vehicleDefinitions_v2.0.xsd"

	DefaultIndent = "    "
)

type Options struct {
	// Indentation per nesting level. Defaults to four spaces.
	Indent string

	// Declare the MATSim DTD (schedule) or schema (vehicles), so
	// MATSim can pick a reader without further hints.
	DocType bool
}

func (o Options) indent() string {
	if o.Indent == "" {
		return DefaultIndent
	}
	return o.Indent
}

type xmlSchedule struct {
	XMLName xml.Name  `xml:"transitSchedule"`
	Lines   []xmlLine `xml:"transitLine"`
}

type xmlLine struct {
	XMLName    xml.Name       `xml:"transitLine"`
	ID         string         `xml:"id,attr"`
	Name       string         `xml:"name,attr"`
	Attributes *xmlAttributes `xml:"attributes"`
	Routes     []xmlRoute     `xml:"transitRoute"`
}

type xmlAttributes struct {
	Attributes []xmlAttribute `xml:"attribute"`
}

type xmlAttribute struct {
	Name  string `xml:"name,attr"`
	Class string `xml:"class,attr"`
	Value string `xml:",chardata"`
}

type xmlRoute struct {
	ID            string          `xml:"id,attr"`
	Attributes    *xmlAttributes  `xml:"attributes"`
	TransportMode string          `xml:"transportMode"`
	RouteProfile  xmlRouteProfile `xml:"routeProfile"`
	Route         xmlRouteLinks   `xml:"route"`
	Departures    xmlDepartures   `xml:"departures"`
}

type xmlRouteProfile struct {
	Stops []xmlStop `xml:"stop"`
}

type xmlStop struct {
	RefID           string `xml:"refId,attr"`
	ArrivalOffset   string `xml:"arrivalOffset,attr"`
	DepartureOffset string `xml:"departureOffset,attr"`
	AwaitDeparture  bool   `xml:"awaitDeparture,attr"`
}

type xmlRouteLinks struct {
	Links []xmlLink `xml:"link"`
}

type xmlLink struct {
	RefID string `xml:"refId,attr"`
}

type xmlDepartures struct {
	Departures []xmlDeparture `xml:"departure"`
}

type xmlDeparture struct {
	ID            string `xml:"id,attr"`
	DepartureTime string `xml:"departureTime,attr"`
	VehicleRefID  string `xml:"vehicleRefId,attr"`
}

type xmlVehicles struct {
	XMLName  xml.Name     `xml:"vehicleDefinitions"`
	Attrs    []xml.Attr   `xml:",any,attr"`
	Vehicles []xmlVehicle `xml:"vehicle"`
}

type xmlVehicle struct {
	ID   string `xml:"id,attr"`
	Type string `xml:"type,attr"`
}

func toXMLAttributes(attrs []model.Attribute) *xmlAttributes {
	if len(attrs) == 0 {
		return nil
	}
	x := &xmlAttributes{}
	for _, a := range attrs {
		x.Attributes = append(x.Attributes, xmlAttribute{Name: a.Name, Class: a.Class, Value: a.Value})
	}
	return x
}

func toXMLLine(line *model.TransitLine) xmlLine {
	x := xmlLine{
		ID:         line.ID,
		Name:       line.Name,
		Attributes: toXMLAttributes(line.Attributes),
	}

	for _, route := range line.Routes {
		r := xmlRoute{
			ID:            route.ID,
			Attributes:    toXMLAttributes(route.Attributes),
			TransportMode: route.TransportMode,
		}
		for _, stop := range route.Stops {
			r.RouteProfile.Stops = append(r.RouteProfile.Stops, xmlStop{
				RefID:           stop.RefID,
				ArrivalOffset:   stop.ArrivalOffset(),
				DepartureOffset: stop.DepartureOffset(),
				AwaitDeparture:  stop.AwaitDeparture(),
			})
		}
		for _, seg := range route.Path {
			r.Route.Links = append(r.Route.Links, xmlLink{RefID: seg.LinkID()})
		}
		for _, d := range route.Departures {
			r.Departures.Departures = append(r.Departures.Departures, xmlDeparture{
				ID:            d.ID,
				DepartureTime: d.Time.String(),
				VehicleRefID:  d.VehicleID,
			})
		}
		x.Routes = append(x.Routes, r)
	}

	return x
}

func marshal(header string, v interface{}, opts Options) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteString(header)

	enc := xml.NewEncoder(buf)
	enc.Indent("", opts.indent())
	err := enc.Encode(v)
	if err != nil {
		return nil, err
	}
	err = enc.Close()
	if err != nil {
		return nil, err
	}

	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Serializes a single line as a transitLine element, without XML
// declaration.
func MarshalLine(line *model.TransitLine, opts Options) ([]byte, error) {
	data, err := marshal("", toXMLLine(line), opts)
	if err != nil {
		return nil, fmt.Errorf("marshaling line %s: %w", line.ID, err)
	}
	return data, nil
}

// Serializes the lines of a schedule as a transitSchedule document.
// Vehicles go in a separate document, see MarshalVehicles().
func MarshalSchedule(schedule *model.Schedule, opts Options) ([]byte, error) {
	doc := xmlSchedule{}
	for _, line := range schedule.Lines {
		doc.Lines = append(doc.Lines, toXMLLine(line))
	}

	header := xml.Header
	if opts.DocType {
		header += ScheduleDocType + "\n"
	}

	data, err := marshal(header, doc, opts)
	if err != nil {
		return nil, fmt.Errorf("marshaling schedule: %w", err)
	}
	return data, nil
}

func MarshalVehicles(vehicles []model.Vehicle, opts Options) ([]byte, error) {
	doc := xmlVehicles{}
	if opts.DocType {
		doc.Attrs = []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: VehiclesNamespace},
			{Name: xml.Name{Local: "xmlns:xsi"}, Value: "http://www.w3.org/2001/XMLSchema-instance"},
			{Name: xml.Name{Local: "xsi:schemaLocation"}, Value: VehiclesSchemaLocation},
		}
	}
	for _, v := range vehicles {
		doc.Vehicles = append(doc.Vehicles, xmlVehicle{ID: v.ID, Type: v.Type})
	}

	data, err := marshal(xml.Header, doc, opts)
	if err != nil {
		return nil, fmt.Errorf("marshaling vehicles: %w", err)
	}
	return data, nil
}

// Parses "HH:MM:SS". Minutes are not range checked, since departures
// may legitimately read e.g. "05:60:00". Seconds are dropped.
func parseHHMMSS(s string) (int, int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, 0, fmt.Errorf("malformed time '%s'", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed hour in '%s'", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed minute in '%s'", s)
	}
	if _, err := strconv.Atoi(parts[2]); err != nil {
		return 0, 0, fmt.Errorf("malformed second in '%s'", s)
	}
	return hour, minute, nil
}

func fromXMLAttributes(x *xmlAttributes) []model.Attribute {
	attrs := []model.Attribute{}
	if x == nil {
		return attrs
	}
	for _, a := range x.Attributes {
		attrs = append(attrs, model.Attribute{Name: a.Name, Class: a.Class, Value: a.Value})
	}
	return attrs
}

// Reads a transitSchedule document. Data the document doesn't carry,
// such as station names and route endpoints, is left blank. Path
// segments alternate as written: links at even positions are
// stationary, those between them connectors.
func ReadSchedule(r io.Reader) (*model.Schedule, error) {
	doc := xmlSchedule{}
	err := xml.NewDecoder(r).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("decoding schedule: %w", err)
	}

	schedule := &model.Schedule{
		Lines:    []*model.TransitLine{},
		Vehicles: []model.Vehicle{},
	}

	for _, xl := range doc.Lines {
		_, direction := model.ParseLine(xl.Name)
		line := &model.TransitLine{
			ID:         xl.ID,
			Name:       xl.Name,
			Line:       xl.Name,
			Direction:  direction,
			Attributes: fromXMLAttributes(xl.Attributes),
			Routes:     []*model.Route{},
		}

		for n, xr := range xl.Routes {
			route := &model.Route{
				ID:            xr.ID,
				Index:         n,
				TransportMode: xr.TransportMode,
				Attributes:    fromXMLAttributes(xr.Attributes),
				Stops:         []model.Stop{},
				Path:          []model.PathSegment{},
			}

			for _, xs := range xr.RouteProfile.Stops {
				hour, minute, err := parseHHMMSS(xs.ArrivalOffset)
				if err != nil {
					return nil, fmt.Errorf("route %s: stop %s: %w", xr.ID, xs.RefID, err)
				}
				route.Stops = append(route.Stops, model.Stop{
					RefID:  xs.RefID,
					Offset: model.Offset(hour*60 + minute),
				})
			}

			links := xr.Route.Links
			for i, l := range links {
				if i%2 == 0 {
					route.Path = append(route.Path, model.Stationary(l.RefID))
					continue
				}
				if i+1 >= len(links) {
					return nil, fmt.Errorf("route %s: path ends in connector %s", xr.ID, l.RefID)
				}
				connector := model.Connector(links[i-1].RefID, links[i+1].RefID)
				if connector.LinkID() != l.RefID {
					return nil, fmt.Errorf("route %s: link %s doesn't connect %s and %s", xr.ID, l.RefID, links[i-1].RefID, links[i+1].RefID)
				}
				route.Path = append(route.Path, connector)
			}

			for k, xd := range xr.Departures.Departures {
				hour, minute, err := parseHHMMSS(xd.DepartureTime)
				if err != nil {
					return nil, fmt.Errorf("departure %s: %w", xd.ID, err)
				}
				route.Departures = append(route.Departures, model.Departure{
					ID:        xd.ID,
					Sequence:  k,
					Time:      model.ClockTime{Hour: hour, Minute: minute},
					VehicleID: xd.VehicleRefID,
				})
			}

			line.Routes = append(line.Routes, route)
		}

		schedule.Lines = append(schedule.Lines, line)
	}

	return schedule, nil
}

func ReadVehicles(r io.Reader) ([]model.Vehicle, error) {
	doc := xmlVehicles{}
	err := xml.NewDecoder(r).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("decoding vehicles: %w", err)
	}

	vehicles := []model.Vehicle{}
	for _, v := range doc.Vehicles {
		vehicles = append(vehicles, model.Vehicle{ID: v.ID, Type: v.Type})
	}
	return vehicles, nil
}
