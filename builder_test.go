package ptschedule_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hw-transit/ptschedule"
	"github.com/hw-transit/ptschedule/model"
	"github.com/hw-transit/ptschedule/parse"
)

// Line s2 runs A-B-C. Travel times differ by direction.
func simpleTables(freqs ...model.LineFrequency) *model.LineTables {
	return &model.LineTables{
		Frequencies: freqs,
		Stations:    model.StationSequence{"A", "B", "C"},
		TravelTimes: []model.TravelTime{
			{From: "A", To: "B", Forward: 5, Backward: 6},
			{From: "B", To: "C", Forward: 7, Backward: 8},
		},
		Links: []model.StationLink{
			{Name: "A", Forward: "pt_a_f", Backward: "pt_a_b"},
			{Name: "B", Forward: "pt_b_f", Backward: "pt_b_b"},
			{Name: "C", Forward: "pt_c_f", Backward: "pt_c_b"},
		},
	}
}

func window(line, from, to string) model.LineFrequency {
	return model.LineFrequency{
		Line:             line,
		StartHour:        5,
		StartMinute:      0,
		EndHour:          6,
		FrequencyMinutes: 20,
		From:             from,
		To:               to,
	}
}

func quietBuilder() *ptschedule.Builder {
	b := ptschedule.NewBuilder(ptschedule.NewIDGenerator(ptschedule.DefaultIDPrefix, ptschedule.DefaultVehicleType))
	b.Logger = nil
	return b
}

type stopSummary struct {
	RefID  string
	Offset string
}

func summarizeStops(route *model.Route) []stopSummary {
	s := []stopSummary{}
	for _, stop := range route.Stops {
		s = append(s, stopSummary{stop.RefID, stop.Offset.String()})
	}
	return s
}

func linkIDs(route *model.Route) []string {
	ids := []string{}
	for _, seg := range route.Path {
		ids = append(ids, seg.LinkID())
	}
	return ids
}

func TestBuildLineForward(t *testing.T) {
	b := quietBuilder()

	line, vehicles, err := b.BuildLine("s2", simpleTables(window("s2", "A", "C")))
	require.NoError(t, err)

	assert.Equal(t, "hw_s2---1", line.ID)
	assert.Equal(t, "s2", line.Name)
	assert.Equal(t, model.DirectionForward, line.Direction)
	assert.Equal(t, []model.Attribute{
		{Name: "gtfs_agency_id", Class: "java.lang.String", Value: "401"},
		{Name: "gtfs_route_short_name", Class: "java.lang.String", Value: "S2"},
		{Name: "gtfs_route_type", Class: "java.lang.String", Value: "109"},
	}, line.Attributes)

	require.Equal(t, 1, len(line.Routes))
	route := line.Routes[0]
	assert.Equal(t, "hw_s2---1_0", route.ID)
	assert.Equal(t, "Suburban Railway", route.TransportMode)
	assert.Equal(t, []model.Attribute{
		{Name: "simple_route_type", Class: "java.lang.String", Value: "Suburban Railway"},
	}, route.Attributes)

	assert.Equal(t, []stopSummary{
		{"a_f", "00:00:00"},
		{"b_f", "00:05:00"},
		{"c_f", "00:12:00"},
	}, summarizeStops(route))
	assert.Equal(t, "A", route.Stops[0].Station)
	assert.True(t, route.Stops[0].AwaitDeparture())
	assert.Equal(t, route.Stops[2].ArrivalOffset(), route.Stops[2].DepartureOffset())

	assert.Equal(t, []string{
		"pt_a_f",
		"pt_a_f-pt_b_f",
		"pt_b_f",
		"pt_b_f-pt_c_f",
		"pt_c_f",
	}, linkIDs(route))

	// 05:00 to 06:00 every 20 min, legacy rollover
	require.Equal(t, 4, len(route.Departures))
	assert.Equal(t, model.Departure{
		ID:        "hw_s2---1_0_0",
		Sequence:  0,
		Time:      model.ClockTime{Hour: 5, Minute: 0},
		VehicleID: "hw_veh_s2---1_0_0",
	}, route.Departures[0])
	assert.Equal(t, "05:60:00", route.Departures[3].Time.String())
	assert.Equal(t, "hw_veh_s2---1_0_3", route.Departures[3].VehicleID)

	require.Equal(t, 4, len(vehicles))
	for i, v := range vehicles {
		assert.Equal(t, route.Departures[i].VehicleID, v.ID)
		assert.Equal(t, "S-Bahn_veh_type", v.Type)
	}
}

func TestBuildLineBackward(t *testing.T) {
	b := quietBuilder()

	line, _, err := b.BuildLine("s2_r", simpleTables(window("s2_r", "C", "A")))
	require.NoError(t, err)

	assert.Equal(t, "hw_s2_r---1", line.ID)
	assert.Equal(t, model.DirectionBackward, line.Direction)
	assert.Equal(t, "S2", line.Attributes[1].Value)

	require.Equal(t, 1, len(line.Routes))
	route := line.Routes[0]
	assert.Equal(t, "hw_s2_r---1_0", route.ID)

	// Backward minutes are used: C->B 8, B->A 6
	assert.Equal(t, []stopSummary{
		{"c_b", "00:00:00"},
		{"b_b", "00:08:00"},
		{"a_b", "00:14:00"},
	}, summarizeStops(route))
	assert.Equal(t, []string{
		"pt_c_b",
		"pt_c_b-pt_b_b",
		"pt_b_b",
		"pt_b_b-pt_a_b",
		"pt_a_b",
	}, linkIDs(route))
	assert.Equal(t, "hw_veh_s2_r---1_0_0", route.Departures[0].VehicleID)
}

func TestBuildLineReversal(t *testing.T) {
	tables := simpleTables(window("s2", "A", "C"))
	tables.TravelTimes[0].Backward = 5
	tables.TravelTimes[1].Backward = 7

	forward, _, err := quietBuilder().BuildLine("s2", tables)
	require.NoError(t, err)

	tables.Frequencies = []model.LineFrequency{window("s2_r", "C", "A")}
	backward, _, err := quietBuilder().BuildLine("s2_r", tables)
	require.NoError(t, err)

	f := forward.Routes[0].Stops
	r := backward.Routes[0].Stops
	require.Equal(t, len(f), len(r))
	for i := range f {
		assert.Equal(t, f[i].Station, r[len(r)-1-i].Station)
	}

	// Offsets are recomputed, not mirrored
	assert.Equal(t, []stopSummary{
		{"c_b", "00:00:00"},
		{"b_b", "00:07:00"},
		{"a_b", "00:12:00"},
	}, summarizeStops(backward.Routes[0]))
}

func TestBuildLineSubRoutes(t *testing.T) {
	b := quietBuilder()

	line, vehicles, err := b.BuildLine("s2", simpleTables(
		window("s2", "A", "C"),
		window("s2", "B", "C"),
		window("s2", "A", "B"),
	))
	require.NoError(t, err)
	require.Equal(t, 3, len(line.Routes))

	assert.Equal(t, "hw_s2---1_1", line.Routes[1].ID)
	assert.Equal(t, []stopSummary{
		{"b_f", "00:00:00"},
		{"c_f", "00:07:00"},
	}, summarizeStops(line.Routes[1]))
	assert.Equal(t, []string{"pt_b_f", "pt_b_f-pt_c_f", "pt_c_f"}, linkIDs(line.Routes[1]))

	assert.Equal(t, []stopSummary{
		{"a_f", "00:00:00"},
		{"b_f", "00:05:00"},
	}, summarizeStops(line.Routes[2]))

	assert.Equal(t, "hw_veh_s2---1_2_0", line.Routes[2].Departures[0].VehicleID)

	seen := map[string]bool{}
	for _, v := range vehicles {
		assert.False(t, seen[v.ID], v.ID)
		seen[v.ID] = true
	}
	assert.Equal(t, 12, len(vehicles))
}

func TestBuildLineOffsetsAndPath(t *testing.T) {
	tables := &model.LineTables{
		Frequencies: []model.LineFrequency{window("s9", "A", "E")},
		Stations:    model.StationSequence{"A", "B", "C", "D", "E"},
		TravelTimes: []model.TravelTime{
			{From: "A", To: "B", Forward: 2.5},
			{From: "B", To: "C", Forward: 2.5},
			{From: "C", To: "D", Forward: 0},
			{From: "D", To: "E", Forward: 58.9},
		},
		Links: []model.StationLink{
			{Name: "A", Forward: "a"},
			{Name: "B", Forward: "b"},
			{Name: "C", Forward: "c"},
			{Name: "D", Forward: "d"},
			{Name: "E", Forward: "e"},
		},
	}

	line, _, err := quietBuilder().BuildLine("s9", tables)
	require.NoError(t, err)
	route := line.Routes[0]

	// Minutes accumulate before truncation
	assert.Equal(t, []stopSummary{
		{"a", "00:00:00"},
		{"b", "00:02:00"},
		{"c", "00:05:00"},
		{"d", "00:05:00"},
		{"e", "01:03:00"},
	}, summarizeStops(route))

	for i := 1; i < len(route.Stops); i++ {
		assert.GreaterOrEqual(t, route.Stops[i].Offset, route.Stops[i-1].Offset)
	}

	// Stationary, connector, stationary, ...
	require.Equal(t, 2*len(route.Stops)-1, len(route.Path))
	for i, seg := range route.Path {
		if i%2 == 0 {
			assert.Equal(t, model.SegmentStationary, seg.Kind)
			assert.Equal(t, route.Stops[i/2].RefID, seg.LinkID())
		} else {
			assert.Equal(t, model.SegmentConnector, seg.Kind)
			assert.Equal(t, route.Path[i-1].From, seg.From)
			assert.Equal(t, route.Path[i+1].From, seg.To)
		}
	}
}

func TestBuildLineIntegrityErrors(t *testing.T) {
	for _, tc := range []struct {
		name    string
		line    string
		tables  func() *model.LineTables
		station string
		table   string
	}{
		{
			"station missing from links",
			"s2",
			func() *model.LineTables {
				tables := simpleTables(window("s2", "A", "C"))
				tables.Links = tables.Links[:2]
				return tables
			},
			"C",
			parse.StationLinksFile,
		},
		{
			"station without backward link",
			"s2_r",
			func() *model.LineTables {
				tables := simpleTables(window("s2_r", "C", "A"))
				tables.Links[1].Backward = ""
				return tables
			},
			"B",
			parse.StationLinksFile,
		},
		{
			"from not on line",
			"s2",
			func() *model.LineTables {
				return simpleTables(window("s2", "X", "C"))
			},
			"X",
			parse.StationSequenceFile("s2"),
		},
		{
			"to not on line",
			"s2",
			func() *model.LineTables {
				return simpleTables(window("s2", "A", "X"))
			},
			"X",
			parse.StationSequenceFile("s2"),
		},
		{
			"to before from",
			"s2",
			func() *model.LineTables {
				return simpleTables(window("s2", "C", "A"))
			},
			"A",
			parse.StationSequenceFile("s2"),
		},
		{
			"from equals to",
			"s2",
			func() *model.LineTables {
				return simpleTables(window("s2", "B", "B"))
			},
			"B",
			parse.FrequencyFile,
		},
		{
			"missing travel time inside span",
			"s2",
			func() *model.LineTables {
				tables := simpleTables(window("s2", "A", "C"))
				tables.TravelTimes = tables.TravelTimes[:1]
				return tables
			},
			"C",
			parse.TravelTimesFile("s2"),
		},
		{
			"blank travel time for direction",
			"s2_r",
			func() *model.LineTables {
				tables := simpleTables(window("s2_r", "C", "A"))
				tables.TravelTimes[1].Backward = math.NaN()
				return tables
			},
			"B",
			parse.TravelTimesFile("s2"),
		},
		{
			"station reached twice",
			"s2",
			func() *model.LineTables {
				tables := simpleTables(window("s2", "A", "C"))
				tables.TravelTimes = append(tables.TravelTimes, model.TravelTime{From: "A", To: "C", Forward: 1})
				return tables
			},
			"C",
			parse.TravelTimesFile("s2"),
		},
		{
			"no frequency rows",
			"s2",
			func() *model.LineTables {
				return simpleTables()
			},
			"",
			parse.FrequencyFile,
		},
		{
			"frequency row of another line",
			"s2",
			func() *model.LineTables {
				return simpleTables(window("s2", "A", "C"), window("s8", "A", "B"))
			},
			"",
			parse.FrequencyFile,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ids := ptschedule.NewIDGenerator(ptschedule.DefaultIDPrefix, ptschedule.DefaultVehicleType)
			b := ptschedule.NewBuilder(ids)
			b.Logger = nil

			line, vehicles, err := b.BuildLine(tc.line, tc.tables())
			require.Error(t, err)
			assert.Nil(t, line)
			assert.Nil(t, vehicles)

			var integrityErr *ptschedule.DataIntegrityError
			require.True(t, errors.As(err, &integrityErr), err.Error())
			assert.Equal(t, tc.line, integrityErr.Line)
			assert.Equal(t, tc.station, integrityErr.Station)
			assert.Equal(t, tc.table, integrityErr.Table)

			// Failed lines issue no vehicles
			assert.Equal(t, 0, ids.Count())
		})
	}
}

func TestBuildLineMissingTravelTimeOutsideSpan(t *testing.T) {
	tables := simpleTables(window("s2", "A", "B"))
	tables.TravelTimes = tables.TravelTimes[:1]

	line, _, err := quietBuilder().BuildLine("s2", tables)
	require.NoError(t, err)
	assert.Equal(t, 2, len(line.Routes[0].Stops))
}

func TestBuildLineInvalidFrequency(t *testing.T) {
	freq := window("s2", "A", "C")
	freq.FrequencyMinutes = 0

	ids := ptschedule.NewIDGenerator(ptschedule.DefaultIDPrefix, ptschedule.DefaultVehicleType)
	b := ptschedule.NewBuilder(ids)
	b.Logger = nil

	_, _, err := b.BuildLine("s2", simpleTables(window("s2", "A", "B"), freq))
	assert.ErrorIs(t, err, ptschedule.ErrInvalidFrequency)
	assert.Equal(t, 0, ids.Count())
}

func TestBuildLineStrictRollover(t *testing.T) {
	b := quietBuilder()
	b.Rollover = ptschedule.RolloverStrict

	line, vehicles, err := b.BuildLine("s2", simpleTables(window("s2", "A", "C")))
	require.NoError(t, err)
	assert.Equal(t, 3, len(line.Routes[0].Departures))
	assert.Equal(t, 3, len(vehicles))
}

func TestBuildLineProfile(t *testing.T) {
	b := ptschedule.NewBuilder(ptschedule.NewIDGenerator("bb_", "RE_veh_type"))
	b.Logger = nil
	b.Profile = ptschedule.LineProfile{
		IDPrefix:       "bb_",
		IDSuffix:       "---2",
		AgencyID:       "108",
		RouteType:      "106",
		TransportMode:  "Regional Rail",
		StopLinkPrefix: "",
	}

	line, vehicles, err := b.BuildLine("re1", simpleTables(window("re1", "A", "B")))
	require.NoError(t, err)

	assert.Equal(t, "bb_re1---2", line.ID)
	assert.Equal(t, "108", line.Attributes[0].Value)
	assert.Equal(t, "RE1", line.Attributes[1].Value)
	assert.Equal(t, "106", line.Attributes[2].Value)
	assert.Equal(t, "bb_re1---2_0", line.Routes[0].ID)
	assert.Equal(t, "Regional Rail", line.Routes[0].TransportMode)

	// Without a stop prefix, stops refer to the link itself
	assert.Equal(t, "pt_a_f", line.Routes[0].Stops[0].RefID)

	assert.Equal(t, "bb_re1---2_0_0", line.Routes[0].Departures[0].ID)
	assert.Equal(t, "bb_veh_re1---2_0_0", vehicles[0].ID)
	assert.Equal(t, "RE_veh_type", vehicles[0].Type)
}
