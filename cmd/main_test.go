package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hw-transit/ptschedule/matsimxml"
	"github.com/hw-transit/ptschedule/parse"
	"github.com/hw-transit/ptschedule/testutil"
)

func fixtureDir(t *testing.T) string {
	return testutil.BuildDir(t, map[string][]string{
		parse.FrequencyFile: {
			"line;start_hour;start_min;end_hour;freq_min;from;to",
			"s9;5;0;6;30;Schönefeld;Südkreuz",
			"s9_r;5;15;6;30;Südkreuz;Schönefeld",
		},
		parse.StationLinksFile: {
			"name;forward;backward",
			"Schönefeld;pt_sxf_f;pt_sxf_b",
			"Adlershof;pt_adl_f;pt_adl_b",
			"Südkreuz;pt_sk_f;pt_sk_b",
		},
		parse.StationSequenceFile("s9"): {"Schönefeld", "Adlershof", "Südkreuz"},
		parse.TravelTimesFile("s9"): {
			"from;to;forward;backward",
			"Schönefeld;Adlershof;9;10",
			"Adlershof;Südkreuz;14;13",
		},
	})
}

// Points the global flags at dir, with runs stored under store.
func setFlags(dir string, store string) {
	input = dir
	encoding = "cp1252"
	sqliteDir = store
	postgres = ""
}

func TestGenerateAndInspect(t *testing.T) {
	out := t.TempDir()
	store := filepath.Join(out, "runs")
	setFlags(fixtureDir(t), store)

	var buf bytes.Buffer
	require.NoError(t, runLines(context.Background(), &buf))
	assert.Equal(t, "s9\ns9_r\n", buf.String())

	err := runGenerate(context.Background(), generateOptions{
		ScheduleOut: filepath.Join(out, "schedule.xml.gz"),
		VehiclesOut: filepath.Join(out, "vehicles.xml"),
		VehicleType: "S-Bahn_veh_type",
		Rollover:    "legacy",
		RunID:       "test-run",
	})
	require.NoError(t, err)

	schedule, err := matsimxml.ReadScheduleFile(filepath.Join(out, "schedule.xml.gz"))
	require.NoError(t, err)
	require.Equal(t, 2, len(schedule.Lines))
	assert.Equal(t, "hw_s9---1", schedule.Lines[0].ID)
	assert.Equal(t, "hw_s9_r---1", schedule.Lines[1].ID)

	route := schedule.Lines[1].Routes[0]
	require.Equal(t, 3, len(route.Stops))
	assert.Equal(t, "sk_b", route.Stops[0].RefID)
	assert.Equal(t, "00:23:00", route.Stops[2].Offset.String())

	vehicles, err := matsimxml.ReadVehiclesFile(filepath.Join(out, "vehicles.xml"))
	require.NoError(t, err)
	// 05:00, 05:30, 05:60 and 05:15, 05:45
	assert.Equal(t, 5, len(vehicles))

	// The run was stored
	s, err := openStorage()
	require.NoError(t, err)
	defer s.Close()

	buf.Reset()
	require.NoError(t, listRuns(s, &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "test-run "), buf.String())
	assert.Contains(t, buf.String(), "lines=s9,s9_r")

	buf.Reset()
	require.NoError(t, summarizeRun(s, "test-run", &buf))
	assert.Contains(t, buf.String(), "hw_s9_r---1 (backward)")
	assert.Contains(t, buf.String(), "hw_s9---1_0 Schönefeld -> Südkreuz, 3 stops, 3 departures 05:00:00..05:60:00")
	assert.Contains(t, buf.String(), "5 vehicles")

	assert.Error(t, summarizeRun(s, "no-such-run", &buf))
}

func TestGenerateFailsOnBadInput(t *testing.T) {
	out := t.TempDir()
	setFlags(fixtureDir(t), "")

	err := runGenerate(context.Background(), generateOptions{
		Lines:       []string{"s9", "s75"},
		ScheduleOut: filepath.Join(out, "schedule.xml"),
		VehiclesOut: filepath.Join(out, "vehicles.xml"),
		Rollover:    "legacy",
	})
	assert.Error(t, err)

	// Nothing is written when any line fails
	_, err = matsimxml.ReadScheduleFile(filepath.Join(out, "schedule.xml"))
	assert.Error(t, err)

	err = runGenerate(context.Background(), generateOptions{
		ScheduleOut: filepath.Join(out, "schedule.xml"),
		VehiclesOut: filepath.Join(out, "vehicles.xml"),
		Rollover:    "sometimes",
	})
	assert.Error(t, err)
}

func TestGenerateWritesNothingWhenStorageFails(t *testing.T) {
	out := t.TempDir()
	setFlags(fixtureDir(t), filepath.Join(out, "runs"))

	// Run database can't be created in a missing directory
	err := runGenerate(context.Background(), generateOptions{
		ScheduleOut: filepath.Join(out, "schedule.xml"),
		VehiclesOut: filepath.Join(out, "vehicles.xml"),
		Rollover:    "legacy",
		RunID:       "missing/test-run",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storing run")

	_, err = os.Stat(filepath.Join(out, "schedule.xml"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(out, "vehicles.xml"))
	assert.True(t, os.IsNotExist(err))
}

func TestOpenStorage(t *testing.T) {
	setFlags(".", "")
	s, err := openStorage()
	require.NoError(t, err)
	assert.Nil(t, s)

	sqliteDir = t.TempDir()
	postgres = "postgres://localhost/ptschedule"
	_, err = openStorage()
	assert.Error(t, err)
}
