package ptschedule_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hw-transit/ptschedule"
	"github.com/hw-transit/ptschedule/model"
)

func TestIDGenerator(t *testing.T) {
	ids := ptschedule.NewIDGenerator("hw_", "S-Bahn_veh_type")

	k, v, err := ids.Next("s2---1_0")
	require.NoError(t, err)
	assert.Equal(t, 0, k)
	assert.Equal(t, model.Vehicle{ID: "hw_veh_s2---1_0_0", Type: "S-Bahn_veh_type"}, v)

	k, v, err = ids.Next("s2---1_0")
	require.NoError(t, err)
	assert.Equal(t, 1, k)
	assert.Equal(t, "hw_veh_s2---1_0_1", v.ID)

	// Every route counts from zero
	k, v, err = ids.Next("s2_r---1_0")
	require.NoError(t, err)
	assert.Equal(t, 0, k)
	assert.Equal(t, "hw_veh_s2_r---1_0_0", v.ID)

	assert.Equal(t, 3, ids.Count())
	assert.Equal(t, []model.Vehicle{
		{ID: "hw_veh_s2---1_0_0", Type: "S-Bahn_veh_type"},
		{ID: "hw_veh_s2---1_0_1", Type: "S-Bahn_veh_type"},
		{ID: "hw_veh_s2_r---1_0_0", Type: "S-Bahn_veh_type"},
	}, ids.Vehicles())

	// Returned slice is a copy
	vehicles := ids.Vehicles()
	vehicles[0].ID = "x"
	assert.Equal(t, "hw_veh_s2---1_0_0", ids.Vehicles()[0].ID)
}

func TestIDGeneratorSharedAcrossBuilders(t *testing.T) {
	ids := ptschedule.NewIDGenerator(ptschedule.DefaultIDPrefix, ptschedule.DefaultVehicleType)

	first := ptschedule.NewBuilder(ids)
	first.Logger = nil
	_, _, err := first.BuildLine("s2", simpleTables(window("s2", "A", "C")))
	require.NoError(t, err)

	// A second builder sharing the generator continues the counters
	// instead of reissuing ids.
	second := ptschedule.NewBuilder(ids)
	second.Logger = nil
	line, vehicles, err := second.BuildLine("s2", simpleTables(window("s2", "A", "C")))
	require.NoError(t, err)
	assert.Equal(t, "hw_veh_s2---1_0_4", vehicles[0].ID)
	assert.Equal(t, "hw_s2---1_0_4", line.Routes[0].Departures[0].ID)
	assert.Equal(t, 8, ids.Count())
}

func TestIDGeneratorZeroValue(t *testing.T) {
	ids := &ptschedule.IDGenerator{Prefix: "hw_", VehicleType: "bus"}

	k, v, err := ids.Next("s2---1_0")
	require.NoError(t, err)
	assert.Equal(t, 0, k)
	assert.Equal(t, model.Vehicle{ID: "hw_veh_s2---1_0_0", Type: "bus"}, v)

	_, _, err = ids.Next("")
	assert.Error(t, err)
	assert.Equal(t, 1, ids.Count())

	// Literal builder with a literal generator
	b := &ptschedule.Builder{
		Profile: ptschedule.DefaultLineProfile(),
		IDs:     &ptschedule.IDGenerator{Prefix: "hw_", VehicleType: "bus"},
	}
	line, vehicles, err := b.BuildLine("s2", simpleTables(window("s2", "A", "C")))
	require.NoError(t, err)
	assert.Equal(t, 4, len(vehicles))
	assert.Equal(t, "hw_veh_s2---1_0_0", line.Routes[0].Departures[0].VehicleID)
}

func TestBuilderWithoutIDGenerator(t *testing.T) {
	b := &ptschedule.Builder{Profile: ptschedule.DefaultLineProfile()}
	_, _, err := b.BuildLine("s2", simpleTables(window("s2", "A", "C")))
	assert.Error(t, err)
}
