package ptschedule

import (
	"fmt"

	"github.com/hw-transit/ptschedule/model"
)

// Hands out vehicles for departures. Each route gets its own counter,
// so ids depend only on line, route index and departure index. Ids
// are unique since the departure index is always the last "_"
// separated part of an id and never repeats for a route key.
//
// The zero value is usable.
type IDGenerator struct {
	Prefix      string
	VehicleType string

	next  map[string]int
	order []model.Vehicle
}

func NewIDGenerator(prefix string, vehicleType string) *IDGenerator {
	return &IDGenerator{
		Prefix:      prefix,
		VehicleType: vehicleType,
		next:        map[string]int{},
	}
}

// Returns the departure index and vehicle for the next departure of
// the given route.
func (g *IDGenerator) Next(routeKey string) (int, model.Vehicle, error) {
	if routeKey == "" {
		return 0, model.Vehicle{}, fmt.Errorf("empty route key")
	}
	if g.next == nil {
		g.next = map[string]int{}
	}

	k := g.next[routeKey]
	g.next[routeKey] = k + 1

	v := model.Vehicle{
		ID:   fmt.Sprintf("%sveh_%s_%d", g.Prefix, routeKey, k),
		Type: g.VehicleType,
	}
	g.order = append(g.order, v)

	return k, v, nil
}

// Number of vehicles issued so far.
func (g *IDGenerator) Count() int {
	return len(g.order)
}

// All vehicles issued so far, in order.
func (g *IDGenerator) Vehicles() []model.Vehicle {
	return append([]model.Vehicle{}, g.order...)
}
