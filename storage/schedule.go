package storage

import (
	"fmt"

	"github.com/hw-transit/ptschedule/model"
)

// Writes a full schedule and closes the writer.
func WriteSchedule(writer ScheduleWriter, schedule *model.Schedule) error {
	for _, line := range schedule.Lines {
		err := writer.WriteLine(line)
		if err != nil {
			return fmt.Errorf("writing line %s: %w", line.ID, err)
		}
		for _, route := range line.Routes {
			err = writer.WriteRoute(line.ID, route)
			if err != nil {
				return fmt.Errorf("writing route %s: %w", route.ID, err)
			}
		}
	}

	err := writer.BeginDepartures()
	if err != nil {
		return fmt.Errorf("beginning departures: %w", err)
	}
	for _, line := range schedule.Lines {
		for _, route := range line.Routes {
			for i := range route.Departures {
				err = writer.WriteDeparture(route.ID, &route.Departures[i])
				if err != nil {
					return fmt.Errorf("writing departure %s: %w", route.Departures[i].ID, err)
				}
			}
		}
	}
	err = writer.EndDepartures()
	if err != nil {
		return fmt.Errorf("ending departures: %w", err)
	}

	for i := range schedule.Vehicles {
		err = writer.WriteVehicle(&schedule.Vehicles[i])
		if err != nil {
			return fmt.Errorf("writing vehicle %s: %w", schedule.Vehicles[i].ID, err)
		}
	}

	err = writer.Close()
	if err != nil {
		return fmt.Errorf("closing schedule writer: %w", err)
	}

	return nil
}

// Reassembles a full schedule from storage.
func ReadSchedule(reader ScheduleReader) (*model.Schedule, error) {
	lines, err := reader.Lines()
	if err != nil {
		return nil, fmt.Errorf("reading lines: %w", err)
	}

	for _, line := range lines {
		routes, err := reader.Routes(line.ID)
		if err != nil {
			return nil, fmt.Errorf("reading routes of %s: %w", line.ID, err)
		}
		for _, route := range routes {
			departures, err := reader.Departures(route.ID)
			if err != nil {
				return nil, fmt.Errorf("reading departures of %s: %w", route.ID, err)
			}
			for _, d := range departures {
				route.Departures = append(route.Departures, *d)
			}
		}
		line.Routes = routes
	}

	vehicles, err := reader.Vehicles()
	if err != nil {
		return nil, fmt.Errorf("reading vehicles: %w", err)
	}

	schedule := &model.Schedule{Lines: lines}
	for _, v := range vehicles {
		schedule.Vehicles = append(schedule.Vehicles, *v)
	}

	return schedule, nil
}
