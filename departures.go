package ptschedule

import (
	"fmt"
	"strings"

	"github.com/hw-transit/ptschedule/model"
)

// How the departure clock carries minutes into hours.
type RolloverRule int

const (
	// Carries only once minutes exceed 60, so a departure can be
	// scheduled at e.g. 05:60:00. Reproduces previously generated
	// schedules byte for byte.
	RolloverLegacy RolloverRule = iota

	// Carries as soon as minutes reach 60.
	RolloverStrict
)

func (r RolloverRule) String() string {
	if r == RolloverStrict {
		return "strict"
	}
	return "legacy"
}

func ParseRolloverRule(s string) (RolloverRule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "legacy":
		return RolloverLegacy, nil
	case "strict":
		return RolloverStrict, nil
	}
	return 0, fmt.Errorf("unknown rollover rule: '%s'", s)
}

// Departure times of a frequency window: one every FrequencyMinutes,
// starting at StartHour:StartMinute, for as long as the hour is before
// EndHour.
func GenerateDepartures(f model.LineFrequency, rule RolloverRule) ([]model.ClockTime, error) {
	if f.FrequencyMinutes <= 0 {
		return nil, fmt.Errorf("%w: freq_min must be positive, got %d", ErrInvalidFrequency, f.FrequencyMinutes)
	}
	if f.StartHour < 0 || f.EndHour < 0 {
		return nil, fmt.Errorf("%w: negative hour", ErrInvalidFrequency)
	}
	if f.StartMinute < 0 || f.StartMinute > 59 {
		return nil, fmt.Errorf("%w: start_min out of range: %d", ErrInvalidFrequency, f.StartMinute)
	}

	times := []model.ClockTime{}

	hour, minute := f.StartHour, f.StartMinute
	for hour < f.EndHour {
		times = append(times, model.ClockTime{Hour: hour, Minute: minute})

		minute += f.FrequencyMinutes
		if rule == RolloverStrict {
			hour += minute / 60
			minute %= 60
		} else if minute > 60 {
			minute -= 60
			hour++
		}
	}

	return times, nil
}
