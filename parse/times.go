package parse

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/hw-transit/ptschedule/model"
)

type TravelTimeCSV struct {
	From     string `csv:"from"`
	To       string `csv:"to"`
	Forward  string `csv:"forward"`
	Backward string `csv:"backward"`
}

// Blank minutes parse as NaN. They only become an error once the
// builder needs them, so forward-only lines may leave backward
// times empty.
func parseMinutes(field string, value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return math.NaN(), nil
	}
	m, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s '%s': %w", field, value, err)
	}
	if m < 0 || math.IsInf(m, 0) || math.IsNaN(m) {
		return 0, fmt.Errorf("invalid %s '%s'", field, value)
	}
	return m, nil
}

func ParseTravelTimes(data io.Reader) ([]model.TravelTime, error) {
	timeCsv := []*TravelTimeCSV{}
	if err := gocsv.UnmarshalCSV(newCSVReader(data), &timeCsv); err != nil {
		return nil, fmt.Errorf("unmarshaling travel times: %w", err)
	}

	times := []model.TravelTime{}

	for i, t := range timeCsv {
		from := strings.TrimSpace(t.From)
		to := strings.TrimSpace(t.To)
		if from == "" || to == "" {
			return nil, fmt.Errorf("missing from or to station (row %d)", i+1)
		}

		forward, err := parseMinutes("forward", t.Forward)
		if err != nil {
			return nil, errors.Wrapf(err, "'%s' to '%s' (row %d)", from, to, i+1)
		}
		backward, err := parseMinutes("backward", t.Backward)
		if err != nil {
			return nil, errors.Wrapf(err, "'%s' to '%s' (row %d)", from, to, i+1)
		}

		times = append(times, model.TravelTime{
			From:     from,
			To:       to,
			Forward:  forward,
			Backward: backward,
		})
	}

	return times, nil
}
