package parse

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/hw-transit/ptschedule/model"
)

type FrequencyCSV struct {
	Line        string `csv:"line"`
	StartHour   string `csv:"start_hour"`
	StartMinute string `csv:"start_min"`
	EndHour     string `csv:"end_hour"`
	Frequency   string `csv:"freq_min"`
	From        string `csv:"from"`
	To          string `csv:"to"`
}

func parseInt(field string, value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("missing %s", field)
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s '%s': %w", field, value, err)
	}
	return i, nil
}

func ParseFrequencies(data io.Reader) ([]model.LineFrequency, error) {
	freqCsv := []*FrequencyCSV{}
	if err := gocsv.UnmarshalCSV(newCSVReader(data), &freqCsv); err != nil {
		return nil, fmt.Errorf("unmarshaling frequencies: %w", err)
	}

	frequencies := []model.LineFrequency{}

	for i, f := range freqCsv {
		line := strings.TrimSpace(f.Line)
		if line == "" {
			return nil, fmt.Errorf("missing line (row %d)", i+1)
		}

		from := strings.TrimSpace(f.From)
		to := strings.TrimSpace(f.To)
		if from == "" || to == "" {
			return nil, fmt.Errorf("line '%s' is missing from or to station (row %d)", line, i+1)
		}

		startHour, err := parseInt("start_hour", f.StartHour)
		if err != nil {
			return nil, errors.Wrapf(err, "line '%s' (row %d)", line, i+1)
		}
		startMinute, err := parseInt("start_min", f.StartMinute)
		if err != nil {
			return nil, errors.Wrapf(err, "line '%s' (row %d)", line, i+1)
		}
		endHour, err := parseInt("end_hour", f.EndHour)
		if err != nil {
			return nil, errors.Wrapf(err, "line '%s' (row %d)", line, i+1)
		}
		freq, err := parseInt("freq_min", f.Frequency)
		if err != nil {
			return nil, errors.Wrapf(err, "line '%s' (row %d)", line, i+1)
		}

		frequencies = append(frequencies, model.LineFrequency{
			Line:             line,
			StartHour:        startHour,
			StartMinute:      startMinute,
			EndHour:          endHour,
			FrequencyMinutes: freq,
			From:             from,
			To:               to,
		})
	}

	return frequencies, nil
}

// Rows belonging to exactly the given line id, in file order.
func FilterFrequencies(frequencies []model.LineFrequency, line string) []model.LineFrequency {
	filtered := []model.LineFrequency{}
	for _, f := range frequencies {
		if f.Line == line {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// Distinct line ids, in order of first appearance.
func ListLines(frequencies []model.LineFrequency) []string {
	seen := map[string]bool{}
	lines := []string{}
	for _, f := range frequencies {
		if seen[f.Line] {
			continue
		}
		seen[f.Line] = true
		lines = append(lines, f.Line)
	}
	return lines
}
