package parse

import (
	"fmt"
	"io"
	"strings"

	"github.com/hw-transit/ptschedule/model"
)

// The station sequence table has no header. Only the first column is
// used; trailing delimiters and extra columns are ignored.
func ParseStationSequence(data io.Reader) (model.StationSequence, error) {
	rows, err := newCSVReader(data).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading stations: %w", err)
	}

	seq := model.StationSequence{}
	seen := map[string]bool{}

	for i, row := range rows {
		name := ""
		if len(row) > 0 {
			name = strings.TrimSpace(row[0])
		}
		if name == "" {
			return nil, fmt.Errorf("missing station name (row %d)", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("repeated station: '%s' (row %d)", name, i+1)
		}
		seen[name] = true
		seq = append(seq, name)
	}

	if len(seq) == 0 {
		return nil, fmt.Errorf("no stations")
	}

	return seq, nil
}
