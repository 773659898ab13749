package parse

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/hw-transit/ptschedule/model"
)

type StationLinkCSV struct {
	Name     string `csv:"name"`
	Forward  string `csv:"forward"`
	Backward string `csv:"backward"`
}

func ParseStationLinks(data io.Reader) ([]model.StationLink, error) {
	linkCsv := []*StationLinkCSV{}
	if err := gocsv.UnmarshalCSV(newCSVReader(data), &linkCsv); err != nil {
		return nil, fmt.Errorf("unmarshaling station links: %w", err)
	}

	links := []model.StationLink{}
	seen := map[string]bool{}

	for i, l := range linkCsv {
		name := strings.TrimSpace(l.Name)
		if name == "" {
			return nil, fmt.Errorf("missing station name (row %d)", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("repeated station: '%s' (row %d)", name, i+1)
		}
		seen[name] = true

		links = append(links, model.StationLink{
			Name:     name,
			Forward:  strings.TrimSpace(l.Forward),
			Backward: strings.TrimSpace(l.Backward),
		})
	}

	return links, nil
}
