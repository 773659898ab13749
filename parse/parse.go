package parse

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spkg/bom"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/hw-transit/ptschedule/model"
	"github.com/hw-transit/ptschedule/source"
)

// Locations of the input tables, relative to the source root.
const (
	FrequencyFile    = "lines/frequency.csv"
	StationLinksFile = "stations_links.csv"
)

func StationSequenceFile(base string) string {
	return "lines/" + base + "_line.csv"
}

func TravelTimesFile(base string) string {
	return "lines/" + base + "_times.csv"
}

// All tables are semicolon separated.
const Delimiter = ';'

// Text encoding of the input tables.
type Encoding string

const (
	EncodingCP1252 Encoding = "cp1252"
	EncodingUTF8   Encoding = "utf-8"
)

func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cp1252", "windows-1252":
		return EncodingCP1252, nil
	case "utf-8", "utf8":
		return EncodingUTF8, nil
	}
	return "", fmt.Errorf("unsupported encoding: '%s'", s)
}

// Wraps data so that it reads as UTF-8. A UTF-8 BOM, if present, is
// stripped before decoding.
func Decode(data io.Reader, enc Encoding) io.Reader {
	data = bom.NewReader(data)
	if enc == EncodingCP1252 {
		return transform.NewReader(data, charmap.Windows1252.NewDecoder())
	}
	return data
}

// LazyQuotes is required (at least) to survive sloppy use of quotes
// in hand edited spreadsheets.
func newCSVReader(data io.Reader) gocsv.CSVReader {
	r := csv.NewReader(data)
	r.Comma = Delimiter
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r
}

// Reads input tables from a Source. The frequency and station link
// tables are shared by all lines and only read once.
type Loader struct {
	Source   source.Source
	Encoding Encoding

	frequencies []model.LineFrequency
	links       []model.StationLink
	digests     map[string][32]byte
}

func NewLoader(src source.Source, enc Encoding) *Loader {
	return &Loader{
		Source:   src,
		Encoding: enc,
		digests:  map[string][32]byte{},
	}
}

func (l *Loader) open(ctx context.Context, name string) (io.Reader, error) {
	buf, err := l.Source.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if l.digests == nil {
		l.digests = map[string][32]byte{}
	}
	l.digests[name] = sha256.Sum256(buf)
	return Decode(bytes.NewReader(buf), l.Encoding), nil
}

func (l *Loader) Frequencies(ctx context.Context) ([]model.LineFrequency, error) {
	if l.frequencies != nil {
		return l.frequencies, nil
	}

	data, err := l.open(ctx, FrequencyFile)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", FrequencyFile, err)
	}

	frequencies, err := ParseFrequencies(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FrequencyFile, err)
	}

	l.frequencies = frequencies
	return frequencies, nil
}

func (l *Loader) StationLinks(ctx context.Context) ([]model.StationLink, error) {
	if l.links != nil {
		return l.links, nil
	}

	data, err := l.open(ctx, StationLinksFile)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", StationLinksFile, err)
	}

	links, err := ParseStationLinks(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", StationLinksFile, err)
	}

	l.links = links
	return links, nil
}

// SHA256 over the names and raw contents of every file read so far.
// Identical inputs give identical hashes regardless of read order.
func (l *Loader) Hash() string {
	names := make([]string, 0, len(l.digests))
	for name := range l.digests {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		digest := l.digests[name]
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write(digest[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Distinct line ids of the frequency table, in file order.
func (l *Loader) Lines(ctx context.Context) ([]string, error) {
	frequencies, err := l.Frequencies(ctx)
	if err != nil {
		return nil, err
	}
	return ListLines(frequencies), nil
}

// Loads everything needed to build the given line. Backward lines
// ("s2_r") read the station sequence and travel times of their base
// line ("s2"); frequencies are selected by the full line id.
func (l *Loader) LineTables(ctx context.Context, line string) (*model.LineTables, error) {
	frequencies, err := l.Frequencies(ctx)
	if err != nil {
		return nil, err
	}

	links, err := l.StationLinks(ctx)
	if err != nil {
		return nil, err
	}

	base, _ := model.ParseLine(line)

	name := StationSequenceFile(base)
	data, err := l.open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	stations, err := ParseStationSequence(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}

	name = TravelTimesFile(base)
	data, err = l.open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	times, err := ParseTravelTimes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}

	return &model.LineTables{
		Frequencies: FilterFrequencies(frequencies, line),
		Stations:    stations,
		TravelTimes: times,
		Links:       links,
	}, nil
}
