package matsimxml

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/hw-transit/ptschedule/model"
)

func isGzip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// Writes data to path, gzip compressed if the path ends in ".gz".
func WriteFile(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if isGzip(path) {
		gz = gzip.NewWriter(f)
		w = gz
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	if gz != nil {
		err = gz.Close()
		if err != nil {
			return fmt.Errorf("compressing %s: %w", path, err)
		}
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}

	return nil
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	err := g.Reader.Close()
	if cerr := g.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Opens path for reading, decompressing if the path ends in ".gz".
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	if !isGzip(path) {
		return f, nil
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decompressing %s: %w", path, err)
	}

	return &gzipFile{Reader: gz, f: f}, nil
}

func WriteScheduleFile(path string, schedule *model.Schedule, opts Options) error {
	data, err := MarshalSchedule(schedule, opts)
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}

func WriteVehiclesFile(path string, vehicles []model.Vehicle, opts Options) error {
	data, err := MarshalVehicles(vehicles, opts)
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}

func ReadScheduleFile(path string) (*model.Schedule, error) {
	r, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	schedule, err := ReadSchedule(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return schedule, nil
}

func ReadVehiclesFile(path string) ([]model.Vehicle, error) {
	r, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	vehicles, err := ReadVehicles(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return vehicles, nil
}
