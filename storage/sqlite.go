package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hw-transit/ptschedule/model"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

type SQLiteStorage struct {
	SQLiteConfig

	runDB *sql.DB
	runs  map[string]*sql.DB
}

type SQLiteScheduleWriter struct {
	db                   *sql.DB
	lineSeq              int
	vehicleSeq           int
	departureInsertQuery *sql.Stmt
	departureInsertTx    *sql.Tx
}

type SQLiteScheduleReader struct {
	db *sql.DB
}

func openSQLite(sourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every connection to :memory: gets a database of its own.
	if sourceName == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	sourceName := ":memory:"
	if onDisk {
		sourceName = filepath.Join(directory, "runs.db")
	}

	db, err := openSQLite(sourceName)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS run (
    id TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL,
    input_hash TEXT NOT NULL,
    lines TEXT NOT NULL,
    rollover TEXT NOT NULL,
    routes INTEGER NOT NULL,
    departures INTEGER NOT NULL,
    vehicles INTEGER NOT NULL
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating run table: %w", err)
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{
			OnDisk:    onDisk,
			Directory: directory,
		},
		runDB: db,
		runs:  map[string]*sql.DB{},
	}, nil
}

func (s *SQLiteStorage) Close() error {
	for run, db := range s.runs {
		db.Close()
		delete(s.runs, run)
	}

	err := s.runDB.Close()
	if err != nil {
		return fmt.Errorf("closing run database: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListRuns(filter ListRunsFilter) ([]*RunMetadata, error) {
	query := `
SELECT
    id,
    created_at,
    input_hash,
    lines,
    rollover,
    routes,
    departures,
    vehicles
FROM run`

	conditions := []string{}
	params := []interface{}{}
	if filter.ID != "" {
		conditions = append(conditions, "id = ?")
		params = append(params, filter.ID)
	}
	if filter.InputHash != "" {
		conditions = append(conditions, "input_hash = ?")
		params = append(params, filter.InputHash)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC"

	rows, err := s.runDB.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	runs := []*RunMetadata{}
	for rows.Next() {
		var run RunMetadata
		var lines string
		err := rows.Scan(
			&run.ID,
			&run.CreatedAt,
			&run.InputHash,
			&lines,
			&run.Rollover,
			&run.Routes,
			&run.Departures,
			&run.Vehicles,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		run.Lines = splitLines(lines)
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	return runs, nil
}

func splitLines(lines string) []string {
	if lines == "" {
		return []string{}
	}
	return strings.Split(lines, ",")
}

func (s *SQLiteStorage) WriteRunMetadata(run *RunMetadata) error {
	_, err := s.runDB.Exec(`
INSERT INTO run (
    id,
    created_at,
    input_hash,
    lines,
    rollover,
    routes,
    departures,
    vehicles
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    created_at = excluded.created_at,
    input_hash = excluded.input_hash,
    lines = excluded.lines,
    rollover = excluded.rollover,
    routes = excluded.routes,
    departures = excluded.departures,
    vehicles = excluded.vehicles
`,
		run.ID,
		run.CreatedAt,
		run.InputHash,
		strings.Join(run.Lines, ","),
		run.Rollover,
		run.Routes,
		run.Departures,
		run.Vehicles,
	)
	if err != nil {
		return fmt.Errorf("writing run metadata: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) runPath(run string) string {
	return filepath.Join(s.Directory, run+".db")
}

func (s *SQLiteStorage) GetReader(run string) (ScheduleReader, error) {
	db, found := s.runs[run]
	if found {
		return &SQLiteScheduleReader{
			db: db,
		}, nil
	}
	if !s.OnDisk {
		return nil, fmt.Errorf("run %s does not exist", run)
	}

	sourceName := s.runPath(run)
	if _, err := os.Stat(sourceName); os.IsNotExist(err) {
		return nil, fmt.Errorf("run %s does not exist at %s", run, sourceName)
	}

	db, err := openSQLite(sourceName)
	if err != nil {
		return nil, err
	}

	s.runs[run] = db

	return &SQLiteScheduleReader{
		db: db,
	}, nil
}

func (s *SQLiteStorage) GetWriter(run string) (ScheduleWriter, error) {
	if db, found := s.runs[run]; found {
		db.Close()
		delete(s.runs, run)
	}

	sourceName := ":memory:"
	if s.OnDisk {
		sourceName = s.runPath(run)
		// delete file if it exists
		if _, err := os.Stat(sourceName); err == nil {
			err := os.Remove(sourceName)
			if err != nil {
				return nil, fmt.Errorf("removing existing database: %w", err)
			}
		}
	}

	db, err := openSQLite(sourceName)
	if err != nil {
		return nil, err
	}

	for _, table := range []struct {
		name  string
		query string
	}{
		{"lines", `
CREATE TABLE lines (
    id TEXT PRIMARY KEY,
    seq INTEGER NOT NULL,
    name TEXT NOT NULL,
    line TEXT NOT NULL,
    direction INTEGER NOT NULL
);`},
		{"attributes", `
CREATE TABLE attributes (
    owner_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    name TEXT NOT NULL,
    class TEXT NOT NULL,
    value TEXT NOT NULL,
PRIMARY KEY (owner_id, seq)
);`},
		{"routes", `
CREATE TABLE routes (
    id TEXT PRIMARY KEY,
    line_id TEXT NOT NULL,
    idx INTEGER NOT NULL,
    from_station TEXT NOT NULL,
    to_station TEXT NOT NULL,
    transport_mode TEXT NOT NULL
);
CREATE INDEX routes_line_id ON routes (line_id);
`},
		{"stops", `
CREATE TABLE stops (
    route_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    ref_id TEXT NOT NULL,
    station TEXT NOT NULL,
    offset_minutes INTEGER NOT NULL,
PRIMARY KEY (route_id, seq)
);`},
		{"route_links", `
CREATE TABLE route_links (
    route_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    kind INTEGER NOT NULL,
    from_link TEXT NOT NULL,
    to_link TEXT NOT NULL,
PRIMARY KEY (route_id, seq)
);`},
		{"departures", `
CREATE TABLE departures (
    id TEXT PRIMARY KEY,
    route_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    hour INTEGER NOT NULL,
    minute INTEGER NOT NULL,
    vehicle_id TEXT NOT NULL
);
CREATE INDEX departures_route_id ON departures (route_id);
`},
		{"vehicles", `
CREATE TABLE vehicles (
    id TEXT PRIMARY KEY,
    seq INTEGER NOT NULL,
    type TEXT NOT NULL
);`},
	} {
		_, err = db.Exec(table.query)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating %s table: %s", table.name, err)
		}
	}

	s.runs[run] = db

	return &SQLiteScheduleWriter{
		db: db,
	}, nil
}

func writeAttributes(exec func(string, ...interface{}) (sql.Result, error), query string, ownerID string, attrs []model.Attribute) error {
	for i, a := range attrs {
		_, err := exec(query, ownerID, i, a.Name, a.Class, a.Value)
		if err != nil {
			return fmt.Errorf("inserting attribute %s: %w", a.Name, err)
		}
	}
	return nil
}

func (w *SQLiteScheduleWriter) WriteLine(line *model.TransitLine) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
INSERT INTO lines (id, seq, name, line, direction)
VALUES (?, ?, ?, ?, ?)`,
		line.ID,
		w.lineSeq,
		line.Name,
		line.Line,
		line.Direction,
	)
	if err != nil {
		return fmt.Errorf("inserting line: %w", err)
	}

	err = writeAttributes(tx.Exec, `
INSERT INTO attributes (owner_id, seq, name, class, value)
VALUES (?, ?, ?, ?, ?)`, line.ID, line.Attributes)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	w.lineSeq++
	return nil
}

func (w *SQLiteScheduleWriter) WriteRoute(lineID string, route *model.Route) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRow(`SELECT COUNT(*) FROM lines WHERE id = ?`, lineID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("looking up line: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("unknown line id: %s", lineID)
	}

	_, err = tx.Exec(`
INSERT INTO routes (id, line_id, idx, from_station, to_station, transport_mode)
VALUES (?, ?, ?, ?, ?, ?)`,
		route.ID,
		lineID,
		route.Index,
		route.From,
		route.To,
		route.TransportMode,
	)
	if err != nil {
		return fmt.Errorf("inserting route: %w", err)
	}

	err = writeAttributes(tx.Exec, `
INSERT INTO attributes (owner_id, seq, name, class, value)
VALUES (?, ?, ?, ?, ?)`, route.ID, route.Attributes)
	if err != nil {
		return err
	}

	for i, stop := range route.Stops {
		_, err = tx.Exec(`
INSERT INTO stops (route_id, seq, ref_id, station, offset_minutes)
VALUES (?, ?, ?, ?, ?)`,
			route.ID, i, stop.RefID, stop.Station, int(stop.Offset),
		)
		if err != nil {
			return fmt.Errorf("inserting stop: %w", err)
		}
	}

	for i, seg := range route.Path {
		_, err = tx.Exec(`
INSERT INTO route_links (route_id, seq, kind, from_link, to_link)
VALUES (?, ?, ?, ?, ?)`,
			route.ID, i, seg.Kind, seg.From, seg.To,
		)
		if err != nil {
			return fmt.Errorf("inserting route link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (w *SQLiteScheduleWriter) BeginDepartures() error {
	// transaction with prepared statement.
	var err error
	w.departureInsertTx, err = w.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning departure insert transaction: %w", err)
	}

	w.departureInsertQuery, err = w.departureInsertTx.Prepare(`
INSERT INTO departures (id, route_id, seq, hour, minute, vehicle_id)
VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		w.departureInsertTx.Rollback()
		w.departureInsertTx = nil
		return fmt.Errorf("preparing departure insert: %w", err)
	}

	return nil
}

func (w *SQLiteScheduleWriter) WriteDeparture(routeID string, d *model.Departure) error {
	if w.departureInsertQuery == nil {
		return fmt.Errorf("departure written outside BeginDepartures/EndDepartures")
	}

	_, err := w.departureInsertQuery.Exec(
		d.ID,
		routeID,
		d.Sequence,
		d.Time.Hour,
		d.Time.Minute,
		d.VehicleID,
	)
	if err != nil {
		w.departureInsertQuery.Close()
		w.departureInsertTx.Rollback()
		w.departureInsertTx = nil
		w.departureInsertQuery = nil
		return fmt.Errorf("inserting departure: %w", err)
	}

	return nil
}

func (w *SQLiteScheduleWriter) EndDepartures() error {
	if w.departureInsertTx == nil {
		return fmt.Errorf("EndDepartures without BeginDepartures, or after a failed WriteDeparture")
	}

	// commit transaction and clean up
	w.departureInsertQuery.Close()
	err := w.departureInsertTx.Commit()
	if err != nil {
		return fmt.Errorf("committing departure insert transaction: %w", err)
	}
	w.departureInsertTx = nil
	w.departureInsertQuery = nil

	return nil
}

func (w *SQLiteScheduleWriter) WriteVehicle(v *model.Vehicle) error {
	_, err := w.db.Exec(`
INSERT INTO vehicles (id, seq, type)
VALUES (?, ?, ?)`,
		v.ID,
		w.vehicleSeq,
		v.Type,
	)
	if err != nil {
		return fmt.Errorf("inserting vehicle: %w", err)
	}

	w.vehicleSeq++
	return nil
}

func (w *SQLiteScheduleWriter) Close() error {
	_, err := w.db.Exec(`ANALYZE;`)
	if err != nil {
		w.db.Close()
		return fmt.Errorf("analyzing database: %s", err)
	}

	return nil
}

func (r *SQLiteScheduleReader) attributes(ownerID string) ([]model.Attribute, error) {
	rows, err := r.db.Query(`
SELECT name, class, value
FROM attributes
WHERE owner_id = ?
ORDER BY seq`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying attributes: %w", err)
	}
	defer rows.Close()

	attrs := []model.Attribute{}
	for rows.Next() {
		a := model.Attribute{}
		if err := rows.Scan(&a.Name, &a.Class, &a.Value); err != nil {
			return nil, fmt.Errorf("scanning attribute: %w", err)
		}
		attrs = append(attrs, a)
	}
	return attrs, rows.Err()
}

func (r *SQLiteScheduleReader) Lines() ([]*model.TransitLine, error) {
	rows, err := r.db.Query(`
SELECT id, name, line, direction
FROM lines
ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying lines: %w", err)
	}

	lines := []*model.TransitLine{}
	for rows.Next() {
		line := &model.TransitLine{}
		if err := rows.Scan(&line.ID, &line.Name, &line.Line, &line.Direction); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning line: %w", err)
		}
		lines = append(lines, line)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lines: %w", err)
	}

	// Attributes are fetched after closing rows, as in memory
	// databases only have a single connection.
	for _, line := range lines {
		line.Attributes, err = r.attributes(line.ID)
		if err != nil {
			return nil, err
		}
	}

	return lines, nil
}

func (r *SQLiteScheduleReader) Routes(lineID string) ([]*model.Route, error) {
	rows, err := r.db.Query(`
SELECT id, idx, from_station, to_station, transport_mode
FROM routes
WHERE line_id = ?
ORDER BY idx`, lineID)
	if err != nil {
		return nil, fmt.Errorf("querying routes: %w", err)
	}

	routes := []*model.Route{}
	for rows.Next() {
		route := &model.Route{}
		if err := rows.Scan(&route.ID, &route.Index, &route.From, &route.To, &route.TransportMode); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning route: %w", err)
		}
		routes = append(routes, route)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating routes: %w", err)
	}

	for _, route := range routes {
		route.Attributes, err = r.attributes(route.ID)
		if err != nil {
			return nil, err
		}

		route.Stops, err = r.stops(route.ID)
		if err != nil {
			return nil, err
		}

		route.Path, err = r.path(route.ID)
		if err != nil {
			return nil, err
		}
	}

	return routes, nil
}

func (r *SQLiteScheduleReader) stops(routeID string) ([]model.Stop, error) {
	rows, err := r.db.Query(`
SELECT ref_id, station, offset_minutes
FROM stops
WHERE route_id = ?
ORDER BY seq`, routeID)
	if err != nil {
		return nil, fmt.Errorf("querying stops: %w", err)
	}
	defer rows.Close()

	stops := []model.Stop{}
	for rows.Next() {
		stop := model.Stop{}
		if err := rows.Scan(&stop.RefID, &stop.Station, &stop.Offset); err != nil {
			return nil, fmt.Errorf("scanning stop: %w", err)
		}
		stops = append(stops, stop)
	}
	return stops, rows.Err()
}

func (r *SQLiteScheduleReader) path(routeID string) ([]model.PathSegment, error) {
	rows, err := r.db.Query(`
SELECT kind, from_link, to_link
FROM route_links
WHERE route_id = ?
ORDER BY seq`, routeID)
	if err != nil {
		return nil, fmt.Errorf("querying route links: %w", err)
	}
	defer rows.Close()

	path := []model.PathSegment{}
	for rows.Next() {
		seg := model.PathSegment{}
		if err := rows.Scan(&seg.Kind, &seg.From, &seg.To); err != nil {
			return nil, fmt.Errorf("scanning route link: %w", err)
		}
		path = append(path, seg)
	}
	return path, rows.Err()
}

func (r *SQLiteScheduleReader) Departures(routeID string) ([]*model.Departure, error) {
	rows, err := r.db.Query(`
SELECT id, seq, hour, minute, vehicle_id
FROM departures
WHERE route_id = ?
ORDER BY seq`, routeID)
	if err != nil {
		return nil, fmt.Errorf("querying departures: %w", err)
	}
	defer rows.Close()

	departures := []*model.Departure{}
	for rows.Next() {
		d := &model.Departure{}
		if err := rows.Scan(&d.ID, &d.Sequence, &d.Time.Hour, &d.Time.Minute, &d.VehicleID); err != nil {
			return nil, fmt.Errorf("scanning departure: %w", err)
		}
		departures = append(departures, d)
	}
	return departures, rows.Err()
}

func (r *SQLiteScheduleReader) Vehicles() ([]*model.Vehicle, error) {
	rows, err := r.db.Query(`
SELECT id, type
FROM vehicles
ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying vehicles: %w", err)
	}
	defer rows.Close()

	vehicles := []*model.Vehicle{}
	for rows.Next() {
		v := &model.Vehicle{}
		if err := rows.Scan(&v.ID, &v.Type); err != nil {
			return nil, fmt.Errorf("scanning vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}
