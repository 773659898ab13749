package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hw-transit/ptschedule/model"
)

const (
	PSQLDepartureBatchSize = 5000
)

type PSQLStorage struct {
	db *sql.DB
}

type PSQLScheduleWriter struct {
	run          string
	db           *sql.DB
	lineSeq      int
	vehicleSeq   int
	departureBuf []psqlDeparture
	inDepartures bool
}

type psqlDeparture struct {
	routeID   string
	departure model.Departure
}

type PSQLScheduleReader struct {
	run string
	db  *sql.DB
}

// Tables holding generated schedules, keyed by run.
var psqlScheduleTables = []struct {
	name  string
	query string
}{
	{"schedules", `
CREATE TABLE IF NOT EXISTS schedules (
    run TEXT PRIMARY KEY
);`},
	{"lines", `
CREATE TABLE IF NOT EXISTS lines (
    run TEXT NOT NULL,
    id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    name TEXT NOT NULL,
    line TEXT NOT NULL,
    direction SMALLINT NOT NULL,
    PRIMARY KEY (run, id)
);`},
	{"attributes", `
CREATE TABLE IF NOT EXISTS attributes (
    run TEXT NOT NULL,
    owner_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    name TEXT NOT NULL,
    class TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (run, owner_id, seq)
);`},
	{"routes", `
CREATE TABLE IF NOT EXISTS routes (
    run TEXT NOT NULL,
    id TEXT NOT NULL,
    line_id TEXT NOT NULL,
    idx INTEGER NOT NULL,
    from_station TEXT NOT NULL,
    to_station TEXT NOT NULL,
    transport_mode TEXT NOT NULL,
    PRIMARY KEY (run, id)
);
CREATE INDEX IF NOT EXISTS routes_line_id ON routes (run, line_id);
`},
	{"stops", `
CREATE TABLE IF NOT EXISTS stops (
    run TEXT NOT NULL,
    route_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    ref_id TEXT NOT NULL,
    station TEXT NOT NULL,
    offset_minutes INTEGER NOT NULL,
    PRIMARY KEY (run, route_id, seq)
);`},
	{"route_links", `
CREATE TABLE IF NOT EXISTS route_links (
    run TEXT NOT NULL,
    route_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    kind SMALLINT NOT NULL,
    from_link TEXT NOT NULL,
    to_link TEXT NOT NULL,
    PRIMARY KEY (run, route_id, seq)
);`},
	{"departures", `
CREATE TABLE IF NOT EXISTS departures (
    run TEXT NOT NULL,
    id TEXT NOT NULL,
    route_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    hour INTEGER NOT NULL,
    minute INTEGER NOT NULL,
    vehicle_id TEXT NOT NULL,
    PRIMARY KEY (run, id)
);
CREATE INDEX IF NOT EXISTS departures_route_id ON departures (run, route_id);
`},
	{"vehicles", `
CREATE TABLE IF NOT EXISTS vehicles (
    run TEXT NOT NULL,
    id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    type TEXT NOT NULL,
    PRIMARY KEY (run, id)
);`},
}

// Creates a new Postgres Storage using the provided connection string.
//
// If clearDB is true, the database will be cleared on startup. You
// probably only want this for testing.
func NewPSQLStorage(connStr string, clearDB bool) (*PSQLStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if clearDB {
		_, err = db.Exec(`
DROP TABLE IF EXISTS run;
DROP TABLE IF EXISTS schedules;
DROP TABLE IF EXISTS lines;
DROP TABLE IF EXISTS attributes;
DROP TABLE IF EXISTS routes;
DROP TABLE IF EXISTS stops;
DROP TABLE IF EXISTS route_links;
DROP TABLE IF EXISTS departures;
DROP TABLE IF EXISTS vehicles;
`)
		if err != nil {
			return nil, fmt.Errorf("clearing db: %w", err)
		}
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS run (
    id TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL,
    input_hash TEXT NOT NULL,
    lines TEXT[] NOT NULL,
    rollover TEXT NOT NULL,
    routes INTEGER NOT NULL,
    departures INTEGER NOT NULL,
    vehicles INTEGER NOT NULL
);`)
	if err != nil {
		return nil, fmt.Errorf("creating run table: %w", err)
	}

	for _, table := range psqlScheduleTables {
		_, err := db.Exec(table.query)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating %s table: %s", table.name, err)
		}
	}

	return &PSQLStorage{
		db: db,
	}, nil
}

func (s *PSQLStorage) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}
	return nil
}

func (s *PSQLStorage) ListRuns(filter ListRunsFilter) ([]*RunMetadata, error) {
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
	paramCount := 1

	if filter.ID != "" {
		conditions = append(conditions, fmt.Sprintf("id = $%d", paramCount))
		params = append(params, filter.ID)
		paramCount++
	}
	if filter.InputHash != "" {
		conditions = append(conditions, fmt.Sprintf("input_hash = $%d", paramCount))
		params = append(params, filter.InputHash)
		paramCount++
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	runs := []*RunMetadata{}
	for rows.Next() {
		var run RunMetadata
		var lines []string
		err := rows.Scan(
			&run.ID,
			&run.CreatedAt,
			&run.InputHash,
			pq.Array(&lines),
			&run.Rollover,
			&run.Routes,
			&run.Departures,
			&run.Vehicles,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if lines == nil {
			lines = []string{}
		}
		run.Lines = lines
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	return runs, nil
}

func (s *PSQLStorage) WriteRunMetadata(run *RunMetadata) error {
	lines := run.Lines
	if lines == nil {
		lines = []string{}
	}

	_, err := s.db.Exec(`
INSERT INTO run (id, created_at, input_hash, lines, rollover, routes, departures, vehicles)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
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
		pq.Array(lines),
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

func (s *PSQLStorage) GetReader(run string) (ScheduleReader, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM schedules WHERE run = $1`, run).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("looking up run: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("run %s does not exist", run)
	}

	return &PSQLScheduleReader{
		run: run,
		db:  s.db,
	}, nil
}

func (s *PSQLStorage) GetWriter(run string) (ScheduleWriter, error) {
	// In case run already exists, delete all records
	for _, table := range psqlScheduleTables {
		_, err := s.db.Exec(`DELETE FROM `+table.name+` WHERE run = $1`, run)
		if err != nil {
			return nil, fmt.Errorf("deleting %s records: %s", table.name, err)
		}
	}

	_, err := s.db.Exec(`INSERT INTO schedules (run) VALUES ($1) ON CONFLICT (run) DO NOTHING`, run)
	if err != nil {
		return nil, fmt.Errorf("registering run: %w", err)
	}

	return &PSQLScheduleWriter{
		run: run,
		db:  s.db,
	}, nil
}

func (w *PSQLScheduleWriter) writeAttributes(tx *sql.Tx, ownerID string, attrs []model.Attribute) error {
	for i, a := range attrs {
		_, err := tx.Exec(`
INSERT INTO attributes (run, owner_id, seq, name, class, value)
VALUES ($1, $2, $3, $4, $5, $6)`,
			w.run, ownerID, i, a.Name, a.Class, a.Value,
		)
		if err != nil {
			return fmt.Errorf("inserting attribute %s: %w", a.Name, err)
		}
	}
	return nil
}

func (w *PSQLScheduleWriter) WriteLine(line *model.TransitLine) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
INSERT INTO lines (run, id, seq, name, line, direction)
VALUES ($1, $2, $3, $4, $5, $6)`,
		w.run,
		line.ID,
		w.lineSeq,
		line.Name,
		line.Line,
		line.Direction,
	)
	if err != nil {
		return fmt.Errorf("inserting line: %w", err)
	}

	err = w.writeAttributes(tx, line.ID, line.Attributes)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	w.lineSeq++
	return nil
}

func (w *PSQLScheduleWriter) WriteRoute(lineID string, route *model.Route) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRow(`SELECT COUNT(*) FROM lines WHERE run = $1 AND id = $2`, w.run, lineID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("looking up line: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("unknown line id: %s", lineID)
	}

	_, err = tx.Exec(`
INSERT INTO routes (run, id, line_id, idx, from_station, to_station, transport_mode)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.run,
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

	err = w.writeAttributes(tx, route.ID, route.Attributes)
	if err != nil {
		return err
	}

	for i, stop := range route.Stops {
		_, err = tx.Exec(`
INSERT INTO stops (run, route_id, seq, ref_id, station, offset_minutes)
VALUES ($1, $2, $3, $4, $5, $6)`,
			w.run, route.ID, i, stop.RefID, stop.Station, int(stop.Offset),
		)
		if err != nil {
			return fmt.Errorf("inserting stop: %w", err)
		}
	}

	for i, seg := range route.Path {
		_, err = tx.Exec(`
INSERT INTO route_links (run, route_id, seq, kind, from_link, to_link)
VALUES ($1, $2, $3, $4, $5, $6)`,
			w.run, route.ID, i, seg.Kind, seg.From, seg.To,
		)
		if err != nil {
			return fmt.Errorf("inserting route link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	return nil
}

func (w *PSQLScheduleWriter) BeginDepartures() error {
	w.inDepartures = true
	w.departureBuf = nil
	return nil
}

func (w *PSQLScheduleWriter) WriteDeparture(routeID string, d *model.Departure) error {
	if !w.inDepartures {
		return fmt.Errorf("departure written outside BeginDepartures/EndDepartures")
	}
	w.departureBuf = append(w.departureBuf, psqlDeparture{routeID: routeID, departure: *d})

	if len(w.departureBuf) >= PSQLDepartureBatchSize {
		err := w.flushDepartures()
		if err != nil {
			return fmt.Errorf("flushing departures: %w", err)
		}
	}

	return nil
}

func (w *PSQLScheduleWriter) EndDepartures() error {
	if !w.inDepartures {
		return fmt.Errorf("EndDepartures without BeginDepartures")
	}
	w.inDepartures = false

	if len(w.departureBuf) > 0 {
		err := w.flushDepartures()
		if err != nil {
			return fmt.Errorf("flushing departures: %w", err)
		}
	}
	return nil
}

func (w *PSQLScheduleWriter) flushDepartures() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(pq.CopyIn(
		"departures", "run", "id", "route_id", "seq", "hour", "minute", "vehicle_id",
	))
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, buf := range w.departureBuf {
		d := buf.departure
		_, err = stmt.Exec(
			w.run, d.ID, buf.routeID, d.Sequence, d.Time.Hour, d.Time.Minute, d.VehicleID,
		)
		if err != nil {
			return fmt.Errorf("COPY departure: %w", err)
		}
	}

	_, err = stmt.Exec()
	if err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	w.departureBuf = nil

	return nil
}

func (w *PSQLScheduleWriter) WriteVehicle(v *model.Vehicle) error {
	_, err := w.db.Exec(`
INSERT INTO vehicles (run, id, seq, type)
VALUES ($1, $2, $3, $4)`,
		w.run,
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

func (w *PSQLScheduleWriter) Close() error {
	_, err := w.db.Exec(`ANALYZE`)
	if err != nil {
		return fmt.Errorf("analyzing: %w", err)
	}
	return nil
}

func (r *PSQLScheduleReader) attributes(ownerID string) ([]model.Attribute, error) {
	rows, err := r.db.Query(`
SELECT name, class, value
FROM attributes
WHERE run = $1 AND owner_id = $2
ORDER BY seq`, r.run, ownerID)
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

func (r *PSQLScheduleReader) Lines() ([]*model.TransitLine, error) {
	rows, err := r.db.Query(`
SELECT id, name, line, direction
FROM lines
WHERE run = $1
ORDER BY seq`, r.run)
	if err != nil {
		return nil, fmt.Errorf("querying lines: %w", err)
	}
	defer rows.Close()

	lines := []*model.TransitLine{}
	for rows.Next() {
		line := &model.TransitLine{}
		if err := rows.Scan(&line.ID, &line.Name, &line.Line, &line.Direction); err != nil {
			return nil, fmt.Errorf("scanning line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lines: %w", err)
	}

	for _, line := range lines {
		line.Attributes, err = r.attributes(line.ID)
		if err != nil {
			return nil, err
		}
	}

	return lines, nil
}

func (r *PSQLScheduleReader) Routes(lineID string) ([]*model.Route, error) {
	rows, err := r.db.Query(`
SELECT id, idx, from_station, to_station, transport_mode
FROM routes
WHERE run = $1 AND line_id = $2
ORDER BY idx`, r.run, lineID)
	if err != nil {
		return nil, fmt.Errorf("querying routes: %w", err)
	}
	defer rows.Close()

	routes := []*model.Route{}
	for rows.Next() {
		route := &model.Route{}
		if err := rows.Scan(&route.ID, &route.Index, &route.From, &route.To, &route.TransportMode); err != nil {
			return nil, fmt.Errorf("scanning route: %w", err)
		}
		routes = append(routes, route)
	}
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

func (r *PSQLScheduleReader) stops(routeID string) ([]model.Stop, error) {
	rows, err := r.db.Query(`
SELECT ref_id, station, offset_minutes
FROM stops
WHERE run = $1 AND route_id = $2
ORDER BY seq`, r.run, routeID)
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

func (r *PSQLScheduleReader) path(routeID string) ([]model.PathSegment, error) {
	rows, err := r.db.Query(`
SELECT kind, from_link, to_link
FROM route_links
WHERE run = $1 AND route_id = $2
ORDER BY seq`, r.run, routeID)
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

func (r *PSQLScheduleReader) Departures(routeID string) ([]*model.Departure, error) {
	rows, err := r.db.Query(`
SELECT id, seq, hour, minute, vehicle_id
FROM departures
WHERE run = $1 AND route_id = $2
ORDER BY seq`, r.run, routeID)
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

func (r *PSQLScheduleReader) Vehicles() ([]*model.Vehicle, error) {
	rows, err := r.db.Query(`
SELECT id, type
FROM vehicles
WHERE run = $1
ORDER BY seq`, r.run)
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
