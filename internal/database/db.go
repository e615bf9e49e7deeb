package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
)

// ErrZoneNotFound is returned when a zone id does not exist
var ErrZoneNotFound = errors.New("zone not found")

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &DB{db}, nil
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		fmt.Printf("Running migration: %s\n", filename)

		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	fmt.Println("All migrations completed successfully")
	return nil
}

// Zones

const zoneColumns = `id, name, coordinates, area, status, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanZone(row rowScanner) (*Zone, error) {
	var z Zone
	var coords string
	if err := row.Scan(&z.ID, &z.Name, &coords, &z.Area, &z.Status, &z.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(coords), &z.Coordinates); err != nil {
		return nil, fmt.Errorf("zone %d has malformed coordinates: %w", z.ID, err)
	}
	return &z, nil
}

// CreateZone inserts a zone and fills in its id and creation time
func (db *DB) CreateZone(ctx context.Context, z *Zone) error {
	coords, err := json.Marshal(z.Coordinates)
	if err != nil {
		return fmt.Errorf("failed to encode coordinates: %w", err)
	}
	if z.Status == "" {
		z.Status = ZoneStatusActive
	}

	query := `
		INSERT INTO carbon_zones (name, coordinates, area, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	return db.QueryRowContext(ctx, query, z.Name, string(coords), z.Area, z.Status).
		Scan(&z.ID, &z.CreatedAt)
}

// GetZone retrieves a zone by id
func (db *DB) GetZone(ctx context.Context, id int64) (*Zone, error) {
	query := `SELECT ` + zoneColumns + ` FROM carbon_zones WHERE id = $1`

	z, err := scanZone(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrZoneNotFound
	}
	if err != nil {
		return nil, err
	}
	return z, nil
}

// ListZones returns a page of zones ordered by id
func (db *DB) ListZones(ctx context.Context, skip, limit int) ([]Zone, error) {
	query := `SELECT ` + zoneColumns + ` FROM carbon_zones ORDER BY id OFFSET $1 LIMIT $2`
	return db.queryZones(ctx, query, skip, limit)
}

// ListActiveZones returns every zone currently being monitored
func (db *DB) ListActiveZones(ctx context.Context) ([]Zone, error) {
	query := `SELECT ` + zoneColumns + ` FROM carbon_zones WHERE status = $1 ORDER BY id`
	return db.queryZones(ctx, query, ZoneStatusActive)
}

func (db *DB) queryZones(ctx context.Context, query string, args ...any) ([]Zone, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	zones := make([]Zone, 0)
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, *z)
	}
	return zones, rows.Err()
}

// UpdateZone writes name, boundary, area and status of an existing zone
func (db *DB) UpdateZone(ctx context.Context, z *Zone) error {
	coords, err := json.Marshal(z.Coordinates)
	if err != nil {
		return fmt.Errorf("failed to encode coordinates: %w", err)
	}

	query := `
		UPDATE carbon_zones
		SET name = $1, coordinates = $2, area = $3, status = $4
		WHERE id = $5
	`
	result, err := db.ExecContext(ctx, query, z.Name, string(coords), z.Area, z.Status, z.ID)
	if err != nil {
		return err
	}
	return expectRow(result)
}

// DeleteZone removes a zone; its measurements and summaries cascade
func (db *DB) DeleteZone(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM carbon_zones WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(result)
}

func expectRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrZoneNotFound
	}
	return nil
}

// Measurements

// CountMeasurements returns the number of stored measurements of a zone
func (db *DB) CountMeasurements(ctx context.Context, zoneID int64) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM zone_measurements WHERE zone_id = $1`, zoneID,
	).Scan(&count)
	return count, err
}

// LatestMeasurement returns the newest measurement of a zone, or nil if it has none
func (db *DB) LatestMeasurement(ctx context.Context, zoneID int64) (*Measurement, error) {
	query := `
		SELECT id, zone_id, timestamp, ndvi, carbon_absorption
		FROM zone_measurements
		WHERE zone_id = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`

	var m Measurement
	err := db.QueryRowContext(ctx, query, zoneID).Scan(
		&m.ID, &m.ZoneID, &m.Timestamp, &m.NDVI, &m.CarbonAbsorption,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// EarliestMeasurement returns the oldest measurement of a zone, or nil if it has none
func (db *DB) EarliestMeasurement(ctx context.Context, zoneID int64) (*Measurement, error) {
	query := `
		SELECT id, zone_id, timestamp, ndvi, carbon_absorption
		FROM zone_measurements
		WHERE zone_id = $1
		ORDER BY timestamp ASC
		LIMIT 1
	`

	var m Measurement
	err := db.QueryRowContext(ctx, query, zoneID).Scan(
		&m.ID, &m.ZoneID, &m.Timestamp, &m.NDVI, &m.CarbonAbsorption,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteMeasurements removes every measurement of a zone
func (db *DB) DeleteMeasurements(ctx context.Context, zoneID int64) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM zone_measurements WHERE zone_id = $1`, zoneID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// InsertMeasurements writes a batch in one transaction using COPY
func (db *DB) InsertMeasurements(ctx context.Context, batch []Measurement) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		pq.CopyIn("zone_measurements", "zone_id", "timestamp", "ndvi", "carbon_absorption"))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}

	for _, m := range batch {
		if _, err := stmt.ExecContext(ctx, m.ZoneID, m.Timestamp, m.NDVI, m.CarbonAbsorption); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy measurement: %w", err)
		}
	}

	// Flush buffered rows
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy: %w", err)
	}

	return tx.Commit()
}

// InsertMeasurement inserts a single measurement
func (db *DB) InsertMeasurement(ctx context.Context, m *Measurement) error {
	query := `
		INSERT INTO zone_measurements (zone_id, timestamp, ndvi, carbon_absorption)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	return db.QueryRowContext(ctx, query, m.ZoneID, m.Timestamp, m.NDVI, m.CarbonAbsorption).Scan(&m.ID)
}

// ListMeasurements returns a page of a zone's measurements, newest first
func (db *DB) ListMeasurements(ctx context.Context, zoneID int64, skip, limit int) ([]Measurement, error) {
	query := `
		SELECT id, zone_id, timestamp, ndvi, carbon_absorption
		FROM zone_measurements
		WHERE zone_id = $1
		ORDER BY timestamp DESC
		OFFSET $2 LIMIT $3
	`
	return db.queryMeasurements(ctx, query, zoneID, skip, limit)
}

// RecentMeasurements returns the last limit measurements in chronological order
func (db *DB) RecentMeasurements(ctx context.Context, zoneID int64, limit int) ([]Measurement, error) {
	query := `
		SELECT id, zone_id, timestamp, ndvi, carbon_absorption FROM (
			SELECT id, zone_id, timestamp, ndvi, carbon_absorption
			FROM zone_measurements
			WHERE zone_id = $1
			ORDER BY timestamp DESC
			LIMIT $2
		) recent
		ORDER BY timestamp ASC
	`
	return db.queryMeasurements(ctx, query, zoneID, limit)
}

func (db *DB) queryMeasurements(ctx context.Context, query string, args ...any) ([]Measurement, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	measurements := make([]Measurement, 0)
	for rows.Next() {
		var m Measurement
		if err := rows.Scan(&m.ID, &m.ZoneID, &m.Timestamp, &m.NDVI, &m.CarbonAbsorption); err != nil {
			return nil, err
		}
		measurements = append(measurements, m)
	}
	return measurements, rows.Err()
}

// ZoneStats aggregates the measurements of several zones at once.
// Zones without measurements are present with zero values.
func (db *DB) ZoneStats(ctx context.Context, zoneIDs []int64) (map[int64]*ZoneStats, error) {
	stats := make(map[int64]*ZoneStats, len(zoneIDs))
	for _, id := range zoneIDs {
		stats[id] = &ZoneStats{}
	}
	if len(zoneIDs) == 0 {
		return stats, nil
	}

	query := `
		SELECT DISTINCT ON (zone_id)
			zone_id,
			ROUND((SUM(carbon_absorption) OVER w)::numeric, 6)::float8,
			ROUND((AVG(ndvi) OVER w)::numeric, 4)::float8,
			COUNT(*) OVER w,
			id, timestamp, ndvi, carbon_absorption
		FROM zone_measurements
		WHERE zone_id = ANY($1)
		WINDOW w AS (PARTITION BY zone_id)
		ORDER BY zone_id, timestamp DESC
	`

	rows, err := db.QueryContext(ctx, query, pq.Array(zoneIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var zoneID int64
		var s ZoneStats
		var latest Measurement
		if err := rows.Scan(
			&zoneID,
			&s.TotalCarbonAbsorption,
			&s.AverageNDVI,
			&s.MeasurementsCount,
			&latest.ID,
			&latest.Timestamp,
			&latest.NDVI,
			&latest.CarbonAbsorption,
		); err != nil {
			return nil, err
		}
		latest.ZoneID = zoneID
		s.LatestMeasurement = &latest
		stats[zoneID] = &s
	}

	return stats, rows.Err()
}

// ListDailySummaries returns a zone's daily rollups since the given date, oldest first
func (db *DB) ListDailySummaries(ctx context.Context, zoneID int64, since time.Time) ([]DailySummary, error) {
	query := `
		SELECT zone_id, date, avg_ndvi, min_ndvi, max_ndvi, total_carbon, sample_count, created_at
		FROM zone_daily_summary
		WHERE zone_id = $1 AND date >= $2::date
		ORDER BY date
	`

	rows, err := db.QueryContext(ctx, query, zoneID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]DailySummary, 0)
	for rows.Next() {
		var s DailySummary
		if err := rows.Scan(
			&s.ZoneID,
			&s.Date,
			&s.AvgNDVI,
			&s.MinNDVI,
			&s.MaxNDVI,
			&s.TotalCarbon,
			&s.SampleCount,
			&s.CreatedAt,
		); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Prices

// InsertPrices writes price points in one transaction
func (db *DB) InsertPrices(ctx context.Context, prices []*CarbonPrice) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO carbon_prices (price, timestamp, source)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	for _, p := range prices {
		if err := tx.QueryRowContext(ctx, query, p.Price, p.Timestamp, p.Source).Scan(&p.ID); err != nil {
			return fmt.Errorf("failed to insert price: %w", err)
		}
	}

	return tx.Commit()
}

// LatestPrice returns the newest price point, or nil if there is none
func (db *DB) LatestPrice(ctx context.Context) (*CarbonPrice, error) {
	query := `
		SELECT id, price, timestamp, source
		FROM carbon_prices
		ORDER BY timestamp DESC
		LIMIT 1
	`

	var p CarbonPrice
	err := db.QueryRowContext(ctx, query).Scan(&p.ID, &p.Price, &p.Timestamp, &p.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPrices returns the newest limit price points, newest first
func (db *DB) ListPrices(ctx context.Context, limit int) ([]CarbonPrice, error) {
	query := `
		SELECT id, price, timestamp, source
		FROM carbon_prices
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prices := make([]CarbonPrice, 0)
	for rows.Next() {
		var p CarbonPrice
		if err := rows.Scan(&p.ID, &p.Price, &p.Timestamp, &p.Source); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}
