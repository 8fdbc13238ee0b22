package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jgoulah/lmpscraper/pkg/models"
	_ "modernc.org/sqlite"
)

const utcLayout = "2006-01-02 15:04:05"

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// Filter narrows ListPrices. Zero values match everything.
type Filter struct {
	Node   string
	Market string
	Column string
	Since  time.Time // inclusive
	Until  time.Time // exclusive
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS hourly_prices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		node TEXT NOT NULL,
		market TEXT NOT NULL,
		hour_start TEXT NOT NULL,
		hour_start_utc TEXT NOT NULL,
		column_name TEXT NOT NULL,
		value REAL,
		samples INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		published INTEGER DEFAULT 0,
		UNIQUE(node, market, hour_start_utc, column_name)
	);
	CREATE INDEX IF NOT EXISTS idx_prices_node_market ON hourly_prices(node, market);
	CREATE INDEX IF NOT EXISTS idx_prices_hour ON hourly_prices(hour_start_utc);
	CREATE INDEX IF NOT EXISTS idx_prices_published ON hourly_prices(published);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// UpsertPrices stores prices in one transaction. A price already stored for
// the same node, market, hour and column is overwritten and marked
// unpublished if its value changed.
func (db *DB) UpsertPrices(prices []models.HourlyPrice) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
	INSERT INTO hourly_prices (node, market, hour_start, hour_start_utc, column_name, value, samples, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(node, market, hour_start_utc, column_name) DO UPDATE SET
		value = excluded.value,
		samples = excluded.samples,
		published = CASE WHEN value IS excluded.value THEN published ELSE 0 END
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	createdAt := time.Now().UTC().Format(time.RFC3339)
	for _, p := range prices {
		var value sql.NullFloat64
		if p.Valid {
			value = sql.NullFloat64{Float64: p.Value, Valid: true}
		}
		if _, err := stmt.Exec(p.Node, p.Market, p.HourStart.Format(time.RFC3339),
			p.HourStart.UTC().Format(utcLayout), p.Column, value, p.Samples, createdAt); err != nil {
			return 0, fmt.Errorf("upserting price for %s: %w", p.HourStart.Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing prices: %w", err)
	}
	return len(prices), nil
}

// ListPrices retrieves stored prices matching f, ordered by hour
func (db *DB) ListPrices(f Filter) ([]models.HourlyPrice, error) {
	return db.queryPrices(f, false)
}

// ListUnpublishedPrices retrieves prices matching f that have not been published yet
func (db *DB) ListUnpublishedPrices(f Filter) ([]models.HourlyPrice, error) {
	return db.queryPrices(f, true)
}

func (db *DB) queryPrices(f Filter, unpublishedOnly bool) ([]models.HourlyPrice, error) {
	query := `
	SELECT id, node, market, hour_start, column_name, value, samples
	FROM hourly_prices
	WHERE 1 = 1`
	var args []any

	if f.Node != "" {
		query += ` AND node = ?`
		args = append(args, f.Node)
	}
	if f.Market != "" {
		query += ` AND market = ?`
		args = append(args, f.Market)
	}
	if f.Column != "" {
		query += ` AND column_name = ?`
		args = append(args, f.Column)
	}
	if !f.Since.IsZero() {
		query += ` AND hour_start_utc >= ?`
		args = append(args, f.Since.UTC().Format(utcLayout))
	}
	if !f.Until.IsZero() {
		query += ` AND hour_start_utc < ?`
		args = append(args, f.Until.UTC().Format(utcLayout))
	}
	if unpublishedOnly {
		query += ` AND published = 0`
	}
	query += ` ORDER BY hour_start_utc, column_name`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying prices: %w", err)
	}
	defer rows.Close()

	var results []models.HourlyPrice
	for rows.Next() {
		var p models.HourlyPrice
		var hourStr string
		var value sql.NullFloat64

		if err := rows.Scan(&p.ID, &p.Node, &p.Market, &hourStr, &p.Column, &value, &p.Samples); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		p.HourStart, err = time.Parse(time.RFC3339, hourStr)
		if err != nil {
			return nil, fmt.Errorf("parsing hour_start: %w", err)
		}
		p.Value = value.Float64
		p.Valid = value.Valid

		results = append(results, p)
	}

	return results, rows.Err()
}

// MarkPublished marks a price record as published
func (db *DB) MarkPublished(id int) error {
	query := `UPDATE hourly_prices SET published = 1 WHERE id = ?`
	_, err := db.conn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("marking record as published: %w", err)
	}
	return nil
}
