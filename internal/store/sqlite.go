package store

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"BTCMonitor/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists daily price history to a SQLite database.
// At most one record exists per date; writes are insert-or-replace.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the SQLite database and runs migrations.
func Open(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_history (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			date       TEXT NOT NULL UNIQUE,
			price_usd  REAL NOT NULL,
			market_cap REAL,
			volume     REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_date ON price_history(date)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Dates returns the set of persisted dates within r, keyed by YYYY-MM-DD.
func (s *SQLiteStore) Dates(r model.DateRange) (map[string]struct{}, error) {
	rows, err := s.db.Query(
		`SELECT date FROM price_history WHERE date BETWEEN ? AND ?`,
		r.Start.Format(model.DateLayout), r.End.Format(model.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		set[d] = struct{}{}
	}
	return set, rows.Err()
}

// UpsertPrices writes records with insert-or-replace semantics by date.
// The whole batch is one transaction; calling it twice with the same
// records is a no-op in effect.
func (s *SQLiteStore) UpsertPrices(records []model.DailyPrice) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO price_history (date, price_usd, market_cap, volume)
		 VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(r.DateKey(), r.PriceUSD, nullable(r.MarketCap), nullable(r.Volume)); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert %s: %w", r.DateKey(), err)
		}
	}
	return tx.Commit()
}

// PriceOn returns the record for the given date, falling back to the
// nearest prior date when the exact day is missing. ok is false when no
// record at or before the date exists.
func (s *SQLiteStore) PriceOn(date string) (model.DailyPrice, bool, error) {
	row := s.db.QueryRow(
		`SELECT date, price_usd, market_cap, volume FROM price_history
		 WHERE date <= ? ORDER BY date DESC LIMIT 1`, date)
	rec, err := scanPrice(row)
	if err == sql.ErrNoRows {
		return model.DailyPrice{}, false, nil
	}
	if err != nil {
		return model.DailyPrice{}, false, fmt.Errorf("query price for %s: %w", date, err)
	}
	return rec, true, nil
}

// Coverage returns the min and max persisted dates. A zero range means the
// store is empty.
func (s *SQLiteStore) Coverage() (model.DateRange, error) {
	var minDate, maxDate sql.NullString
	err := s.db.QueryRow(
		`SELECT MIN(date), MAX(date) FROM price_history`).Scan(&minDate, &maxDate)
	if err != nil {
		return model.DateRange{}, fmt.Errorf("query coverage: %w", err)
	}
	if !minDate.Valid || !maxDate.Valid {
		return model.DateRange{}, nil
	}
	start, err := model.ParseDate(minDate.String)
	if err != nil {
		return model.DateRange{}, err
	}
	end, err := model.ParseDate(maxDate.String)
	if err != nil {
		return model.DateRange{}, err
	}
	return model.DateRange{Start: start, End: end}, nil
}

// Count returns the number of persisted records.
func (s *SQLiteStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM price_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("query count: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrice(row rowScanner) (model.DailyPrice, error) {
	var dateStr string
	var price float64
	var marketCap, volume sql.NullFloat64
	if err := row.Scan(&dateStr, &price, &marketCap, &volume); err != nil {
		return model.DailyPrice{}, err
	}
	date, err := model.ParseDate(dateStr)
	if err != nil {
		return model.DailyPrice{}, err
	}
	return model.DailyPrice{
		Date:      date,
		PriceUSD:  price,
		MarketCap: marketCap.Float64,
		Volume:    volume.Float64,
	}, nil
}

// nullable maps "not reported" zero values to NULL.
func nullable(v float64) any {
	if v <= 0 {
		return nil
	}
	return v
}
