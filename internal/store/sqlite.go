package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"stock-analyzer/internal/models"
)

// migrations are applied in order; PRAGMA user_version records how many
// have run.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS bars (
		ticker TEXT NOT NULL,
		date DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		PRIMARY KEY (ticker, date)
	);
	CREATE INDEX IF NOT EXISTS idx_bars_date ON bars(date);`,

	`CREATE TABLE IF NOT EXISTS prediction_cache (
		cache_key TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		expires_at DATETIME,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_cache_expires ON prediction_cache(expires_at);`,

	`CREATE TABLE IF NOT EXISTS sync_marks (
		mark TEXT PRIMARY KEY,
		synced_at DATETIME NOT NULL
	);`,
}

// SQLiteStore implements BarStore using SQLite.
type SQLiteStore struct {
	db *sql.DB

	mu    sync.RWMutex
	marks map[string]time.Time
}

// NewSQLiteStore opens (or creates) the database at dbPath and brings its
// schema up to date.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db, marks: make(map[string]time.Time)}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", dbPath, err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return err
	}
	for i := version; i < len(migrations); i++ {
		step := migrations[i]
		next := i + 1
		err := s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, step); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", next))
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d: %w", next, err)
		}
	}
	return nil
}

// inTx runs fn in a transaction, committing only when it succeeds.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveBars upserts bars for ticker in one transaction.
func (s *SQLiteStore) SaveBars(ctx context.Context, ticker string, bars []models.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	ticker = strings.ToUpper(ticker)

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT OR REPLACE INTO bars (ticker, date, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, b := range bars {
			if _, err := stmt.ExecContext(ctx, ticker, b.Date.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
				return fmt.Errorf("bar %s %s: %w", ticker, b.Date.Format("2006-01-02"), err)
			}
		}
		return nil
	})
}

// GetBars retrieves bars for ticker within r, oldest first.
func (s *SQLiteStore) GetBars(ctx context.Context, ticker string, r DateRange) ([]models.PriceBar, error) {
	conds := []string{"ticker = ?"}
	args := []interface{}{strings.ToUpper(ticker)}
	if !r.Start.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, r.Start.UTC())
	}
	if !r.End.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, r.End.UTC())
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT date, open, high, low, close, volume FROM bars WHERE "+strings.Join(conds, " AND ")+" ORDER BY date",
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	var bars []models.PriceBar
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		b.Date = b.Date.UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// GetBarsFreshness returns the date of the most recent stored bar, or the
// zero time when ticker has none.
func (s *SQLiteStore) GetBarsFreshness(ctx context.Context, ticker string) (time.Time, error) {
	var latest sql.NullString
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(date) FROM bars WHERE ticker = ?", strings.ToUpper(ticker)).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("failed to get bars freshness: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return parseSQLiteTime(latest.String)
}

// ListTickers returns every ticker with stored bars.
func (s *SQLiteStore) ListTickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT ticker FROM bars ORDER BY ticker")
	if err != nil {
		return nil, fmt.Errorf("failed to list tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// MAX() loses the column type, so the driver hands back text.
var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func parseSQLiteTime(s string) (time.Time, error) {
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// GetLastSync returns when key was last marked synced, or the zero time.
func (s *SQLiteStore) GetLastSync(key string) time.Time {
	s.mu.RLock()
	t, ok := s.marks[key]
	s.mu.RUnlock()
	if ok {
		return t
	}

	if err := s.db.QueryRow("SELECT synced_at FROM sync_marks WHERE mark = ?", key).Scan(&t); err != nil {
		return time.Time{}
	}
	s.mu.Lock()
	s.marks[key] = t
	s.mu.Unlock()
	return t
}

// SetLastSync records t as the sync time for key.
func (s *SQLiteStore) SetLastSync(key string, t time.Time) error {
	if _, err := s.db.Exec("INSERT OR REPLACE INTO sync_marks (mark, synced_at) VALUES (?, ?)", key, t); err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}
	s.mu.Lock()
	s.marks[key] = t
	s.mu.Unlock()
	return nil
}
