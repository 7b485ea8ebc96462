package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/sanoj619/SanSM/internal/model"
)

// SQLiteStore persists tracked instruments and pipeline output to a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite store opened")
	return s, nil
}

func (s *SQLiteStore) Name() string { return "sqlite" }

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS "fno-stocks" (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			stock_name TEXT NOT NULL UNIQUE
		)`,

		`CREATE TABLE IF NOT EXISTS "OHL_Stocks" (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			tracked_id INTEGER NOT NULL,
			symbol     TEXT NOT NULL,
			open       NUMERIC,
			day_low    NUMERIC,
			day_high   NUMERIC,
			pct_change NUMERIC,
			prev_close NUMERIC,
			week_low   NUMERIC,
			week_high  NUMERIC,
			as_of_date TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ohl_date ON "OHL_Stocks"(as_of_date)`,

		`CREATE TABLE IF NOT EXISTS stock_data (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			stock_symbol TEXT NOT NULL,
			price        NUMERIC,
			volume       NUMERIC,
			created_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_data_symbol ON stock_data(stock_symbol)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmtHead(stmt), err)
		}
	}
	return nil
}

func (s *SQLiteStore) Acquire(ctx context.Context) (Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire sqlite connection: %w", err)
	}
	return &sqliteSession{conn: conn}, nil
}

func (s *SQLiteStore) Close() error {
	log.Info().Str("path", s.path).Msg("closing sqlite store")
	return s.db.Close()
}

// sqliteSession pins one pooled connection. A *sql.Conn is not safe for
// concurrent statements, hence the mutex.
type sqliteSession struct {
	conn *sql.Conn
	mu   sync.Mutex
	once sync.Once
}

func (s *sqliteSession) ListTracked(ctx context.Context) ([]model.TrackedRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.QueryContext(ctx, `SELECT id, stock_name FROM "fno-stocks" ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tracked: %w", err)
	}
	defer rows.Close()

	var out []model.TrackedRow
	for rows.Next() {
		var r model.TrackedRow
		if err := rows.Scan(&r.ID, &r.Symbol); err != nil {
			return nil, fmt.Errorf("scan tracked: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteSession) InsertOutcome(ctx context.Context, row model.OutcomeRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.ExecContext(ctx, `INSERT INTO "OHL_Stocks"
		(tracked_id, symbol, open, day_low, day_high, pct_change, prev_close,
		 week_low, week_high, as_of_date, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		row.TrackedID, row.Symbol, row.Open, row.DayLow, row.DayHigh,
		row.PercentChange, row.PreviousClose, row.WeekLow, row.WeekHigh,
		row.AsOfDate, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert outcome %s: %w", row.Symbol, err)
	}
	return nil
}

func (s *sqliteSession) InsertQuote(ctx context.Context, row model.QuoteRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.ExecContext(ctx, `INSERT INTO stock_data
		(stock_symbol, price, volume, created_at)
		VALUES (?,?,?,?)`,
		row.Symbol, row.Price, row.VWAP, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert quote %s: %w", row.Symbol, err)
	}
	return nil
}

func (s *sqliteSession) InsertTracked(ctx context.Context, symbol string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO "fno-stocks" (stock_name) VALUES (?) ON CONFLICT(stock_name) DO NOTHING`, symbol)
	if err != nil {
		return false, fmt.Errorf("insert tracked %s: %w", symbol, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert tracked %s: %w", symbol, err)
	}
	return n > 0, nil
}

func (s *sqliteSession) Release() {
	s.once.Do(func() {
		if err := s.conn.Close(); err != nil {
			log.Warn().Err(err).Msg("release sqlite connection")
		}
	})
}
