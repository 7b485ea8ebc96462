package recorder

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/sanoj619/SanSM/internal/model"
)

// PostgresStore persists to PostgreSQL through a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to connString and runs migrations.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().
		Str("host", cfg.ConnConfig.Host).
		Str("database", cfg.ConnConfig.Database).
		Msg("postgres store opened")
	return s, nil
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS "fno-stocks" (
			id         BIGSERIAL PRIMARY KEY,
			stock_name TEXT NOT NULL UNIQUE
		)`,

		`CREATE TABLE IF NOT EXISTS "OHL_Stocks" (
			id         BIGSERIAL PRIMARY KEY,
			tracked_id BIGINT NOT NULL,
			symbol     TEXT NOT NULL,
			open       NUMERIC,
			day_low    NUMERIC,
			day_high   NUMERIC,
			pct_change NUMERIC,
			prev_close NUMERIC,
			week_low   NUMERIC,
			week_high  NUMERIC,
			as_of_date DATE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ohl_date ON "OHL_Stocks"(as_of_date)`,

		`CREATE TABLE IF NOT EXISTS stock_data (
			id           BIGSERIAL PRIMARY KEY,
			stock_symbol TEXT NOT NULL,
			price        NUMERIC,
			volume       NUMERIC,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_data_symbol ON stock_data(stock_symbol)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmtHead(stmt), err)
		}
	}
	return nil
}

func (s *PostgresStore) Acquire(ctx context.Context) (Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire postgres connection: %w", err)
	}
	return &pgSession{conn: conn}, nil
}

func (s *PostgresStore) Close() error {
	log.Info().Msg("closing postgres store")
	s.pool.Close()
	return nil
}

// pgSession holds one pooled connection. pgx connections run one statement
// at a time, hence the mutex.
type pgSession struct {
	conn *pgxpool.Conn
	mu   sync.Mutex
	once sync.Once
}

func (s *pgSession) ListTracked(ctx context.Context) ([]model.TrackedRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(ctx, `SELECT id, stock_name FROM "fno-stocks" ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tracked: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.TrackedRow, error) {
		var r model.TrackedRow
		err := row.Scan(&r.ID, &r.Symbol)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect tracked: %w", err)
	}
	return out, nil
}

func (s *pgSession) InsertOutcome(ctx context.Context, row model.OutcomeRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(ctx, `INSERT INTO "OHL_Stocks"
		(tracked_id, symbol, open, day_low, day_high, pct_change, prev_close,
		 week_low, week_high, as_of_date)
		VALUES (@tracked_id, @symbol, @open, @day_low, @day_high, @pct_change,
		 @prev_close, @week_low, @week_high, @as_of_date::date)`,
		pgx.NamedArgs{
			"tracked_id": row.TrackedID,
			"symbol":     row.Symbol,
			"open":       row.Open,
			"day_low":    row.DayLow,
			"day_high":   row.DayHigh,
			"pct_change": row.PercentChange,
			"prev_close": row.PreviousClose,
			"week_low":   row.WeekLow,
			"week_high":  row.WeekHigh,
			"as_of_date": row.AsOfDate,
		},
	)
	if err != nil {
		return fmt.Errorf("insert outcome %s: %w", row.Symbol, err)
	}
	return nil
}

func (s *pgSession) InsertQuote(ctx context.Context, row model.QuoteRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(ctx, `INSERT INTO stock_data (stock_symbol, price, volume)
		VALUES (@symbol, @price, @volume)`,
		pgx.NamedArgs{
			"symbol": row.Symbol,
			"price":  row.Price,
			"volume": row.VWAP,
		},
	)
	if err != nil {
		return fmt.Errorf("insert quote %s: %w", row.Symbol, err)
	}
	return nil
}

func (s *pgSession) InsertTracked(ctx context.Context, symbol string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag, err := s.conn.Exec(ctx,
		`INSERT INTO "fno-stocks" (stock_name) VALUES (@symbol) ON CONFLICT (stock_name) DO NOTHING`,
		pgx.NamedArgs{"symbol": symbol},
	)
	if err != nil {
		return false, fmt.Errorf("insert tracked %s: %w", symbol, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *pgSession) Release() {
	s.once.Do(s.conn.Release)
}
