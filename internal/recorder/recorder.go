package recorder

import (
	"context"
	"errors"

	"github.com/sanoj619/SanSM/internal/model"
)

// ErrNoStore is returned by Acquire when no database is configured.
var ErrNoStore = errors.New("no store configured")

// Store hands out sessions against the relational backend.
type Store interface {
	Acquire(ctx context.Context) (Session, error)
	Close() error
	Name() string
}

// Session is a scoped handle acquired once per operation. Its methods are
// safe for concurrent use. Release must be called on every exit path.
type Session interface {
	ListTracked(ctx context.Context) ([]model.TrackedRow, error)
	InsertOutcome(ctx context.Context, row model.OutcomeRow) error
	InsertQuote(ctx context.Context, row model.QuoteRow) error
	// InsertTracked adds symbol to the tracked set and reports whether a
	// new row was created. An already tracked symbol is not an error.
	InsertTracked(ctx context.Context, symbol string) (bool, error)
	Release()
}

// stmtHead shortens a migration statement for error messages.
func stmtHead(stmt string) string {
	return stmt[:min(len(stmt), 40)]
}

// Open selects the backend: Postgres when a URL is given, otherwise SQLite
// when a path is given, otherwise a store that refuses every session.
func Open(ctx context.Context, postgresURL, sqlitePath string) (Store, error) {
	switch {
	case postgresURL != "":
		s, err := NewPostgresStore(ctx, postgresURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case sqlitePath != "":
		s, err := NewSQLiteStore(sqlitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return NewNoopStore(), nil
	}
}
