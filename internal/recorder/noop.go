package recorder

import "context"

// NoopStore is used when no database is configured. Every Acquire fails
// with ErrNoStore.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (n *NoopStore) Acquire(_ context.Context) (Session, error) { return nil, ErrNoStore }
func (n *NoopStore) Close() error                                 { return nil }
func (n *NoopStore) Name() string                                 { return "none" }
