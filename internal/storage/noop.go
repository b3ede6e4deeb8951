package storage

import "context"

// NoopStore is used when persistence is disabled (STORE_MODE=none)
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) Set(_ context.Context, _ string, _ []byte) error { return nil }
func (s *NoopStore) Get(_ context.Context, _ string) ([]byte, error) { return nil, ErrNotFound }
func (s *NoopStore) Close() error                                    { return nil }
