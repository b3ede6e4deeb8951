// Package publisher writes each snapshot to the store and fans it out to
// live subscribers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dennisdiepolder/monti/rtmetrics/internal/metrics"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/storage"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/types"
	"github.com/rs/zerolog"
)

// Default store keys read by the dashboards
const (
	DefaultQueueKey = "Realtime_Queue_Metrics_data"
	DefaultAgentKey = "Realtime_Agent_Metrics_data"
)

// Keys names the two store keys a snapshot is written under
type Keys struct {
	Queues string
	Agents string
}

// DefaultKeys returns the keys the dashboards read
func DefaultKeys() Keys {
	return Keys{Queues: DefaultQueueKey, Agents: DefaultAgentKey}
}

// Notifier receives every snapshot after it has been stored
type Notifier interface {
	Notify(ctx context.Context, snap types.Snapshot) error
}

// Publisher stores snapshots and notifies subscribers
type Publisher struct {
	store     storage.Store
	keys      Keys
	notifiers []Notifier
	logger    zerolog.Logger
}

// New creates a Publisher
func New(store storage.Store, keys Keys, logger zerolog.Logger, notifiers ...Notifier) *Publisher {
	return &Publisher{
		store:     store,
		keys:      keys,
		notifiers: notifiers,
		logger:    logger.With().Str("component", "publisher").Logger(),
	}
}

// Publish writes the queue list, then the agent list. A store failure is
// returned; if it hits the agent key, the queue key already holds the new
// snapshot. Notifier failures are logged and never returned.
func (p *Publisher) Publish(ctx context.Context, snap types.Snapshot) error {
	m := metrics.Get()

	queues, err := encode(snap.Queues)
	if err != nil {
		return fmt.Errorf("failed to encode queue metrics: %w", err)
	}
	agents, err := encode(snap.Agents)
	if err != nil {
		return fmt.Errorf("failed to encode agent metrics: %w", err)
	}

	if err := p.store.Set(ctx, p.keys.Queues, queues); err != nil {
		m.RecordPublishError()
		return fmt.Errorf("failed to publish queue metrics: %w", err)
	}
	if err := p.store.Set(ctx, p.keys.Agents, agents); err != nil {
		m.RecordPublishError()
		return fmt.Errorf("failed to publish agent metrics: %w", err)
	}
	m.RecordPublish()

	p.logger.Debug().
		Str("snapshot_id", snap.ID).
		Int("queues", len(snap.Queues)).
		Int("agents", len(snap.Agents)).
		Msg("snapshot stored")

	for _, n := range p.notifiers {
		if err := n.Notify(ctx, snap); err != nil {
			m.RecordNotifierError()
			p.logger.Warn().
				Err(err).
				Str("snapshot_id", snap.ID).
				Str("notifier", fmt.Sprintf("%T", n)).
				Msg("failed to notify subscriber")
		}
	}
	return nil
}

// encode renders a list as an indented JSON array; nil encodes as [].
func encode[T any](list []T) ([]byte, error) {
	if list == nil {
		list = []T{}
	}
	return json.MarshalIndent(list, "", "  ")
}

// Load reads both lists back from the store. The returned snapshot carries
// no ID or capture time.
func Load(ctx context.Context, store storage.Store, keys Keys) (types.Snapshot, error) {
	var snap types.Snapshot

	raw, err := store.Get(ctx, keys.Queues)
	if err != nil {
		return snap, fmt.Errorf("failed to load queue metrics: %w", err)
	}
	if err := json.Unmarshal(raw, &snap.Queues); err != nil {
		return snap, fmt.Errorf("failed to decode queue metrics: %w", err)
	}

	raw, err = store.Get(ctx, keys.Agents)
	if err != nil {
		return snap, fmt.Errorf("failed to load agent metrics: %w", err)
	}
	if err := json.Unmarshal(raw, &snap.Agents); err != nil {
		return snap, fmt.Errorf("failed to decode agent metrics: %w", err)
	}

	return snap, nil
}
