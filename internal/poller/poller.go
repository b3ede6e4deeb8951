// Package poller runs the fetch, parse, aggregate, publish cycle against the
// switch on a fixed delay.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/rtmetrics/internal/aggregator"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/esl"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/metrics"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/tabular"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultInterval is the delay between the end of one cycle and the start of
// the next
const DefaultInterval = 20 * time.Second

// Commands issued every cycle
const (
	CommandAgents = "callcenter_config agent list"
	CommandTiers  = "callcenter_config tier list"
	CommandQueues = "callcenter_config queue list"
)

// Commands names the list command for each table
type Commands struct {
	Agents string
	Tiers  string
	Queues string
}

// DefaultCommands returns the call-center list commands
func DefaultCommands() Commands {
	return Commands{
		Agents: CommandAgents,
		Tiers:  CommandTiers,
		Queues: CommandQueues,
	}
}

func (c Commands) list() []string {
	return []string{c.Agents, c.Tiers, c.Queues}
}

// Executor runs a batch of switch commands
type Executor interface {
	ExecuteBatch(ctx context.Context, commands []string) *esl.Batch
}

// Publisher receives every aggregated snapshot
type Publisher interface {
	Publish(ctx context.Context, snap types.Snapshot) error
}

// stater is implemented by executors that expose a connection state
type stater interface {
	State() esl.State
}

// Config holds the loop settings
type Config struct {
	Interval time.Duration
	Commands Commands
}

// Status describes the most recent cycle
type Status struct {
	SnapshotID string
	StartedAt  time.Time
	Duration   time.Duration
	Err        error
}

// Poller periodically turns the switch's tables into published snapshots
type Poller struct {
	source    Executor
	publisher Publisher
	cfg       Config
	logger    zerolog.Logger
	now       func() time.Time

	mu   sync.RWMutex
	last Status
}

// New creates a Poller. Zero config fields take their defaults.
func New(source Executor, publisher Publisher, cfg Config, logger zerolog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Commands == (Commands{}) {
		cfg.Commands = DefaultCommands()
	}

	return &Poller{
		source:    source,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With().Str("component", "poller").Logger(),
		now:       time.Now,
	}
}

// Start runs a cycle immediately, then waits the interval after each cycle
// completes. It returns when ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	p.logger.Info().Dur("interval", p.cfg.Interval).Msg("poller started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("poller stopped")
			return

		case <-timer.C:
			p.cycle(ctx)
			timer.Reset(p.cfg.Interval)
		}
	}
}

// cycle runs one cycle and records its outcome. Failures are logged and the
// loop carries on at the normal interval.
func (p *Poller) cycle(ctx context.Context) {
	m := metrics.Get()
	start := time.Now()

	snap, err := p.RunCycle(ctx)
	duration := time.Since(start)

	if s, ok := p.source.(stater); ok {
		m.SetESLState(s.State().String())
	}

	p.mu.Lock()
	p.last = Status{
		SnapshotID: snap.ID,
		StartedAt:  start,
		Duration:   duration,
		Err:        err,
	}
	p.mu.Unlock()

	if err != nil {
		m.RecordCycleError(duration)
		if ctx.Err() != nil {
			p.logger.Info().Err(err).Msg("cycle interrupted by shutdown")
			return
		}
		p.logger.Error().
			Err(err).
			Str("cycle_id", snap.ID).
			Dur("duration", duration).
			Msg("poll cycle failed")
		return
	}

	summary := aggregator.Summarize(aggregator.Result{Queues: snap.Queues, Agents: snap.Agents})
	m.RecordCycle(duration, summary.Queues, summary.Agents, summary.OnlineAgents, summary.CallsHandled)

	p.logger.Info().
		Str("cycle_id", snap.ID).
		Int("queues", summary.Queues).
		Int("agents", summary.Agents).
		Int("online", summary.OnlineAgents).
		Dur("duration", duration).
		Msg("snapshot published")
}

// RunCycle fetches the three tables in one batch, aggregates them against a
// single capture time, and publishes the result. The returned snapshot
// carries the cycle ID even on failure.
func (p *Poller) RunCycle(ctx context.Context) (types.Snapshot, error) {
	snap := types.Snapshot{
		ID:         uuid.NewString(),
		CapturedAt: p.now(),
	}
	logger := p.logger.With().Str("cycle_id", snap.ID).Logger()

	commands := p.cfg.Commands.list()
	batch := p.source.ExecuteBatch(ctx, commands)
	for range batch.Failed() {
		metrics.Get().RecordCommandError()
	}

	tables := make([]*tabular.Table, len(commands))
	for i, command := range commands {
		frame, err := batch.Get(command)
		if err != nil {
			return snap, fmt.Errorf("%s: %w", command, err)
		}
		table, err := tabular.Parse(frame.Body)
		if err != nil {
			return snap, fmt.Errorf("%s: %w", command, err)
		}
		logger.Debug().Str("command", command).Int("rows", table.Len()).Msg("table parsed")
		tables[i] = table
	}

	result := aggregator.Aggregate(aggregator.Input{
		Agents: tables[0].Records,
		Tiers:  tables[1].Records,
		Queues: tables[2].Records,
		Now:    snap.CapturedAt,
	})
	snap.Queues = result.Queues
	snap.Agents = result.Agents

	if err := p.publisher.Publish(ctx, snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// LastCycle returns the status of the most recent cycle, or false before
// the first cycle completes.
func (p *Poller) LastCycle() (Status, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, !p.last.StartedAt.IsZero()
}
