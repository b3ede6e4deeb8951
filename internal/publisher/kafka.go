package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dennisdiepolder/monti/rtmetrics/internal/types"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// HeaderSnapshotID carries the snapshot ID on every stream message
const HeaderSnapshotID = "snapshot-id"

// MessageWriter is the subset of *kafka.Writer the notifier uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier streams every snapshot to a topic as two messages, one per
// snapshot kind, keyed by the matching store key.
type KafkaNotifier struct {
	writer  MessageWriter
	keys    Keys
	timeout time.Duration
	logger  zerolog.Logger
}

// KafkaConfig holds the stream settings
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Timeout time.Duration
}

// ParseBrokers splits a comma-separated broker list, dropping blanks
func ParseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewKafkaNotifier creates a synchronous writer for cfg.Topic
func NewKafkaNotifier(cfg KafkaConfig, keys Keys, logger zerolog.Logger) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	logger = logger.With().Str("component", "kafka").Logger()
	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka snapshot stream enabled")

	return newKafkaNotifier(w, keys, cfg.Timeout, logger)
}

func newKafkaNotifier(w MessageWriter, keys Keys, timeout time.Duration, logger zerolog.Logger) *KafkaNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &KafkaNotifier{
		writer:  w,
		keys:    keys,
		timeout: timeout,
		logger:  logger,
	}
}

// Notify writes the queue and agent envelopes in one batch
func (k *KafkaNotifier) Notify(ctx context.Context, snap types.Snapshot) error {
	queues := types.NewSnapshotMessage(snap)
	queues.Agents = nil
	agents := types.NewSnapshotMessage(snap)
	agents.Queues = nil

	msgs := make([]kafka.Message, 0, 2)
	for _, m := range []struct {
		key string
		msg types.SnapshotMessage
	}{
		{k.keys.Queues, queues},
		{k.keys.Agents, agents},
	} {
		value, err := json.Marshal(m.msg)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", m.key, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(m.key),
			Value:   value,
			Headers: []kafka.Header{{Key: HeaderSnapshotID, Value: []byte(snap.ID)}},
			Time:    snap.CapturedAt,
		})
	}

	writeCtx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	if err := k.writer.WriteMessages(writeCtx, msgs...); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", snap.ID, err)
	}

	k.logger.Debug().Str("snapshot_id", snap.ID).Msg("snapshot streamed")
	return nil
}

// Close flushes and closes the writer
func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
