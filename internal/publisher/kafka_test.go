package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/dennisdiepolder/monti/rtmetrics/internal/types"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaNotifierWritesOneMessagePerKind(t *testing.T) {
	w := &fakeWriter{}
	n := newKafkaNotifier(w, DefaultKeys(), 0, zerolog.New(&bytes.Buffer{}))
	snap := testSnapshot()

	if err := n.Notify(context.Background(), snap); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if len(w.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != DefaultQueueKey || string(w.msgs[1].Key) != DefaultAgentKey {
		t.Errorf("unexpected keys %s, %s", w.msgs[0].Key, w.msgs[1].Key)
	}

	for _, msg := range w.msgs {
		if len(msg.Headers) != 1 || msg.Headers[0].Key != HeaderSnapshotID || string(msg.Headers[0].Value) != snap.ID {
			t.Errorf("expected snapshot-id header, got %+v", msg.Headers)
		}
	}

	var queues types.SnapshotMessage
	if err := json.Unmarshal(w.msgs[0].Value, &queues); err != nil {
		t.Fatalf("bad queue envelope: %v", err)
	}
	if queues.Type != "snapshot" || queues.ID != snap.ID {
		t.Errorf("unexpected envelope %+v", queues)
	}
	if !reflect.DeepEqual(queues.Queues, snap.Queues) || queues.Agents != nil {
		t.Errorf("queue envelope must carry only queues, got %+v", queues)
	}

	var agents types.SnapshotMessage
	if err := json.Unmarshal(w.msgs[1].Value, &agents); err != nil {
		t.Fatalf("bad agent envelope: %v", err)
	}
	if len(agents.Agents) != 2 || agents.Queues != nil {
		t.Errorf("agent envelope must carry only agents, got %+v", agents)
	}
}

func TestKafkaNotifierWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	n := newKafkaNotifier(w, DefaultKeys(), 0, zerolog.New(&bytes.Buffer{}))

	if err := n.Notify(context.Background(), testSnapshot()); !errors.Is(err, w.err) {
		t.Errorf("expected wrapped write error, got %v", err)
	}
}

func TestKafkaNotifierClose(t *testing.T) {
	w := &fakeWriter{}
	n := newKafkaNotifier(w, DefaultKeys(), 0, zerolog.New(&bytes.Buffer{}))

	if err := n.Close(); err != nil || !w.closed {
		t.Errorf("expected writer closed, err=%v", err)
	}
}

func TestParseBrokers(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"kafka:9092", []string{"kafka:9092"}},
		{" a:9092, ,b:9092 ", []string{"a:9092", "b:9092"}},
	}

	for _, tt := range tests {
		if got := ParseBrokers(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseBrokers(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
