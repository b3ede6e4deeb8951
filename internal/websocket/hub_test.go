package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/rtmetrics/internal/types"
	"github.com/rs/zerolog"
)

func startHub(t *testing.T) *Hub {
	t.Helper()

	hub := NewHub(zerolog.New(&bytes.Buffer{}))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()

	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatalf("%s did not receive a message", c.id)
		return nil
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(zerolog.New(&bytes.Buffer{}))

	if hub.clients == nil {
		t.Error("expected clients map to be initialized")
	}
	if hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("expected channels to be initialized")
	}
}

func TestHubClientCount(t *testing.T) {
	hub := NewHub(zerolog.New(&bytes.Buffer{}))

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}

	hub.mu.Lock()
	hub.clients[&Client{id: "test1"}] = true
	hub.clients[&Client{id: "test2"}] = true
	hub.mu.Unlock()

	if hub.ClientCount() != 2 {
		t.Errorf("expected 2 clients, got %d", hub.ClientCount())
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := startHub(t)
	client := &Client{id: "test-client", hub: hub, send: make(chan []byte, 1)}

	if !hub.Register(client) {
		t.Fatal("expected register to succeed")
	}
	time.Sleep(10 * time.Millisecond)
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client after register, got %d", hub.ClientCount())
	}

	hub.Unregister(client)
	time.Sleep(10 * time.Millisecond)
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients after unregister, got %d", hub.ClientCount())
	}

	if _, ok := <-client.send; ok {
		t.Error("expected send channel to be closed")
	}
}

func TestHubNotifyBroadcastsSnapshot(t *testing.T) {
	hub := startHub(t)

	client1 := &Client{id: "client1", hub: hub, send: make(chan []byte, 10)}
	client2 := &Client{id: "client2", hub: hub, send: make(chan []byte, 10)}
	hub.Register(client1)
	hub.Register(client2)

	snap := types.Snapshot{
		ID:         "snap-1",
		CapturedAt: time.Unix(1_700_000_000, 0).UTC(),
		Queues:     []types.QueueMetrics{{Name: "Sales", Online: 2}},
	}
	if err := hub.Notify(context.Background(), snap); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	for _, c := range []*Client{client1, client2} {
		var msg types.SnapshotMessage
		if err := json.Unmarshal(receive(t, c), &msg); err != nil {
			t.Fatalf("%s: bad message: %v", c.id, err)
		}
		if msg.Type != "snapshot" || msg.ID != "snap-1" {
			t.Errorf("%s: unexpected message %+v", c.id, msg)
		}
		if len(msg.Queues) != 1 || msg.Queues[0].Online != 2 {
			t.Errorf("%s: unexpected queues %+v", c.id, msg.Queues)
		}
	}
}

func TestHubReplaysLastSnapshotToNewClients(t *testing.T) {
	hub := startHub(t)

	if err := hub.Notify(context.Background(), types.Snapshot{ID: "snap-7"}); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	late := &Client{id: "late", hub: hub, send: make(chan []byte, 10)}
	hub.Register(late)

	var msg types.SnapshotMessage
	if err := json.Unmarshal(receive(t, late), &msg); err != nil {
		t.Fatalf("bad message: %v", err)
	}
	if msg.ID != "snap-7" {
		t.Errorf("expected replay of snap-7, got %s", msg.ID)
	}
}

func TestHubDropsSlowClients(t *testing.T) {
	hub := startHub(t)

	slow := &Client{id: "slow", hub: hub, send: make(chan []byte)}
	hub.Register(slow)
	time.Sleep(10 * time.Millisecond)

	if err := hub.Notify(context.Background(), types.Snapshot{ID: "snap-1"}); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Errorf("expected slow client to be dropped, got %d clients", hub.ClientCount())
	}
}

func TestHubRegisterAfterStop(t *testing.T) {
	hub := NewHub(zerolog.New(&bytes.Buffer{}))
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	if hub.Register(&Client{id: "late", send: make(chan []byte, 1)}) {
		t.Error("expected register to fail after the hub stopped")
	}
}
