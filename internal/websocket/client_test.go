package websocket

import "testing"

func TestClientNewestSkipsSupersededSnapshots(t *testing.T) {
	tests := []struct {
		name   string
		queued []string
		close  bool
		want   string
	}{
		{"nothing queued", nil, false, "snap-1"},
		{"one behind", []string{"snap-2"}, false, "snap-2"},
		{"several behind", []string{"snap-2", "snap-3", "snap-4"}, false, "snap-4"},
		{"closed after queueing", []string{"snap-2"}, true, "snap-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{id: "dashboard", send: make(chan []byte, sendBuffer)}
			for _, q := range tt.queued {
				c.send <- []byte(q)
			}
			if tt.close {
				close(c.send)
			}

			if got := string(c.newest([]byte("snap-1"))); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
			if !tt.close && len(c.send) != 0 {
				t.Errorf("expected queue to be drained, %d left", len(c.send))
			}
			if tt.close {
				if _, ok := <-c.send; ok {
					t.Error("expected the closed channel to stay observable")
				}
			}
		})
	}
}
