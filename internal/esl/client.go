package esl

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultReadTimeout = 30 * time.Second
	DefaultDialTimeout = 10 * time.Second
)

// State is the connection state of a Client.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthPending
	StateReady
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthPending:
		return "auth_pending"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config holds the connection settings for a Client
type Config struct {
	Address     string // host:port of the event socket
	Password    string
	ReadTimeout time.Duration
	DialTimeout time.Duration
}

// Client is a single event socket connection to the switch. It connects
// lazily, re-authenticates after any connection failure, and serializes
// commands so one frame is in flight at a time.
type Client struct {
	cfg    Config
	dial   func(ctx context.Context, network, address string) (net.Conn, error)
	logger zerolog.Logger

	mu     sync.Mutex
	conn   net.Conn
	reader *FrameReader
	state  atomic.Int32
}

// NewClient creates a Client. No connection is made until Connect or Execute.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}

	dialer := &net.Dialer{Timeout: cfg.DialTimeout}
	return &Client{
		cfg:  cfg,
		dial: dialer.DialContext,
		logger: logger.With().
			Str("component", "esl").
			Str("address", cfg.Address).
			Logger(),
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// Connect opens and authenticates the connection. It is a no-op when the
// client is already Ready.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.conn != nil && c.State() == StateReady {
		return nil
	}

	c.setState(StateConnecting)
	c.logger.Info().Msg("connecting to switch")

	conn, err := c.dial(ctx, "tcp", c.cfg.Address)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("%w: dial %s: %w", ErrConnection, c.cfg.Address, err)
	}
	c.conn = conn
	c.reader = NewFrameReader(conn)

	greeting, err := c.readFrame(ctx)
	if err != nil {
		c.closeLocked()
		return err
	}
	if greeting.ContentType() != ContentTypeAuthRequest {
		c.closeLocked()
		return fmt.Errorf("%w: not an ESL endpoint (greeting content type %q)", ErrProtocol, greeting.ContentType())
	}

	c.setState(StateAuthPending)
	if err := c.send(ctx, "auth "+c.cfg.Password); err != nil {
		c.closeLocked()
		return err
	}

	reply, err := c.readFrame(ctx)
	if err != nil {
		c.closeLocked()
		return err
	}
	if reply.ContentType() != ContentTypeCommandReply {
		c.closeLocked()
		return fmt.Errorf("%w: unexpected auth reply content type %q", ErrProtocol, reply.ContentType())
	}
	if text := reply.Get(HeaderReplyText); !strings.HasPrefix(text, "+OK") {
		c.closeLocked()
		return fmt.Errorf("%w: switch replied %q", ErrAuthentication, text)
	}

	c.setState(StateReady)
	c.logger.Info().Msg("connected to switch")
	return nil
}

// Execute runs one api command and returns the switch's reply frame. A
// broken connection is closed and reopened on the next call.
func (c *Client) Execute(ctx context.Context, command string) (*Frame, error) {
	if strings.ContainsAny(command, "\r\n") {
		return nil, fmt.Errorf("%w: command must be a single line", ErrProtocol)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}

	if err := c.send(ctx, "api "+command); err != nil {
		c.closeLocked()
		return nil, err
	}

	frame, err := c.readFrame(ctx)
	if err != nil {
		c.closeLocked()
		return nil, err
	}
	if frame.ContentType() == ContentTypeDisconnectNotice {
		c.closeLocked()
		return nil, fmt.Errorf("%w: switch sent disconnect notice", ErrConnection)
	}

	c.logger.Debug().
		Str("command", command).
		Int("body_bytes", len(frame.Body)).
		Msg("command executed")

	return frame, nil
}

// ExecuteBatch runs commands in order on the same connection. A failing
// command is recorded in the batch and the remaining commands still run.
func (c *Client) ExecuteBatch(ctx context.Context, commands []string) *Batch {
	batch := NewBatch(len(commands))
	for _, command := range commands {
		frame, err := c.Execute(ctx, command)
		if err != nil {
			c.logger.Warn().Err(err).Str("command", command).Msg("command failed")
		}
		batch.Add(command, frame, err)
	}
	return batch
}

// Close drops the connection. A later Execute reconnects.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	c.setState(StateDisconnected)
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	c.logger.Info().Msg("connection closed")
	return err
}

// send writes one command frame terminated by a blank line.
func (c *Client) send(ctx context.Context, line string) error {
	c.conn.SetWriteDeadline(c.deadline(ctx))
	if _, err := c.conn.Write([]byte(line + "\n\n")); err != nil {
		return fmt.Errorf("%w: write: %w", ErrConnection, err)
	}
	return nil
}

// readFrame reads the next frame, bounded by the read timeout and by ctx.
func (c *Client) readFrame(ctx context.Context) (*Frame, error) {
	conn := c.conn
	conn.SetReadDeadline(c.deadline(ctx))

	// Unblock the read as soon as ctx is cancelled.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	frame, err := c.reader.ReadFrame()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("esl: read interrupted: %w", ctxErr)
		}
		return nil, err
	}
	return frame, nil
}

func (c *Client) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.cfg.ReadTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}
