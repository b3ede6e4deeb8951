package esl

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
)

// Header names used by the event socket.
const (
	HeaderContentType   = "Content-Type"
	HeaderContentLength = "Content-Length"
	HeaderReplyText     = "Reply-Text"
)

// Content types the client reacts to.
const (
	ContentTypeAuthRequest      = "auth/request"
	ContentTypeCommandReply     = "command/reply"
	ContentTypeAPIResponse      = "api/response"
	ContentTypeDisconnectNotice = "text/disconnect-notice"
)

// Frame is one message received from the switch: a header block and an
// optional body of exactly Content-Length bytes.
type Frame struct {
	Header map[string]string
	Body   []byte

	// Raw holds the frame as it appeared on the wire: header lines, the
	// blank separator line, then the body.
	Raw []byte
}

// Get returns a header value, or "" when the header is absent.
func (f *Frame) Get(key string) string {
	return f.Header[key]
}

// ContentType returns the Content-Type header.
func (f *Frame) ContentType() string {
	return f.Header[HeaderContentType]
}

// ContentLength returns the announced body length and whether one was sent.
func (f *Frame) ContentLength() (int, bool) {
	v, ok := f.Header[HeaderContentLength]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FrameReader decodes consecutive frames from a byte stream. Bytes that
// arrive past the end of one frame stay buffered for the next.
type FrameReader struct {
	r *bufio.Reader
}

// NewFrameReader creates a FrameReader on top of r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReaderSize(r, 4096)}
}

// ReadFrame blocks until one complete frame has been received.
//
// A frame without Content-Length is header-only and ends at the blank line.
func (fr *FrameReader) ReadFrame() (*Frame, error) {
	var raw bytes.Buffer
	header := make(map[string]string)

	for {
		line, err := fr.r.ReadString('\n')
		if err != nil {
			return nil, readError(err)
		}

		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			if len(header) == 0 {
				// stray separator between frames
				continue
			}
			raw.WriteString(line)
			break
		}

		key, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			return nil, fmt.Errorf("%w: malformed header line %q", ErrProtocol, trimmed)
		}
		header[strings.TrimSpace(key)] = strings.TrimSpace(value)
		raw.WriteString(line)
	}

	frame := &Frame{Header: header}

	if v, ok := header[HeaderContentLength]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: invalid %s %q", ErrProtocol, HeaderContentLength, v)
		}

		body := make([]byte, n)
		if _, err := io.ReadFull(fr.r, body); err != nil {
			return nil, readError(err)
		}
		frame.Body = body
		raw.Write(body)
	}

	frame.Raw = raw.Bytes()
	return frame, nil
}

// readError maps a low-level read failure onto the client's error classes.
func readError(err error) error {
	var netErr net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: connection closed by peer: %w", ErrConnection, err)
	}
	return fmt.Errorf("%w: %w", ErrConnection, err)
}
