// Package message holds the inbound message being routed.
package message

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"time"

	"github.com/emersion/go-message/textproto"
)

// ErrTooLarge is returned by Read when the message exceeds the size limit.
var ErrTooLarge = errors.New("message exceeds size limit")

// Inbound is a message awaiting routing.  Only the envelope addresses drive routing; the header
// is parsed for logging and is rewritten when forwarding.
type Inbound struct {
	From     string
	To       string
	Header   textproto.Header
	Body     []byte
	Size     int64
	Received time.Time
}

// Read parses a raw RFC 5322 message from r.  maxSize limits the message length in bytes, zero
// or less for no limit.
func Read(from, to string, r io.Reader, maxSize int64) (*Inbound, error) {
	limit := int64(math.MaxInt64)
	if maxSize > 0 {
		limit = maxSize + 1
	}
	lr := &io.LimitedReader{R: r, N: limit}
	br := bufio.NewReader(lr)

	header, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("malformed message header: %w", err)
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return nil, err
	}

	size := limit - lr.N
	if maxSize > 0 && size > maxSize {
		return nil, ErrTooLarge
	}

	return &Inbound{
		From:     from,
		To:       to,
		Header:   header,
		Body:     body,
		Size:     size,
		Received: time.Now(),
	}, nil
}

// Subject returns the Subject header, empty if missing.
func (m *Inbound) Subject() string {
	return m.Header.Get("Subject")
}

// MessageID returns the Message-Id header, empty if missing.
func (m *Inbound) MessageID() string {
	return m.Header.Get("Message-Id")
}

// WriteTo writes the message to w, with extra headers set on top of the original ones.  The
// message itself is not modified.
func (m *Inbound) WriteTo(w io.Writer, extra map[string]string) error {
	header := m.Header.Copy()
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	// Header fields are prepended, so set in reverse to keep them sorted.
	for i := len(keys) - 1; i >= 0; i-- {
		header.Set(keys[i], extra[keys[i]])
	}

	if err := textproto.WriteHeader(w, header); err != nil {
		return err
	}
	_, err := w.Write(m.Body)
	return err
}
