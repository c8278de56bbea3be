// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

const (
	// MaxLineSize is the longest SSE line the reader accepts.
	MaxLineSize = 1024 * 1024

	doneSentinel = "[DONE]"
)

// errStreamClosed is returned by Next after Close.
var errStreamClosed = errors.New("stream closed")

// ErrStreamIdle is the cause of the Transport error reported when a stream
// goes longer than the client timeout without data.
var ErrStreamIdle = errors.New("stream idle")

// =============================================================================
// STREAMING TYPES
// =============================================================================

// streamChunk is one decoded data line of the stream.
type streamChunk struct {
	ID      string `json:"id"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// content returns the delta text of the first choice.
func (c *streamChunk) content() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// StreamError represents an error that occurred mid-stream, preserving the
// text received before it. Fragments already handed out are not retracted.
type StreamError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len([]rune(e.Partial)), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// SSE READER
// =============================================================================

type readerState int

const (
	stateAwaitingLine readerState = iota
	stateHaveDataLine
	stateDone
)

// EventReader turns SSE lines into text fragments.
//
// Blank lines and lines without a data: field are ignored. A [DONE] payload
// ends the stream; nothing after it is read. Payloads that are not valid JSON
// are skipped and counted. Chunks with empty delta text produce nothing.
type EventReader struct {
	scanner *bufio.Scanner
	state   readerState
	pending string
	skipped int
	err     error
	logger  *slog.Logger
}

// NewEventReader creates a reader over r.
func NewEventReader(r io.Reader) *EventReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	return &EventReader{scanner: scanner, logger: slog.Default()}
}

// Next returns the next non-empty fragment. It returns io.EOF after [DONE] or
// when the body ends, and a Transport error if reading fails.
func (r *EventReader) Next() (string, error) {
	for {
		switch r.state {
		case stateDone:
			if r.err != nil {
				return "", r.err
			}
			return "", io.EOF

		case stateAwaitingLine:
			if !r.scanner.Scan() {
				r.state = stateDone
				if err := r.scanner.Err(); err != nil {
					r.err = transportError("stream interrupted", 0, err)
				}
				continue
			}
			payload, ok := dataPayload(r.scanner.Text())
			if !ok {
				continue
			}
			r.pending = payload
			r.state = stateHaveDataLine

		case stateHaveDataLine:
			payload := r.pending
			r.pending = ""
			r.state = stateAwaitingLine

			if payload == doneSentinel {
				r.state = stateDone
				continue
			}

			text, err := decodeChunk(payload)
			if err != nil {
				r.skipped++
				r.logger.Debug("skipping malformed stream chunk", "error", err)
				continue
			}
			if text == "" {
				continue
			}
			return text, nil
		}
	}
}

// Skipped returns how many malformed data lines were dropped.
func (r *EventReader) Skipped() int {
	return r.skipped
}

// dataPayload returns the payload of a data: line.
func dataPayload(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	return strings.TrimSpace(line[len("data:"):]), true
}

// decodeChunk parses one data payload and returns its delta text.
func decodeChunk(payload string) (string, error) {
	var chunk streamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", &Error{Kind: KindDecode, Message: kindSentinelMessage[KindDecode], Cause: err}
	}
	return chunk.content(), nil
}

// =============================================================================
// STREAM
// =============================================================================

// Stream is a pull iterator over the fragments of one streamed response.
// It is not safe for concurrent use.
type Stream struct {
	body   io.ReadCloser
	events *EventReader
	text   strings.Builder
	count  int
	err    error
	done   bool
	closed bool
}

func newStream(body io.ReadCloser, logger *slog.Logger) *Stream {
	events := NewEventReader(body)
	if logger != nil {
		events.logger = logger
	}
	return &Stream{body: body, events: events}
}

// Next returns the next fragment, io.EOF once the response is complete, or
// a *StreamError if the connection failed mid-stream.
func (s *Stream) Next() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.done {
		return "", io.EOF
	}
	if s.closed {
		return "", errStreamClosed
	}

	fragment, err := s.events.Next()
	if err == io.EOF {
		s.done = true
		s.Close()
		return "", io.EOF
	}
	if err != nil {
		s.err = &StreamError{Partial: s.text.String(), Err: err}
		s.Close()
		return "", s.err
	}

	s.count++
	s.text.WriteString(fragment)
	return fragment, nil
}

// Fragments returns the remaining fragments as a sequence. Leaving the range
// loop early closes the stream. A mid-stream failure is yielded once as the
// last element.
func (s *Stream) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer s.Close()
		for {
			fragment, err := s.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}
}

// Text returns everything received so far.
func (s *Stream) Text() string {
	return s.text.String()
}

// Done reports whether the response completed normally.
func (s *Stream) Done() bool {
	return s.done
}

// Count returns the number of fragments received.
func (s *Stream) Count() int {
	return s.count
}

// Skipped returns how many malformed chunks were dropped.
func (s *Stream) Skipped() int {
	return s.events.Skipped()
}

// Close releases the connection. Closing before completion abandons the
// response. Close is idempotent.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// Collect drains the stream and returns the full text.
func (s *Stream) Collect() (string, error) {
	defer s.Close()
	for {
		_, err := s.Next()
		if err == io.EOF {
			return s.Text(), nil
		}
		if err != nil {
			return s.Text(), err
		}
	}
}

// =============================================================================
// READ DEADLINE
// =============================================================================

// idleBody bounds each Read of a streamed response. When a Read waits longer
// than timeout the request context is cancelled and the Read reports
// ErrStreamIdle. Time spent between reads does not count.
type idleBody struct {
	body    io.ReadCloser
	timeout time.Duration
	timer   *time.Timer
	cancel  context.CancelFunc
	expired atomic.Bool
}

func newIdleBody(body io.ReadCloser, timeout time.Duration, cancel context.CancelFunc) io.ReadCloser {
	if timeout <= 0 {
		return &cancelBody{ReadCloser: body, cancel: cancel}
	}
	b := &idleBody{body: body, timeout: timeout, cancel: cancel}
	b.timer = time.AfterFunc(timeout, func() {
		b.expired.Store(true)
		cancel()
	})
	b.timer.Stop()
	return b
}

func (b *idleBody) Read(p []byte) (int, error) {
	if b.expired.Load() {
		return 0, b.idleError()
	}
	b.timer.Reset(b.timeout)
	n, err := b.body.Read(p)
	b.timer.Stop()
	if b.expired.Load() {
		return n, b.idleError()
	}
	return n, err
}

func (b *idleBody) idleError() error {
	return fmt.Errorf("%w: no data for %s: %w", ErrStreamIdle, b.timeout, context.DeadlineExceeded)
}

func (b *idleBody) Close() error {
	b.timer.Stop()
	b.cancel()
	return b.body.Close()
}

// cancelBody releases the request context on Close.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	b.cancel()
	return b.ReadCloser.Close()
}
