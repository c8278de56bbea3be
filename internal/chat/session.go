// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jeranaias/seekrun/internal/conversation"
	"github.com/jeranaias/seekrun/internal/ledger"
	"github.com/jeranaias/seekrun/internal/llm"
	"github.com/jeranaias/seekrun/internal/util"
)

// ErrEmptyInput is returned when a turn has no text after normalization.
var ErrEmptyInput = errors.New("empty input")

// errAbandoned is recorded for streamed replies closed before completion.
var errAbandoned = errors.New("reply abandoned before completion")

// =============================================================================
// INTERFACES
// =============================================================================

// Generator is the completion backend. *llm.Client satisfies it.
type Generator interface {
	Model() string
	NewRequest(prompt string, stream bool) llm.GenerationRequest
	Complete(ctx context.Context, req llm.GenerationRequest) (string, error)
	Stream(ctx context.Context, req llm.GenerationRequest) (*llm.Stream, error)
}

// Recorder receives one entry per finished or failed call.
// *ledger.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, e ledger.Exchange) error
}

// =============================================================================
// SESSION
// =============================================================================

// Stats counts the calls made through one Session.
type Stats struct {
	Calls      int
	Failures   int
	ReplyChars int
	Started    time.Time
}

// Session runs turns for one conversation.
type Session struct {
	gen      Generator
	state    *conversation.State
	recorder Recorder
	logger   *slog.Logger
	id       string
	stats    Stats
}

// Option configures a Session.
type Option func(*Session)

// WithRecorder records every call.
func WithRecorder(r Recorder) Option {
	return func(s *Session) {
		s.recorder = r
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// New creates a Session. A nil state starts an empty conversation.
func New(gen Generator, state *conversation.State, opts ...Option) *Session {
	if state == nil {
		state = conversation.NewState("")
	}
	s := &Session{
		gen:    gen,
		state:  state,
		logger: slog.Default(),
		id:     ledger.NewSessionID(),
		stats:  Stats{Started: time.Now()},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session id used for ledger entries.
func (s *Session) ID() string {
	return s.id
}

// State returns the conversation state.
func (s *Session) State() *conversation.State {
	return s.state
}

// Model returns the backend model id.
func (s *Session) Model() string {
	return s.gen.Model()
}

// Stats returns the call counters for this session.
func (s *Session) Stats() Stats {
	return s.stats
}

// prepare normalizes input and builds the assembled prompt.
func (s *Session) prepare(input string) (string, string, error) {
	input = util.NormalizeInput(input)
	if input == "" {
		return "", "", ErrEmptyInput
	}
	return input, s.state.BuildPrompt(input), nil
}

// Send runs one turn and returns the full reply. History gains the input
// and the reply only on success.
func (s *Session) Send(ctx context.Context, input string) (string, error) {
	input, prompt, err := s.prepare(input)
	if err != nil {
		return "", err
	}

	start := time.Now()
	reply, err := s.gen.Complete(ctx, s.gen.NewRequest(prompt, false))
	s.record(ctx, false, prompt, reply, time.Since(start), err)
	if err != nil {
		return "", err
	}

	s.state.AppendExchange(input, reply)
	return reply, nil
}

// SendStream starts a streamed turn. The caller must drain or Close the
// returned Reply. A failure before any data leaves history unchanged.
func (s *Session) SendStream(ctx context.Context, input string) (*Reply, error) {
	input, prompt, err := s.prepare(input)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	stream, err := s.gen.Stream(ctx, s.gen.NewRequest(prompt, true))
	if err != nil {
		s.record(ctx, true, prompt, "", time.Since(start), err)
		return nil, err
	}

	return &Reply{
		session: s,
		ctx:     ctx,
		stream:  stream,
		input:   input,
		prompt:  prompt,
		start:   start,
	}, nil
}

// record updates counters and writes a ledger entry when configured.
func (s *Session) record(ctx context.Context, streamed bool, prompt, reply string, elapsed time.Duration, callErr error) {
	s.stats.Calls++
	s.stats.ReplyChars += len([]rune(reply))
	if callErr != nil {
		s.stats.Failures++
	}

	if s.recorder == nil {
		return
	}
	entry := ledger.Exchange{
		SessionID:   s.id,
		Model:       s.gen.Model(),
		Streamed:    streamed,
		PromptChars: len([]rune(prompt)),
		ReplyChars:  len([]rune(reply)),
		Duration:    elapsed,
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	}
	// The turn's own context may already be cancelled.
	if err := s.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("failed to record exchange", "error", err)
	}
}
