// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"io"
	"iter"
	"time"

	"github.com/jeranaias/seekrun/internal/llm"
)

// Reply is a streamed answer being pulled from the backend.
//
// The turn is committed to history when Next returns io.EOF. A mid-stream
// error or an early Close leaves history unchanged; text already returned
// by Next is not retracted.
type Reply struct {
	session  *Session
	ctx      context.Context
	stream   *llm.Stream
	input    string
	prompt   string
	start    time.Time
	finished bool
}

// Next returns the next fragment, io.EOF once the reply is complete, or the
// error that ended the stream.
func (r *Reply) Next() (string, error) {
	fragment, err := r.stream.Next()
	if err == io.EOF {
		r.finish(nil)
		return "", io.EOF
	}
	if err != nil {
		r.finish(err)
		return "", err
	}
	return fragment, nil
}

// Fragments returns the remaining fragments as a sequence. Leaving the loop
// early abandons the reply.
func (r *Reply) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer r.Close()
		for {
			fragment, err := r.Next()
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

// Collect drains the reply and returns the full text.
func (r *Reply) Collect() (string, error) {
	defer r.Close()
	for {
		_, err := r.Next()
		if err == io.EOF {
			return r.Text(), nil
		}
		if err != nil {
			return r.Text(), err
		}
	}
}

// Text returns the text received so far.
func (r *Reply) Text() string {
	return r.stream.Text()
}

// Completed reports whether the reply finished and was added to history.
func (r *Reply) Completed() bool {
	return r.finished && r.stream.Done()
}

// Skipped returns how many malformed chunks the stream dropped.
func (r *Reply) Skipped() int {
	return r.stream.Skipped()
}

// Close releases the connection. Closing before completion abandons the
// turn. Close is idempotent.
func (r *Reply) Close() error {
	if !r.finished {
		r.finish(errAbandoned)
	}
	return r.stream.Close()
}

func (r *Reply) finish(err error) {
	if r.finished {
		return
	}
	r.finished = true

	text := r.stream.Text()
	r.session.record(r.ctx, true, r.prompt, text, time.Since(r.start), err)
	if err == nil {
		r.session.state.AppendExchange(r.input, text)
	}
}
