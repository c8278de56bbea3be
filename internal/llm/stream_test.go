// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkLine(content string) string {
	return fmt.Sprintf(`data: {"id":"c","choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`, content) + "\n\n"
}

func drain(t *testing.T, r *EventReader) []string {
	t.Helper()
	var out []string
	for {
		frag, err := r.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, frag)
	}
}

// =============================================================================
// EVENT READER
// =============================================================================

func TestEventReader_FragmentsThenDone(t *testing.T) {
	body := chunkLine("A") + chunkLine("B") + "data: [DONE]\n\n"
	r := NewEventReader(strings.NewReader(body))
	assert.Equal(t, []string{"A", "B"}, drain(t, r))
}

func TestEventReader_SkipsMalformedLine(t *testing.T) {
	body := chunkLine("A") + "data: {not json\n\n" + chunkLine("B") + "data: [DONE]\n"
	r := NewEventReader(strings.NewReader(body))
	assert.Equal(t, []string{"A", "B"}, drain(t, r))
	assert.Equal(t, 1, r.Skipped())
}

func TestEventReader_IgnoresNonDataLines(t *testing.T) {
	body := ": keep-alive\n" +
		"event: message\n" +
		"id: 7\n" +
		"\n" +
		"\r\n" +
		chunkLine("x") +
		"data: [DONE]\n"
	r := NewEventReader(strings.NewReader(body))
	assert.Equal(t, []string{"x"}, drain(t, r))
	assert.Equal(t, 0, r.Skipped())
}

func TestEventReader_EmptyDeltaProducesNothing(t *testing.T) {
	body := `data: {"choices":[{"delta":{"role":"assistant"}}]}` + "\n" +
		`data: {"choices":[]}` + "\n" +
		chunkLine("") +
		chunkLine("hi") +
		"data: [DONE]\n"
	r := NewEventReader(strings.NewReader(body))
	assert.Equal(t, []string{"hi"}, drain(t, r))
}

func TestEventReader_NothingReadAfterDone(t *testing.T) {
	body := chunkLine("A") + "data: [DONE]\n" + chunkLine("late")
	r := NewEventReader(strings.NewReader(body))
	assert.Equal(t, []string{"A"}, drain(t, r))

	_, err := r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestEventReader_EOFWithoutDone(t *testing.T) {
	r := NewEventReader(strings.NewReader(chunkLine("A") + chunkLine("B")))
	assert.Equal(t, []string{"A", "B"}, drain(t, r))
}

func TestEventReader_DataWithoutSpace(t *testing.T) {
	body := `data:{"choices":[{"delta":{"content":"z"}}]}` + "\ndata:[DONE]\n"
	r := NewEventReader(strings.NewReader(body))
	assert.Equal(t, []string{"z"}, drain(t, r))
}

type failingReader struct {
	data string
	read bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if !f.read {
		f.read = true
		return copy(p, f.data), nil
	}
	return 0, errors.New("connection reset by peer")
}

func TestEventReader_ReadErrorIsTransport(t *testing.T) {
	r := NewEventReader(&failingReader{data: chunkLine("A")})

	frag, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "A", frag)

	_, err = r.Next()
	require.Error(t, err)
	assert.True(t, IsTransport(err))

	// The failure is sticky.
	_, again := r.Next()
	assert.Equal(t, err, again)
}

// =============================================================================
// STREAM
// =============================================================================

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

func TestStream_AccumulatesAndClosesOnCompletion(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader(chunkLine("A") + chunkLine("B") + "data: [DONE]\n")}
	s := newStream(body, nil)

	text, err := s.Collect()
	require.NoError(t, err)
	assert.Equal(t, "AB", text)
	assert.True(t, s.Done())
	assert.Equal(t, 2, s.Count())
	assert.True(t, body.closed)
}

func TestStream_MidStreamFailureKeepsPartial(t *testing.T) {
	body := &trackingBody{Reader: &failingReader{data: chunkLine("par")}}
	s := newStream(body, nil)

	frag, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "par", frag)

	_, err = s.Next()
	require.Error(t, err)
	var streamErr *StreamError
	require.True(t, errors.As(err, &streamErr))
	assert.Equal(t, "par", streamErr.Partial)
	assert.True(t, IsTransport(err))
	assert.Equal(t, "par", s.Text())
	assert.False(t, s.Done())
	assert.True(t, body.closed)
}

func TestStream_FragmentsEarlyBreakCloses(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader(chunkLine("1") + chunkLine("2") + chunkLine("3"))}
	s := newStream(body, nil)

	var got []string
	for frag, err := range s.Fragments() {
		require.NoError(t, err)
		got = append(got, frag)
		if len(got) == 1 {
			break
		}
	}
	assert.Equal(t, []string{"1"}, got)
	assert.True(t, body.closed)
	assert.False(t, s.Done())

	_, err := s.Next()
	assert.ErrorIs(t, err, errStreamClosed)
}

func TestClientStream_EndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, part := range []string{"你", "好"} {
			fmt.Fprint(w, chunkLine(part))
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	s, err := c.Stream(context.Background(), c.NewRequest("hi", false))
	require.NoError(t, err)
	defer s.Close()

	var got []string
	for frag, err := range s.Fragments() {
		require.NoError(t, err)
		got = append(got, frag)
	}
	assert.Equal(t, []string{"你", "好"}, got)
	assert.Equal(t, "你好", s.Text())
}

func TestClientStream_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	s, err := c.Stream(context.Background(), c.NewRequest("hi", true))
	require.Error(t, err)
	assert.Nil(t, s)
	assert.True(t, IsTransport(err))
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
	assert.Contains(t, err.Error(), "upstream unavailable")
}

func newTimeoutClient(t *testing.T, url string, timeout time.Duration) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = url
	cfg.APIKey = "sk-test"
	cfg.Timeout = timeout
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func TestClientStream_StallHitsReadTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, chunkLine("A"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := newTimeoutClient(t, server.URL, 200*time.Millisecond)
	s, err := c.Stream(context.Background(), c.NewRequest("hi", false))
	require.NoError(t, err)

	start := time.Now()
	text, err := s.Collect()
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, "A", text)

	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, "A", streamErr.Partial)
	assert.True(t, IsTransport(err))
	assert.ErrorIs(t, err, ErrStreamIdle)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientStream_SlowSteadyStreamCompletes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, part := range []string{"a", "b", "c", "d"} {
			fmt.Fprint(w, chunkLine(part))
			flusher.Flush()
			time.Sleep(120 * time.Millisecond)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c := newTimeoutClient(t, server.URL, 300*time.Millisecond)
	s, err := c.Stream(context.Background(), c.NewRequest("hi", false))
	require.NoError(t, err)

	text, err := s.Collect()
	require.NoError(t, err)
	assert.Equal(t, "abcd", text)
}

func TestClientStream_ConsumerPauseDoesNotExpire(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, chunkLine("x"))
		fmt.Fprint(w, chunkLine("y"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c := newTimeoutClient(t, server.URL, 100*time.Millisecond)
	s, err := c.Stream(context.Background(), c.NewRequest("hi", false))
	require.NoError(t, err)
	defer s.Close()

	frag, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "x", frag)

	time.Sleep(250 * time.Millisecond)

	text, err := s.Collect()
	require.NoError(t, err)
	assert.Equal(t, "xy", text)
}
