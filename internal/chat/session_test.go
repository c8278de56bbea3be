// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/seekrun/internal/conversation"
	"github.com/jeranaias/seekrun/internal/ledger"
	"github.com/jeranaias/seekrun/internal/llm"
)

// =============================================================================
// HELPERS
// =============================================================================

type memoryRecorder struct {
	entries []ledger.Exchange
}

func (m *memoryRecorder) Record(_ context.Context, e ledger.Exchange) error {
	m.entries = append(m.entries, e)
	return nil
}

func chunkLine(text string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"delta": map[string]string{"content": text}}},
	})
	return "data: " + string(b) + "\n\n"
}

func newClient(t *testing.T, url string) *llm.Client {
	t.Helper()
	cfg := llm.DefaultConfig()
	cfg.BaseURL = url
	cfg.APIKey = "sk-test"
	c, err := llm.NewClient(cfg)
	require.NoError(t, err)
	return c
}

// sseServer streams the given fragments followed by [DONE].
func sseServer(t *testing.T, prompts *[]string, fragments ...string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if prompts != nil {
			var body struct {
				Messages []struct {
					Content string `json:"content"`
				} `json:"messages"`
			}
			if assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) && len(body.Messages) == 1 {
				*prompts = append(*prompts, body.Messages[0].Content)
			}
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, f := range fragments {
			fmt.Fprint(w, chunkLine(f))
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(server.Close)
	return server
}

func jsonServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

// =============================================================================
// STREAMING TURNS
// =============================================================================

func TestSendStream_CommitsOnCompletion(t *testing.T) {
	var prompts []string
	server := sseServer(t, &prompts, "A", "B")
	rec := &memoryRecorder{}
	state := conversation.NewState("sys")
	sess := New(newClient(t, server.URL), state, WithRecorder(rec))

	reply, err := sess.SendStream(context.Background(), "hello")
	require.NoError(t, err)

	var got []string
	for fragment, err := range reply.Fragments() {
		require.NoError(t, err)
		got = append(got, fragment)
	}
	assert.Equal(t, []string{"A", "B"}, got)
	assert.True(t, reply.Completed())

	history := state.History()
	require.Len(t, history, 2)
	assert.Equal(t, conversation.RoleUser, history[0].Role)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, conversation.RoleAssistant, history[1].Role)
	assert.Equal(t, "AB", history[1].Content)

	require.Len(t, prompts, 1)
	assert.True(t, strings.HasPrefix(prompts[0], "系统提示：\nsys\n"))
	assert.True(t, strings.HasSuffix(prompts[0], "用户：hello\n助手："))

	require.Len(t, rec.entries, 1)
	assert.True(t, rec.entries[0].Streamed)
	assert.Equal(t, sess.ID(), rec.entries[0].SessionID)
	assert.Equal(t, llm.ChatModel, rec.entries[0].Model)
	assert.Equal(t, 2, rec.entries[0].ReplyChars)
	assert.Empty(t, rec.entries[0].Error)
}

func TestSendStream_SecondTurnSeesHistory(t *testing.T) {
	var prompts []string
	server := sseServer(t, &prompts, "ok")
	sess := New(newClient(t, server.URL), conversation.NewState("sys"))

	for _, input := range []string{"first", "second"} {
		reply, err := sess.SendStream(context.Background(), input)
		require.NoError(t, err)
		_, err = reply.Collect()
		require.NoError(t, err)
	}

	require.Len(t, prompts, 2)
	assert.NotContains(t, prompts[0], "对话历史：")
	assert.Contains(t, prompts[1], "对话历史：\n用户：first\n助手：ok\n")
	assert.Equal(t, 4, sess.State().Len())
}

func TestSendStream_EarlyCloseLeavesHistory(t *testing.T) {
	server := sseServer(t, nil, "1", "2", "3")
	rec := &memoryRecorder{}
	state := conversation.NewState("sys")
	sess := New(newClient(t, server.URL), state, WithRecorder(rec))

	reply, err := sess.SendStream(context.Background(), "hi")
	require.NoError(t, err)

	fragment, err := reply.Next()
	require.NoError(t, err)
	assert.Equal(t, "1", fragment)
	require.NoError(t, reply.Close())
	require.NoError(t, reply.Close())

	assert.False(t, reply.Completed())
	assert.Equal(t, 0, state.Len())
	require.Len(t, rec.entries, 1)
	assert.NotEmpty(t, rec.entries[0].Error)
}

func TestSendStream_NonSuccessLeavesHistory(t *testing.T) {
	server := jsonServer(t, http.StatusUnauthorized, `{"error":{"message":"bad key"}}`)
	rec := &memoryRecorder{}
	state := conversation.NewState("sys")
	sess := New(newClient(t, server.URL), state, WithRecorder(rec))

	reply, err := sess.SendStream(context.Background(), "hi")
	require.Error(t, err)
	assert.Nil(t, reply)
	assert.True(t, llm.IsTransport(err))
	assert.Equal(t, 0, state.Len())

	require.Len(t, rec.entries, 1)
	assert.Contains(t, rec.entries[0].Error, "bad key")
	assert.Equal(t, 1, sess.Stats().Failures)
}

func TestSendStream_MidStreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack()
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		body := chunkLine("par")
		fmt.Fprintf(buf, "HTTP/1.1 200 OK\r\nContent-Type: text/event-stream\r\nContent-Length: %d\r\n\r\n%s",
			len(body)+100, body)
		buf.Flush()
	}))
	defer server.Close()

	state := conversation.NewState("sys")
	sess := New(newClient(t, server.URL), state)

	reply, err := sess.SendStream(context.Background(), "hi")
	require.NoError(t, err)
	defer reply.Close()

	text, err := reply.Collect()
	require.Error(t, err)
	assert.True(t, llm.IsTransport(err))
	assert.Equal(t, "par", text)
	assert.Equal(t, 0, state.Len())
}

func TestSendStream_EmptyInput(t *testing.T) {
	sess := New(newClient(t, "http://127.0.0.1:1"), nil)
	_, err := sess.SendStream(context.Background(), "   \n")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

// =============================================================================
// NON-STREAMING TURNS
// =============================================================================

func TestSend_Success(t *testing.T) {
	server := jsonServer(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"你好！"}}]}`)
	state := conversation.NewState("sys")
	sess := New(newClient(t, server.URL), state)

	reply, err := sess.Send(context.Background(), "你好")
	require.NoError(t, err)
	assert.Equal(t, "你好！", reply)

	history := state.History()
	require.Len(t, history, 2)
	assert.Equal(t, "你好", history[0].Content)
	assert.Equal(t, "你好！", history[1].Content)
	assert.Equal(t, 1, sess.Stats().Calls)
}

func TestSend_EmptyChoices(t *testing.T) {
	server := jsonServer(t, http.StatusOK, `{"choices":[]}`)
	state := conversation.NewState("sys")
	sess := New(newClient(t, server.URL), state)

	_, err := sess.Send(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, llm.IsEmptyResponse(err))
	assert.Equal(t, 0, state.Len())
}

func TestSend_NormalizesInput(t *testing.T) {
	server := jsonServer(t, http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`)
	state := conversation.NewState("sys")
	sess := New(newClient(t, server.URL), state)

	_, err := sess.Send(context.Background(), "  cafe\u0301 ")
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", state.History()[0].Content)
}
