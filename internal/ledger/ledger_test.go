// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	session := NewSessionID()
	base := time.Now().Add(-time.Minute)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Record(ctx, Exchange{
			SessionID:   session,
			Model:       "deepseek-chat",
			Streamed:    i%2 == 0,
			PromptChars: 10 * (i + 1),
			ReplyChars:  5,
			Duration:    time.Duration(i+1) * 100 * time.Millisecond,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}))
	}

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 30, recent[0].PromptChars, "newest first")
	assert.Equal(t, 20, recent[1].PromptChars)
	assert.True(t, recent[0].Streamed)
	assert.False(t, recent[1].Streamed)
	assert.Equal(t, 300*time.Millisecond, recent[0].Duration)
	assert.NotEmpty(t, recent[0].ID)
	assert.True(t, recent[0].Succeeded())
}

func TestSummary(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, Exchange{SessionID: "a", Model: "m", PromptChars: 10, ReplyChars: 20, Duration: 100 * time.Millisecond}))
	require.NoError(t, s.Record(ctx, Exchange{SessionID: "a", Model: "m", PromptChars: 30, Duration: 300 * time.Millisecond, Error: "API error (HTTP 500)"}))
	require.NoError(t, s.Record(ctx, Exchange{SessionID: "b", Model: "m", PromptChars: 1, ReplyChars: 1}))

	sum, err := s.Summary(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Calls)
	assert.Equal(t, 1, sum.Failures)
	assert.Equal(t, 40, sum.PromptChars)
	assert.Equal(t, 20, sum.ReplyChars)
	assert.Equal(t, 200*time.Millisecond, sum.MeanDuration)
	assert.False(t, sum.FirstAt.IsZero())

	all, err := s.Summary(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, all.Calls)
}

func TestSummary_Empty(t *testing.T) {
	s := openTestStore(t)
	sum, err := s.Summary(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Calls)
	assert.True(t, sum.FirstAt.IsZero())
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), Exchange{SessionID: "x", Model: "m"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	recent, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestClosedStore(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Record(context.Background(), Exchange{}), ErrClosed)
	_, err := s.Recent(context.Background(), 1)
	assert.ErrorIs(t, err, ErrClosed)
}
