// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	orig := NewState("你是一个有用的AI助手。")
	orig.AddExample(example(1))
	orig.AddExample(example(2))
	orig.AppendExchange("你好", "你好！有什么可以帮你？")
	orig.AppendExchange("再见", "再见！")
	require.NoError(t, orig.Save(path))

	loaded := NewState("other")
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, orig.SystemPrompt(), loaded.SystemPrompt())
	assert.Equal(t, orig.Examples(), loaded.Examples())

	want, got := orig.History(), loaded.History()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Role, got[i].Role)
		assert.Equal(t, want[i].Content, got[i].Content)
		assert.WithinDuration(t, want[i].Timestamp, got[i].Timestamp, time.Millisecond)
	}
}

func TestSave_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := NewState("sys")
	s.AddExample(FewShotExample{UserInput: "u", AssistantResponse: "a", Description: "d"})
	s.AppendExchange("你好", "hi")
	require.NoError(t, s.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "你好", "non-ASCII text is written unescaped")

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "sys", raw["system_prompt"])

	examples := raw["few_shot_examples"].([]any)
	assert.Equal(t, map[string]any{"user_input": "u", "assistant_response": "a", "description": "d"}, examples[0])

	history := raw["conversation_history"].([]any)
	first := history[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	_, isNumber := first["timestamp"].(float64)
	assert.True(t, isNumber, "timestamp is written as Unix seconds")
}

func TestLoad_MissingTimestampUsesNow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	content := `{"conversation_history":[{"role":"user","content":"a"},{"role":"assistant","content":"b","timestamp":null}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	before := time.Now()
	s := NewState("keep")
	require.NoError(t, s.Load(path))

	for _, m := range s.History() {
		assert.False(t, m.Timestamp.Before(before))
	}
	assert.Equal(t, "keep", s.SystemPrompt(), "absent keys leave state untouched")
}

func TestLoad_AcceptsLegacyAndRFC3339Timestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	content := `{"conversation_history":[
		{"role":"user","content":"a","timestamp":1712345678.5},
		{"role":"assistant","content":"b","timestamp":"2024-04-05T19:34:38Z"}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	s := NewState("")
	require.NoError(t, s.Load(path))
	h := s.History()
	require.Len(t, h, 2)
	assert.Equal(t, int64(1712345678), h[0].Timestamp.Unix())
	assert.Equal(t, 500*time.Millisecond, time.Duration(h[0].Timestamp.Nanosecond()))
	assert.Equal(t, time.Date(2024, 4, 5, 19, 34, 38, 0, time.UTC), h[1].Timestamp.UTC())
}

func TestLoad_EnforcesBounds(t *testing.T) {
	snap := Snapshot{}
	examples := []FewShotExample{example(1), example(2), example(3), example(4)}
	snap.FewShotExamples = &examples
	var history []storedMessage
	for i := 0; i < 30; i++ {
		history = append(history, storedMessage{Role: RoleUser, Content: fmt.Sprintf("m%d", i)})
	}
	snap.ConversationHistory = &history

	s := NewState("")
	require.NoError(t, s.Restore(snap))
	assert.Equal(t, []FewShotExample{example(2), example(3), example(4)}, s.Examples())
	require.Equal(t, MaxHistory, s.Len())
	assert.Equal(t, "m10", s.History()[0].Content)
}

func TestLoad_ErrorsLeaveStateUnchanged(t *testing.T) {
	dir := t.TempDir()
	s := NewState("sys")
	s.AppendExchange("a", "b")

	assert.Error(t, s.Load(filepath.Join(dir, "missing.json")))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"system_prompt": 5}`), 0600))
	assert.Error(t, s.Load(bad))

	badRole := filepath.Join(dir, "role.json")
	require.NoError(t, os.WriteFile(badRole, []byte(`{"system_prompt":"x","conversation_history":[{"role":"robot","content":"c"}]}`), 0600))
	assert.Error(t, s.Load(badRole))

	assert.Equal(t, "sys", s.SystemPrompt())
	assert.Equal(t, 2, s.Len())
}
