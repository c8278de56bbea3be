// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/jeranaias/seekrun/internal/util"
)

// =============================================================================
// SESSION FILE FORMAT
// =============================================================================

// Snapshot is the on-disk form of a State. Fields are pointers so that a
// file missing a key leaves that part of the state alone on load.
type Snapshot struct {
	SystemPrompt        *string           `json:"system_prompt"`
	FewShotExamples     *[]FewShotExample `json:"few_shot_examples"`
	ConversationHistory *[]storedMessage  `json:"conversation_history"`
}

// storedMessage is one history record in a session file.
type storedMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp epochTime `json:"timestamp"`
}

// epochTime is written as fractional Unix seconds. On read it also accepts
// an RFC 3339 string; null or absent decodes as the zero time.
type epochTime struct {
	time.Time
}

func (t epochTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	secs := float64(t.UnixNano()) / float64(time.Second)
	return json.Marshal(secs)
}

func (t *epochTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}
	whole, frac := math.Modf(secs)
	t.Time = time.Unix(int64(whole), int64(frac*float64(time.Second)))
	return nil
}

// Snapshot captures the full state.
func (s *State) Snapshot() Snapshot {
	prompt := s.systemPrompt
	examples := s.examples.Items()
	history := make([]storedMessage, len(s.history))
	for i, m := range s.history {
		history[i] = storedMessage{Role: m.Role, Content: m.Content, Timestamp: epochTime{m.Timestamp}}
	}
	return Snapshot{
		SystemPrompt:        &prompt,
		FewShotExamples:     &examples,
		ConversationHistory: &history,
	}
}

// Restore applies a snapshot. Absent sections are left untouched. Examples
// beyond three keep the last three; history beyond MaxHistory keeps the
// most recent entries. Records without a timestamp are stamped with now.
func (s *State) Restore(snap Snapshot) error {
	var history []Message
	if snap.ConversationHistory != nil {
		now := time.Now()
		for i, rec := range *snap.ConversationHistory {
			if !rec.Role.Valid() {
				return fmt.Errorf("history entry %d: unknown role %q", i, rec.Role)
			}
			ts := rec.Timestamp.Time
			if ts.IsZero() {
				ts = now
			}
			history = append(history, Message{Role: rec.Role, Content: rec.Content, Timestamp: ts})
		}
	}

	if snap.SystemPrompt != nil {
		s.systemPrompt = *snap.SystemPrompt
	}
	if snap.FewShotExamples != nil {
		s.examples.Replace(*snap.FewShotExamples)
	}
	if snap.ConversationHistory != nil {
		s.history = nil
		for _, m := range history {
			s.Append(m)
		}
	}
	return nil
}

// MarshalJSON encodes the state in session file format.
func (s *State) MarshalJSON() ([]byte, error) {
	return json.MarshalIndent(s.Snapshot(), "", "  ")
}

// Save writes the state to path atomically with 0600 permissions.
func (s *State) Save(path string) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load reads a session file and applies it. On error the state is unchanged.
func (s *State) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to parse session %s: %w", path, err)
	}
	return s.Restore(snap)
}
