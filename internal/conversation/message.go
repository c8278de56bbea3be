// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import "time"

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one history entry. Messages are values and are not modified
// after creation.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// NewMessage creates a message stamped with the current time.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now()}
}

// =============================================================================
// FEW-SHOT EXAMPLES
// =============================================================================

// MaxFewShotExamples is the capacity of a FewShotSet.
const MaxFewShotExamples = 3

// FewShotExample is a worked question/answer pair shown before the history.
type FewShotExample struct {
	UserInput         string `json:"user_input" toml:"user_input" yaml:"user_input"`
	AssistantResponse string `json:"assistant_response" toml:"assistant_response" yaml:"assistant_response"`
	Description       string `json:"description" toml:"description" yaml:"description"`
}

// FewShotSet keeps at most MaxFewShotExamples examples in insertion order.
// Adding to a full set evicts the oldest.
type FewShotSet struct {
	items []FewShotExample
}

// Add appends ex, evicting the oldest example when the set is full.
// It returns the evicted example, if any.
func (s *FewShotSet) Add(ex FewShotExample) (evicted FewShotExample, ok bool) {
	if len(s.items) >= MaxFewShotExamples {
		evicted, ok = s.items[0], true
		s.items = append(s.items[:0:0], s.items[1:]...)
	}
	s.items = append(s.items, ex)
	return evicted, ok
}

// Replace clears the set and adds examples in order, so only the last
// MaxFewShotExamples survive.
func (s *FewShotSet) Replace(examples []FewShotExample) {
	s.items = nil
	for _, ex := range examples {
		s.Add(ex)
	}
}

// Clear removes all examples.
func (s *FewShotSet) Clear() {
	s.items = nil
}

// Len returns the number of examples held.
func (s *FewShotSet) Len() int {
	return len(s.items)
}

// Items returns a copy of the examples, oldest first.
func (s *FewShotSet) Items() []FewShotExample {
	out := make([]FewShotExample, len(s.items))
	copy(out, s.items)
	return out
}
