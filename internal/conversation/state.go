// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

// MaxHistory is the number of history entries kept after each append.
const MaxHistory = 20

// =============================================================================
// STATE
// =============================================================================

// State is the mutable conversation context for one chat session.
type State struct {
	systemPrompt string
	examples     FewShotSet
	history      []Message
	template     Template
}

// NewState creates a state with the given system prompt, no examples, an
// empty history and the default template.
func NewState(systemPrompt string) *State {
	return &State{
		systemPrompt: systemPrompt,
		template:     DefaultTemplate(),
	}
}

// SystemPrompt returns the active system prompt.
func (s *State) SystemPrompt() string {
	return s.systemPrompt
}

// SetSystemPrompt replaces the system prompt.
func (s *State) SetSystemPrompt(prompt string) {
	s.systemPrompt = prompt
}

// Template returns the prompt template.
func (s *State) Template() Template {
	return s.template
}

// SetTemplate replaces the prompt template. Empty labels take defaults.
func (s *State) SetTemplate(t Template) {
	s.template = t.WithDefaults()
}

// AddExample adds a few-shot example. When the set is full the oldest
// example is evicted and returned with ok set.
func (s *State) AddExample(ex FewShotExample) (evicted FewShotExample, ok bool) {
	return s.examples.Add(ex)
}

// SetExamples replaces all few-shot examples.
func (s *State) SetExamples(examples []FewShotExample) {
	s.examples.Replace(examples)
}

// ClearExamples removes all few-shot examples.
func (s *State) ClearExamples() {
	s.examples.Clear()
}

// Examples returns the few-shot examples, oldest first.
func (s *State) Examples() []FewShotExample {
	return s.examples.Items()
}

// Append adds msg to the history and trims it to the MaxHistory most recent
// entries.
func (s *State) Append(msg Message) {
	s.history = append(s.history, msg)
	if n := len(s.history); n > MaxHistory {
		s.history = append([]Message(nil), s.history[n-MaxHistory:]...)
	}
}

// AppendExchange records a completed turn: the user input, then the reply.
func (s *State) AppendExchange(input, reply string) {
	s.Append(NewMessage(RoleUser, input))
	s.Append(NewMessage(RoleAssistant, reply))
}

// History returns a copy of the history, oldest first.
func (s *State) History() []Message {
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// Len returns the number of history entries.
func (s *State) Len() int {
	return len(s.history)
}

// ClearHistory empties the history. Prompt and examples are kept.
func (s *State) ClearHistory() {
	s.history = nil
}

// BuildPrompt assembles the prompt for input from the current state.
func (s *State) BuildPrompt(input string) string {
	return Assemble(s.template.WithDefaults(), s.systemPrompt, s.examples.items, s.history, input)
}
