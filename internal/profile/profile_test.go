// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/seekrun/internal/conversation"
)

func TestDefault(t *testing.T) {
	p := Default()
	assert.Equal(t, "default", p.Name)
	assert.Equal(t, BuiltinSource, p.Source)
	assert.True(t, strings.HasPrefix(p.SystemPrompt, "你是一个专业的AI助手"))
	assert.Len(t, p.FewShotExamples, conversation.MaxFewShotExamples)
	assert.Equal(t, conversation.DefaultTemplate(), p.Template)
	for _, ex := range p.FewShotExamples {
		assert.NotEmpty(t, ex.Description)
		assert.False(t, strings.HasPrefix(ex.AssistantResponse, "\n"))
	}
}

func TestLoad_Formats(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"p.toml": `
name = "terse"
system_prompt = "Be brief."
[template]
user_label = "Q: "
[[few_shot_examples]]
user_input = "2+2?"
assistant_response = "4"
`,
		"p.yaml": `
name: terse
system_prompt: Be brief.
template:
  user_label: "Q: "
few_shot_examples:
  - user_input: "2+2?"
    assistant_response: "4"
`,
		"p.json": `{"name":"terse","system_prompt":"Be brief.","template":{"user_label":"Q: "},
			"few_shot_examples":[{"user_input":"2+2?","assistant_response":"4"}]}`,
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0600))

			p, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, "terse", p.Name)
			assert.Equal(t, "Be brief.", p.SystemPrompt)
			assert.Equal(t, path, p.Source)
			assert.Equal(t, "Q: ", p.Template.UserLabel)
			assert.Equal(t, conversation.DefaultTemplate().AssistantLabel, p.Template.AssistantLabel)
			require.Len(t, p.FewShotExamples, 1)
			assert.Equal(t, "4", p.FewShotExamples[0].AssistantResponse)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		ext  string
	}{
		{"unknown extension", `system_prompt = "x"`, ".ini"},
		{"no system prompt", `name = "x"`, ".toml"},
		{"bad toml", `system_prompt = `, ".toml"},
		{"example without answer", `{"system_prompt":"x","few_shot_examples":[{"user_input":"q"}]}`, ".json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.ext)
			assert.Error(t, err)
		})
	}
}

func TestParse_KeepsLastThreeExamples(t *testing.T) {
	data := `{"system_prompt":"x","few_shot_examples":[
		{"user_input":"1","assistant_response":"1"},
		{"user_input":"2","assistant_response":"2"},
		{"user_input":"3","assistant_response":"3"},
		{"user_input":"4","assistant_response":"4"}]}`
	p, err := Parse([]byte(data), ".json")
	require.NoError(t, err)
	require.Len(t, p.FewShotExamples, 3)
	assert.Equal(t, "2", p.FewShotExamples[0].UserInput)
}

func TestApply(t *testing.T) {
	s := conversation.NewState("old")
	s.AppendExchange("a", "b")

	p := Default()
	p.Apply(s)

	assert.Equal(t, p.SystemPrompt, s.SystemPrompt())
	assert.Equal(t, p.FewShotExamples, s.Examples())
	assert.Equal(t, 2, s.Len())
}

func TestResolve(t *testing.T) {
	p, err := Resolve("")
	require.NoError(t, err)
	assert.Equal(t, BuiltinSource, p.Source)

	_, err = Resolve(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestWatch_DeliversChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	require.NoError(t, os.WriteFile(path, []byte(`system_prompt = "one"`), 0600))

	w, err := Watch(path, nil)
	require.NoError(t, err)
	defer w.Close()

	// An invalid write is skipped, the valid one after it is delivered.
	require.NoError(t, os.WriteFile(path, []byte(`name = "broken"`), 0600))
	time.Sleep(2 * DefaultDebounce)
	require.NoError(t, os.WriteFile(path, []byte(`system_prompt = "two"`), 0600))

	select {
	case p := <-w.Updates():
		assert.Equal(t, "two", p.SystemPrompt)
	case <-time.After(5 * time.Second):
		t.Fatal("no profile update received")
	}
}
