// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"fmt"
	"strings"
)

// ContextWindow is how many trailing history entries are rendered into a prompt.
const ContextWindow = 6

// =============================================================================
// TEMPLATE
// =============================================================================

// Template holds the fixed text placed around each section of a prompt.
// ExampleLabel is a format string receiving the 1-based example number.
type Template struct {
	SystemHeader   string `json:"system_header" toml:"system_header" yaml:"system_header"`
	ExamplesIntro  string `json:"examples_intro" toml:"examples_intro" yaml:"examples_intro"`
	ExampleLabel   string `json:"example_label" toml:"example_label" yaml:"example_label"`
	HistoryHeader  string `json:"history_header" toml:"history_header" yaml:"history_header"`
	UserLabel      string `json:"user_label" toml:"user_label" yaml:"user_label"`
	AssistantLabel string `json:"assistant_label" toml:"assistant_label" yaml:"assistant_label"`
	Closing        string `json:"closing" toml:"closing" yaml:"closing"`
}

// DefaultTemplate returns the Chinese labels the DeepSeek prompts use.
func DefaultTemplate() Template {
	return Template{
		SystemHeader:   "系统提示：",
		ExamplesIntro:  "以下是一些对话示例，请参考这种回答风格：",
		ExampleLabel:   "示例%d：",
		HistoryHeader:  "对话历史：",
		UserLabel:      "用户：",
		AssistantLabel: "助手：",
		Closing:        "现在请回答以下问题：",
	}
}

// WithDefaults returns t with every empty label taken from DefaultTemplate.
func (t Template) WithDefaults() Template {
	d := DefaultTemplate()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&t.SystemHeader, d.SystemHeader)
	fill(&t.ExamplesIntro, d.ExamplesIntro)
	fill(&t.ExampleLabel, d.ExampleLabel)
	fill(&t.HistoryHeader, d.HistoryHeader)
	fill(&t.UserLabel, d.UserLabel)
	fill(&t.AssistantLabel, d.AssistantLabel)
	fill(&t.Closing, d.Closing)
	return t
}

// exampleLabel renders the numbered label, tolerating a label without a verb.
func (t Template) exampleLabel(n int) string {
	if strings.Contains(t.ExampleLabel, "%d") {
		return fmt.Sprintf(t.ExampleLabel, n)
	}
	return t.ExampleLabel
}

// =============================================================================
// ASSEMBLY
// =============================================================================

// Assemble builds the prompt for input. Sections appear in a fixed order:
// system prompt, few-shot examples (if any), the last ContextWindow history
// entries (if any), then the new user turn and an open assistant label.
// Only user and assistant history entries are rendered.
func Assemble(tpl Template, systemPrompt string, examples []FewShotExample, history []Message, input string) string {
	parts := []string{tpl.SystemHeader + "\n" + systemPrompt + "\n"}

	if len(examples) > 0 {
		parts = append(parts, tpl.ExamplesIntro+"\n")
		for i, ex := range examples {
			parts = append(parts,
				tpl.exampleLabel(i+1),
				tpl.UserLabel+ex.UserInput,
				tpl.AssistantLabel+ex.AssistantResponse+"\n",
			)
		}
	}

	if len(history) > 0 {
		parts = append(parts, tpl.HistoryHeader)
		start := max(len(history)-ContextWindow, 0)
		for _, msg := range history[start:] {
			switch msg.Role {
			case RoleUser:
				parts = append(parts, tpl.UserLabel+msg.Content)
			case RoleAssistant:
				parts = append(parts, tpl.AssistantLabel+msg.Content)
			}
		}
		parts = append(parts, "")
	}

	parts = append(parts, tpl.Closing+"\n"+tpl.UserLabel+input+"\n"+tpl.AssistantLabel)
	return strings.Join(parts, "\n")
}
