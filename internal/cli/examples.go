// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// examples.go - Canned example calls.
//
// Command: examples
//
// Runs a basic completion, a chat-style request, a code-model request and
// a prompt template filled with a variable.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Example is one canned call.
type Example struct {
	Title     string
	Code      bool // use the code model
	Chat      bool // use the chat model whatever the configured default
	Prompt    string
	MaxTokens int
}

// PromptTemplate is a prompt with {name} placeholders.
type PromptTemplate string

// Format replaces each {name} with vars[name]. Unknown placeholders are
// left as they are.
func (t PromptTemplate) Format(vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(string(t))
}

// explainTemplate is the template used by the last example.
const explainTemplate PromptTemplate = "请用一句话解释：{topic}"

// defaultExamples returns the canned examples in run order.
func defaultExamples() []Example {
	return []Example{
		{Title: "Basic completion", Prompt: "用一句话解释什么是人工智能", MaxTokens: 100},
		{Title: "Chat", Chat: true, Prompt: "你好，能简单介绍一下你自己吗？", MaxTokens: 80},
		{Title: "Code model", Code: true, Prompt: "Write a Go function that reverses a string. Reply with code only.", MaxTokens: 200},
		{Title: "Prompt template", Prompt: explainTemplate.Format(map[string]string{"topic": "量子计算"}), MaxTokens: 100},
	}
}

// HandleExamples handles the "examples" command.
func HandleExamples(ctx context.Context, env *Env, args Args) error {
	// Building the chat client first surfaces a missing key once.
	if _, err := env.NewClient(Args{Model: args.Model}); err != nil {
		return err
	}

	fmt.Fprintln(env.Out, TitleStyle.Render("seekrun examples"))
	fmt.Fprintln(env.Out, RenderSeparator())

	failed := 0
	for i, ex := range defaultExamples() {
		fmt.Fprintf(env.Out, "\n%s %s\n", SectionStyle.Render(fmt.Sprintf("%d. %s", i+1, ex.Title)), DimStyle.Render(ex.Prompt))

		reply, model, elapsed, err := runExample(ctx, env, args, ex)
		if err != nil {
			failed++
			DisplayError(env.Out, err)
			continue
		}
		fmt.Fprintf(env.Out, "%s %s\n", SuccessStyle.Render("[OK]"), strings.TrimSpace(reply))
		fmt.Fprintln(env.Out, DimStyle.Render(fmt.Sprintf("%s, %s", model, elapsed.Round(time.Millisecond))))
	}

	fmt.Fprintln(env.Out)
	if failed > 0 {
		return fmt.Errorf("%d example(s) failed", failed)
	}
	fmt.Fprintln(env.Out, SuccessStyle.Render("All examples completed"))
	return nil
}

func runExample(ctx context.Context, env *Env, args Args, ex Example) (string, string, time.Duration, error) {
	clientArgs := Args{Code: ex.Code, Chat: ex.Chat}
	if !ex.Code && !ex.Chat {
		clientArgs.Model = args.Model
	}
	client, err := env.NewClient(clientArgs)
	if err != nil {
		return "", "", 0, err
	}

	req := client.NewRequest(ex.Prompt, false)
	req.MaxTokens = ex.MaxTokens
	start := time.Now()
	reply, err := client.Complete(ctx, req)
	return reply, client.Model(), time.Since(start), err
}
