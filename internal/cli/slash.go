// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// slash.go - Chat slash commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/seekrun/internal/conversation"
	"github.com/jeranaias/seekrun/internal/util"
)

// previewWidth bounds one-line previews of prompts and messages.
const previewWidth = 72

// handleSlashCommand runs a /command and reports whether the chat loop
// should continue.
func (r *Repl) handleSlashCommand(line string) (bool, error) {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	name = strings.ToLower(name)

	switch name {
	case "/quit", "/exit", "/q":
		return false, nil
	case "/help", "/h", "/?":
		r.printHelp()
	case "/config":
		r.printConfig()
	case "/clear":
		r.session.State().ClearHistory()
		fmt.Fprintln(r.env.Out, SuccessStyle.Render("[OK]")+" Conversation history cleared")
	case "/save":
		return true, r.saveSession(rest)
	case "/load":
		return true, r.loadSession(rest)
	case "/history":
		r.printHistory()
	case "/system":
		r.systemPrompt(rest)
	case "/examples":
		return true, r.examples(rest)
	case "/stats":
		return true, r.printStats()
	default:
		err := &UsageError{Command: name, Reason: "unknown chat command"}
		if s := SuggestSlashCommand(name); s != "" {
			err.Example = s
		}
		return true, err
	}
	return true, nil
}

// =============================================================================
// SESSION FILES
// =============================================================================

// sessionPath resolves a /save or /load argument. A bare name lives in the
// session directory and gains a .json extension when it has none.
func (r *Repl) sessionPath(name string) (string, error) {
	if name == "" {
		return "", errors.New("a file name is required")
	}
	if !strings.EqualFold(filepath.Ext(name), ".json") {
		name += ".json"
	}
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		return name, nil
	}
	dir := r.env.Config.Chat.SessionDir
	if dir == "" {
		return name, nil
	}
	return filepath.Join(dir, name), nil
}

func (r *Repl) saveSession(name string) error {
	path, err := r.sessionPath(name)
	if err != nil {
		return &UsageError{Command: "/save", Reason: err.Error(), Example: "/save notes"}
	}
	if err := r.session.State().Save(path); err != nil {
		return NewCommandError("/save", "save session", err)
	}
	fmt.Fprintf(r.env.Out, "%s Session saved to %s\n", SuccessStyle.Render("[OK]"), path)
	return nil
}

func (r *Repl) loadSession(name string) error {
	path, err := r.sessionPath(name)
	if err != nil {
		return &UsageError{Command: "/load", Reason: err.Error(), Example: "/load notes"}
	}
	if err := r.session.State().Load(path); err != nil {
		return NewCommandError("/load", "load session", err)
	}
	state := r.session.State()
	fmt.Fprintf(r.env.Out, "%s Session loaded from %s (%d messages, %d examples)\n",
		SuccessStyle.Render("[OK]"), path, state.Len(), len(state.Examples()))
	return nil
}

// =============================================================================
// PROMPT EDITING
// =============================================================================

func (r *Repl) systemPrompt(text string) {
	state := r.session.State()
	if text == "" {
		fmt.Fprintln(r.env.Out, SectionStyle.Render("System prompt"))
		fmt.Fprintln(r.env.Out, state.SystemPrompt())
		return
	}
	state.SetSystemPrompt(text)
	fmt.Fprintln(r.env.Out, SuccessStyle.Render("[OK]")+" System prompt updated")
}

// examples handles "/examples", "/examples clear" and
// "/examples add <input> => <response>".
func (r *Repl) examples(args string) error {
	state := r.session.State()
	sub, rest, _ := strings.Cut(args, " ")

	switch strings.ToLower(sub) {
	case "":
		items := state.Examples()
		if len(items) == 0 {
			fmt.Fprintln(r.env.Out, DimStyle.Render("No few-shot examples"))
			return nil
		}
		for i, ex := range items {
			fmt.Fprintf(r.env.Out, "%d. %s\n   %s\n", i+1,
				util.Preview(ex.UserInput, previewWidth),
				DimStyle.Render(util.Preview(ex.AssistantResponse, previewWidth)))
		}
	case "clear":
		state.ClearExamples()
		fmt.Fprintln(r.env.Out, SuccessStyle.Render("[OK]")+" Few-shot examples cleared")
	case "add":
		input, response, found := strings.Cut(rest, "=>")
		input = strings.TrimSpace(input)
		response = strings.TrimSpace(response)
		if !found || input == "" || response == "" {
			return &UsageError{
				Command: "/examples add",
				Reason:  "expected <input> => <response>",
				Example: "/examples add 什么是Go？ => Go是一种编程语言。",
			}
		}
		evicted, ok := state.AddExample(conversation.FewShotExample{
			UserInput:         util.NormalizeInput(input),
			AssistantResponse: util.NormalizeInput(response),
		})
		fmt.Fprintf(r.env.Out, "%s Example added (%d/%d)\n",
			SuccessStyle.Render("[OK]"), len(state.Examples()), conversation.MaxFewShotExamples)
		if ok {
			fmt.Fprintf(r.env.Out, "%s Oldest example dropped: %s\n",
				WarningStyle.Render("[Note]"), util.Preview(evicted.UserInput, previewWidth))
		}
	default:
		return &UsageError{
			Command: "/examples",
			Reason:  fmt.Sprintf("unknown subcommand %q", sub),
			Example: "/examples add <input> => <response>",
		}
	}
	return nil
}

// =============================================================================
// DISPLAY
// =============================================================================

func (r *Repl) printHelp() {
	w := r.env.Out
	fmt.Fprintln(w, SectionStyle.Render("Chat commands"))
	rows := [][2]string{
		{"/help", "Show this help"},
		{"/config", "Show the current configuration"},
		{"/clear", "Clear conversation history"},
		{"/save <file>", "Save the conversation"},
		{"/load <file>", "Load a saved conversation"},
		{"/history", "Show conversation history"},
		{"/system [text]", "Show or replace the system prompt"},
		{"/examples", "List, add or clear few-shot examples"},
		{"/stats", "Show call statistics"},
		{"/quit", "Exit chat"},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "  %s %s\n", CommandStyle.Render(fmt.Sprintf("%-16s", row[0])), row[1])
	}
}

func (r *Repl) printConfig() {
	w := r.env.Out
	cfg := r.env.Config
	state := r.session.State()

	fmt.Fprintln(w, SectionStyle.Render("Configuration"))
	fmt.Fprintf(w, "%s %s\n", RenderLabel("Model:"), ValueStyle.Render(r.session.Model()))
	fmt.Fprintf(w, "%s %s\n", RenderLabel("Base URL:"), ValueStyle.Render(cfg.API.BaseURL))
	fmt.Fprintf(w, "%s %s\n", RenderLabel("API key:"), ValueStyle.Render(cfg.MaskedAPIKey()))
	fmt.Fprintf(w, "%s %.2f\n", RenderLabel("Temperature:"), cfg.Generation.Temperature)
	fmt.Fprintf(w, "%s %d\n", RenderLabel("Max tokens:"), cfg.Generation.MaxTokens)
	fmt.Fprintf(w, "%s %.2f\n", RenderLabel("Top P:"), cfg.Generation.TopP)
	fmt.Fprintf(w, "%s %s\n", RenderLabel("Profile:"), ValueStyle.Render(r.source))
	fmt.Fprintf(w, "%s %s\n", RenderLabel("System prompt:"), util.Preview(state.SystemPrompt(), previewWidth))
	fmt.Fprintf(w, "%s %d/%d\n", RenderLabel("Examples:"), len(state.Examples()), conversation.MaxFewShotExamples)
	fmt.Fprintf(w, "%s %d/%d\n", RenderLabel("History:"), state.Len(), conversation.MaxHistory)
	fmt.Fprintf(w, "%s %s\n", RenderLabel("Session:"), DimStyle.Render(r.session.ID()))
	if r.ledger != nil {
		fmt.Fprintf(w, "%s %s\n", RenderLabel("Ledger:"), DimStyle.Render(r.ledger.Path()))
	} else {
		fmt.Fprintf(w, "%s %s\n", RenderLabel("Ledger:"), DimStyle.Render("disabled"))
	}
}

func (r *Repl) printHistory() {
	history := r.session.State().History()
	if len(history) == 0 {
		fmt.Fprintln(r.env.Out, DimStyle.Render("No conversation history"))
		return
	}
	for _, m := range history {
		label := m.Role.DisplayName() + ":"
		if m.Role == conversation.RoleUser {
			label = PromptStyle.Render(label)
		} else {
			label = AssistantStyle.Render(label)
		}
		fmt.Fprintf(r.env.Out, "%s %s %s\n",
			DimStyle.Render(m.Timestamp.Format("15:04:05")), label, util.Preview(m.Content, previewWidth))
	}
}

func (r *Repl) printStats() error {
	w := r.env.Out
	stats := r.session.Stats()

	fmt.Fprintln(w, SectionStyle.Render("Session statistics"))
	fmt.Fprintf(w, "%s %d\n", RenderLabel("Calls:"), stats.Calls)
	fmt.Fprintf(w, "%s %d\n", RenderLabel("Failures:"), stats.Failures)
	fmt.Fprintf(w, "%s %d\n", RenderLabel("Reply chars:"), stats.ReplyChars)
	fmt.Fprintf(w, "%s %s\n", RenderLabel("Running for:"), time.Since(stats.Started).Round(time.Second))

	if r.ledger == nil {
		return nil
	}
	sum, err := r.ledger.Summary(context.Background(), r.session.ID())
	if err != nil {
		return NewCommandError("/stats", "read ledger", err)
	}
	fmt.Fprintf(w, "%s %d recorded, mean %s\n", RenderLabel("Ledger:"), sum.Calls, sum.MeanDuration.Round(time.Millisecond))
	return nil
}
