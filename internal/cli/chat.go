// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command handler.
//
// Command: chat
// Short:   Start an interactive chat session
// Aliases: interactive
//
// Examples:
//   seekrun chat                        Start interactive chat
//   seekrun chat --code                 Use the code model
//   seekrun chat --profile tutor.yaml   Use a custom prompt profile
//
// Flags:
//   -m, --model NAME      Use specific model (overrides config)
//   --code                Use deepseek-coder
//   -p, --profile FILE    Prompt profile
//
// Replies stream to the terminal as they arrive. With chat.markdown set and
// a terminal attached, the reply is collected and rendered as Markdown.
// Ctrl+C during a reply abandons it; Ctrl+C or Ctrl+D at the prompt exits.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/seekrun/internal/chat"
	"github.com/jeranaias/seekrun/internal/config"
	"github.com/jeranaias/seekrun/internal/ledger"
	"github.com/jeranaias/seekrun/internal/profile"
)

// =============================================================================
// INPUT
// =============================================================================

// lineReader reads one line of user input.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads its history file.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatCLI{
		line:        line,
		historyFile: historyFile,
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if c.historyFile == "" {
		return
	}
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line with history navigation.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if c.historyFile == "" {
		return
	}
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// plainReader reads lines from a non-terminal input such as a pipe.
type plainReader struct {
	scanner *bufio.Scanner
}

func newPlainReader(r io.Reader) *plainReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &plainReader{scanner: scanner}
}

func (p *plainReader) ReadInput(string) (string, error) {
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return p.scanner.Text(), nil
}

func (p *plainReader) Close() {}

// =============================================================================
// REPL
// =============================================================================

// Repl is the interactive chat loop.
type Repl struct {
	env      *Env
	session  *chat.Session
	ledger   *ledger.Store
	watcher  *profile.Watcher
	input    lineReader
	markdown bool
	source   string // profile source shown by /config
}

// HandleChat handles the "chat" command.
func HandleChat(ctx context.Context, env *Env, args Args) error {
	client, err := env.NewClient(args)
	if err != nil {
		return err
	}
	prof, err := env.LoadProfile(args)
	if err != nil {
		return NewCommandError("chat", "load profile", err)
	}

	store := env.OpenLedger()
	if store != nil {
		defer store.Close()
	}

	opts := []chat.Option{chat.WithLogger(env.Logger)}
	if store != nil {
		opts = append(opts, chat.WithRecorder(store))
	}
	session := chat.New(client, prof.NewState(), opts...)

	var input lineReader
	if env.Interactive {
		input = NewChatCLI(env.Config.Chat.HistoryFile)
	} else {
		input = newPlainReader(env.In)
	}
	defer input.Close()

	repl := &Repl{
		env:      env,
		session:  session,
		ledger:   store,
		input:    input,
		markdown: env.Config.Chat.Markdown && env.Interactive,
		source:   prof.Source,
	}

	if path := env.ProfilePath(args); path != "" && env.Config.Chat.WatchProfile {
		w, err := profile.Watch(path, env.Logger)
		if err != nil {
			env.Logger.Warn("profile hot reload disabled", "error", err)
		} else {
			repl.watcher = w
			defer w.Close()
		}
	}

	if !args.Quiet {
		repl.printWelcome()
	}
	return repl.Run(ctx)
}

// Run reads lines until /quit, end of input or ctx is done.
func (r *Repl) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := r.input.ReadInput(PromptStyle.Render("用户> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.env.Out)
				r.printGoodbye()
				return nil
			}
			return err
		}

		if !r.Handle(ctx, line) {
			r.printGoodbye()
			return nil
		}
	}
}

// Handle processes one input line and reports whether the loop should
// continue. Errors are displayed, never returned.
func (r *Repl) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}

	r.applyProfileUpdates()

	if strings.HasPrefix(line, "/") {
		cont, err := r.handleSlashCommand(line)
		if err != nil {
			DisplayError(r.env.Err, err)
		}
		return cont
	}

	if err := r.turn(ctx, line); err != nil {
		DisplayError(r.env.Err, err)
	}
	return true
}

// applyProfileUpdates installs the newest edited profile, if any. It runs
// between turns only.
func (r *Repl) applyProfileUpdates() {
	if r.watcher == nil {
		return
	}
	select {
	case p := <-r.watcher.Updates():
		p.Apply(r.session.State())
		r.source = p.Source
		fmt.Fprintf(r.env.Err, "%s %s\n", CommandStyle.Render("[Profile reloaded]"), p.Source)
	default:
	}
}

// =============================================================================
// TURNS
// =============================================================================

// turn sends one user message and prints the reply.
func (r *Repl) turn(ctx context.Context, input string) error {
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	reply, err := r.session.SendStream(turnCtx, input)
	if err != nil {
		return err
	}
	defer reply.Close()

	out := r.env.Out
	fmt.Fprintf(out, "\n%s ", AssistantStyle.Render("DeepSeek:"))

	if r.markdown {
		text, err := reply.Collect()
		if err != nil {
			return r.turnError(turnCtx, ctx, err)
		}
		fmt.Fprint(out, renderMarkdown(text))
		return nil
	}

	for fragment, err := range reply.Fragments() {
		if err != nil {
			fmt.Fprintln(out)
			return r.turnError(turnCtx, ctx, err)
		}
		fmt.Fprint(out, fragment)
	}
	fmt.Fprintln(out)
	return nil
}

// turnError reports a reply interrupted by Ctrl+C as a cancellation
// rather than a failure.
func (r *Repl) turnError(turnCtx, parent context.Context, err error) error {
	if turnCtx.Err() != nil && parent.Err() == nil {
		fmt.Fprintln(r.env.Err, WarningStyle.Render("[Cancelled]"))
		return nil
	}
	return err
}

// =============================================================================
// DISPLAY
// =============================================================================

func (r *Repl) printWelcome() {
	w := r.env.Out
	fmt.Fprintln(w, TitleStyle.Render("seekrun interactive chat"))
	fmt.Fprintln(w, RenderSeparatorAdaptive())
	fmt.Fprintf(w, "%s %s\n", RenderLabel("Model:"), CommandStyle.Render(r.session.Model()))
	fmt.Fprintf(w, "%s %s\n", RenderLabel("Profile:"), ValueStyle.Render(r.source))
	fmt.Fprintf(w, "%s %d\n", RenderLabel("Few-shot examples:"), len(r.session.State().Examples()))
	fmt.Fprintln(w)
	fmt.Fprintln(w, DimStyle.Render("Type a message and press Enter. /help lists commands, /quit exits."))
	fmt.Fprintln(w)
}

func (r *Repl) printGoodbye() {
	stats := r.session.Stats()
	if stats.Calls > 0 {
		fmt.Fprintf(r.env.Out, "%s %d call(s), %d failed\n",
			DimStyle.Render("[Session]"), stats.Calls, stats.Failures)
	}
	fmt.Fprintln(r.env.Out, DimStyle.Render("再见！"))
}
