// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single query command handler.
//
// Command: ask [question]
// Short:   Ask a single question
//
// Examples:
//   seekrun ask "用一句话解释什么是人工智能"
//   seekrun ask --code "write a Go function that reverses a string"
//   seekrun ask --json --no-stream "你好"
//
// Flags:
//   -m, --model NAME    Use specific model (overrides config)
//   --code              Use deepseek-coder
//   -p, --profile FILE  Prompt profile
//   --no-stream         Wait for the full reply
//   --json              Output response as JSON
//
// The question is assembled with the profile's system prompt and examples,
// like the first turn of a chat. Nothing is saved except the ledger entry.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/seekrun/internal/chat"
)

// HandleAsk handles the "ask" command.
func HandleAsk(ctx context.Context, env *Env, args Args) error {
	if args.Query == "" {
		return &UsageError{Command: "ask", Reason: "a question is required", Example: `seekrun ask "你好"`}
	}

	client, err := env.NewClient(args)
	if err != nil {
		return err
	}
	prof, err := env.LoadProfile(args)
	if err != nil {
		return NewCommandError("ask", "load profile", err)
	}

	opts := []chat.Option{chat.WithLogger(env.Logger)}
	if store := env.OpenLedger(); store != nil {
		defer store.Close()
		opts = append(opts, chat.WithRecorder(store))
	}
	session := chat.New(client, prof.NewState(), opts...)

	if args.JSON {
		return OutputJSON(env.Out, "ask", func() (any, error) {
			return askJSON(ctx, session, args.Query, !args.NoStream)
		})
	}

	if args.NoStream {
		reply, err := session.Send(ctx, args.Query)
		if err != nil {
			return err
		}
		fmt.Fprintln(env.Out, reply)
		return nil
	}

	reply, err := session.SendStream(ctx, args.Query)
	if err != nil {
		return err
	}
	defer reply.Close()

	for fragment, err := range reply.Fragments() {
		if err != nil {
			fmt.Fprintln(env.Out)
			return err
		}
		fmt.Fprint(env.Out, fragment)
	}
	fmt.Fprintln(env.Out)

	if n := reply.Skipped(); n > 0 && !args.Quiet {
		fmt.Fprintln(env.Err, DimStyle.Render(fmt.Sprintf("[%d malformed stream event(s) skipped]", n)))
	}
	return nil
}

// askJSON runs the question and collects the reply for --json output.
func askJSON(ctx context.Context, session *chat.Session, query string, stream bool) (*AskData, error) {
	start := time.Now()
	data := &AskData{Model: session.Model(), Streamed: stream}

	if !stream {
		text, err := session.Send(ctx, query)
		data.Reply = text
		data.DurationMs = time.Since(start).Milliseconds()
		return data, err
	}

	reply, err := session.SendStream(ctx, query)
	if err != nil {
		return data, err
	}
	defer reply.Close()

	text, err := reply.Collect()
	data.Reply = text
	data.Skipped = reply.Skipped()
	data.DurationMs = time.Since(start).Milliseconds()
	return data, err
}
