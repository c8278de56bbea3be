// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// env.go - Shared state handed to every command handler.
package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/jeranaias/seekrun/internal/config"
	"github.com/jeranaias/seekrun/internal/ledger"
	"github.com/jeranaias/seekrun/internal/llm"
	"github.com/jeranaias/seekrun/internal/profile"
)

// Env carries the loaded configuration, the logger and the streams a
// command reads and writes.
type Env struct {
	Config *config.Config
	Logger *slog.Logger
	In     io.Reader
	Out    io.Writer
	Err    io.Writer

	// Interactive enables line editing and Markdown rendering. It is true
	// when stdin and stdout are terminals.
	Interactive bool
}

// NewEnv returns an Env bound to the process streams.
func NewEnv(cfg *config.Config, logger *slog.Logger) *Env {
	if logger == nil {
		logger = slog.Default()
	}
	return &Env{
		Config:      cfg,
		Logger:      logger,
		In:          os.Stdin,
		Out:         os.Stdout,
		Err:         os.Stderr,
		Interactive: IsTTY() && IsStdoutTTY(),
	}
}

// NewClient builds an API client. --model wins over everything; Chat pins
// the chat model and --code selects the code model.
func (e *Env) NewClient(args Args) (*llm.Client, error) {
	if err := e.Config.RequireAPIKey(); err != nil {
		return nil, err
	}
	cc := e.Config.ClientConfig(e.Logger)
	switch {
	case args.Model != "":
		cc.Model = args.Model
		return llm.NewClient(cc)
	case args.Chat:
		return llm.NewChatClient(cc)
	case args.Code:
		return llm.NewCodeClient(cc)
	default:
		return llm.NewClient(cc)
	}
}

// OpenLedger opens the exchange ledger, or returns nil when it is disabled.
// A ledger that cannot be opened is logged and skipped.
func (e *Env) OpenLedger() *ledger.Store {
	if !e.Config.Ledger.Enabled || e.Config.Ledger.Path == "" {
		return nil
	}
	store, err := ledger.Open(e.Config.Ledger.Path)
	if err != nil {
		e.Logger.Warn("exchange ledger unavailable", "path", e.Config.Ledger.Path, "error", err)
		return nil
	}
	return store
}

// ProfilePath returns the profile file to use: --profile, then the config.
func (e *Env) ProfilePath(args Args) string {
	if args.Profile != "" {
		return args.Profile
	}
	return e.Config.Chat.ProfilePath
}

// LoadProfile resolves the active prompt profile.
func (e *Env) LoadProfile(args Args) (*profile.Profile, error) {
	return profile.Resolve(e.ProfilePath(args))
}
