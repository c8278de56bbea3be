// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and execution for seekrun.
//
// # Key Types
//
//   - Command: Enumeration of all available CLI commands
//   - Args: Parsed command-line arguments
//   - Env: Configuration, logger and output streams shared by handlers
//   - Repl: The interactive chat loop and its slash commands
//
// # Usage
//
//	cmd, args, err := cli.Parse(os.Args[1:])
//	if err != nil {
//	    cli.DisplayError(os.Stderr, err)
//	    os.Exit(cli.GetExitCode(err))
//	}
//	env := cli.NewEnv(cfg, logger)
//	err = cli.Run(ctx, env, cmd, args)
//
// # Commands Overview
//
//   - install: Create the config directory, config.toml and profile.toml
//   - test: Local checks and API round trips (PASS/FAIL/SKIP report)
//   - examples: Canned example calls
//   - chat: Interactive chat with slash commands
//   - ask: One-shot question
//   - stats: Exchange ledger summary
package cli
