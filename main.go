// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// seekrun - DeepSeek chat-completion client for the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/seekrun/internal/cli"
	"github.com/jeranaias/seekrun/internal/config"
	"github.com/jeranaias/seekrun/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	cmd, args, err := cli.Parse(argv)
	if err != nil {
		cli.DisplayError(os.Stderr, err)
		return cli.GetExitCode(err)
	}

	switch cmd {
	case cli.CmdHelp:
		cli.PrintUsage(os.Stdout)
		return cli.ExitSuccess
	case cli.CmdVersion:
		cli.PrintVersion(os.Stdout)
		return cli.ExitSuccess
	}

	cfg, err := config.Load()
	if err != nil {
		cli.DisplayError(os.Stderr, fmt.Errorf("failed to load config: %w", err))
		return cli.ExitGeneralError
	}

	level := cfg.Log.Level
	if args.Verbose {
		level = "debug"
	}
	logger := logging.Setup(os.Stderr, level)

	// SIGTERM ends the process; Ctrl+C is handled per turn by chat.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()
	if cmd != cli.CmdChat {
		var stopInt context.CancelFunc
		ctx, stopInt = signal.NotifyContext(ctx, os.Interrupt)
		defer stopInt()
	}

	env := cli.NewEnv(cfg, logger)
	if err := cli.Run(ctx, env, cmd, args); err != nil {
		cli.DisplayError(env.Err, err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
