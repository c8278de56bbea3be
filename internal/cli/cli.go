// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing and dispatch for seekrun.
package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"slices"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdHelp Command = iota
	CmdInstall
	CmdTest
	CmdExamples
	CmdChat
	CmdAsk
	CmdStats
	CmdVersion
)

// String returns the command name as typed on the command line.
func (c Command) String() string {
	switch c {
	case CmdInstall:
		return "install"
	case CmdTest:
		return "test"
	case CmdExamples:
		return "examples"
	case CmdChat:
		return "chat"
	case CmdAsk:
		return "ask"
	case CmdStats:
		return "stats"
	case CmdVersion:
		return "version"
	default:
		return "help"
	}
}

// TestScope selects which part of the test battery runs.
type TestScope int

const (
	ScopeAll TestScope = iota
	ScopeDepsOnly
	ScopeAPIOnly
	ScopeExamples
)

// Args holds parsed CLI arguments.
type Args struct {
	// Shared flags
	Model   string
	Profile string
	Code    bool
	Chat    bool // pin the chat model; not a flag
	JSON    bool
	Verbose bool
	Quiet   bool

	// Command-specific
	Query     string    // ask
	NoStream  bool      // ask
	Force     bool      // install
	TestScope TestScope // test
	Limit     int       // stats

	// Raw args after the command name
	Raw []string
}

// flagSpec lists the flags each command accepts. Boolean flags never take
// a value, so "ask --code what is Go" keeps "what is Go" as the query.
type flagSpec struct {
	bools  []string
	values []string
}

var commandFlags = map[Command]flagSpec{
	CmdInstall:  {bools: []string{"force", "verbose", "quiet"}},
	CmdTest:     {bools: []string{"deps-only", "api-only", "examples", "json", "verbose", "quiet"}, values: []string{"model"}},
	CmdExamples: {bools: []string{"code", "verbose", "quiet"}, values: []string{"model"}},
	CmdChat:     {bools: []string{"code", "verbose", "quiet"}, values: []string{"model", "m", "profile", "p"}},
	CmdAsk:      {bools: []string{"code", "no-stream", "json", "verbose", "quiet"}, values: []string{"model", "m", "profile", "p"}},
	CmdStats:    {bools: []string{"json", "verbose"}, values: []string{"limit", "n"}},
	CmdVersion:  {},
	CmdHelp:     {},
}

const usageText = `seekrun - DeepSeek chat-completion client for the command line

Usage:
  seekrun install [--force]          Create ~/.seekrun with config.toml and profile.toml
  seekrun test [scope] [--json]      Run the test battery
  seekrun examples                   Run the canned examples
  seekrun chat                       Start interactive chat (alias: interactive)
  seekrun ask "question"             Ask a single question
  seekrun stats [--limit N]          Show the exchange ledger
  seekrun version                    Show version information
  seekrun help                       Show this help

Test Scopes:
  --deps-only                        Local checks only (config, profile, ledger, session dir)
  --api-only                         API round trips only (complete and stream)
  --examples                         Run the canned examples

Chat and Ask Flags:
  --code                             Use the code model (deepseek-coder)
  -m, --model NAME                   Use a specific model id
  -p, --profile FILE                 Prompt profile (.toml, .yaml or .json)
  --no-stream                        (ask) Wait for the full reply
  --json                             (ask, stats, test) JSON output

Chat Commands:
  /help /quit /config /clear /save <file> /load <file>
  /history /system [text] /examples [clear] /stats

Environment:
  DEEPSEEK_API_KEY                   API key (required for API calls)
  DEEPSEEK_BASE_URL                  API base URL
  DEEPSEEK_MODEL                     Default model id
  DEEPSEEK_PROFILE                   Prompt profile file
  DEEPSEEK_LOG_LEVEL                 debug, info, warn or error
  SEEKRUN_HOME                       Configuration directory (default ~/.seekrun)

Examples:
  seekrun install
  export DEEPSEEK_API_KEY=...
  seekrun test --api-only
  seekrun ask "用一句话解释什么是人工智能"
  seekrun ask --code "write a Go function that reverses a string"
  seekrun chat --profile ./tutor.yaml

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "seekrun version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
}

// Parse parses command-line arguments (without the program name).
// No arguments selects help.
func Parse(argv []string) (Command, Args, error) {
	if len(argv) == 0 {
		return CmdHelp, Args{}, nil
	}

	name := strings.ToLower(argv[0])
	var cmd Command
	switch name {
	case "install", "setup":
		cmd = CmdInstall
	case "test", "selftest":
		cmd = CmdTest
	case "examples", "example":
		cmd = CmdExamples
	case "chat", "interactive":
		cmd = CmdChat
	case "ask":
		cmd = CmdAsk
	case "stats":
		cmd = CmdStats
	case "version", "--version":
		cmd = CmdVersion
	case "help", "-h", "--help":
		return CmdHelp, Args{}, nil
	default:
		return CmdHelp, Args{}, unknownCommandError(name)
	}

	allowed := commandFlags[cmd]
	raw := argv[1:]
	p := NewArgParser(raw, allowed.bools...)
	if unknown := p.Unknown(slices.Concat(allowed.bools, allowed.values)...); len(unknown) > 0 {
		return cmd, Args{}, &UsageError{
			Command: cmd.String(),
			Reason:  fmt.Sprintf("unknown flag --%s", unknown[0]),
		}
	}

	args := Args{
		Model:   p.FlagOrDefault("model", p.Flag("m")),
		Profile: p.FlagOrDefault("profile", p.Flag("p")),
		Code:    p.BoolFlag("code"),
		JSON:    p.BoolFlag("json"),
		Verbose: p.BoolFlag("verbose"),
		Quiet:   p.BoolFlag("quiet"),
		Raw:     raw,
	}

	switch cmd {
	case CmdInstall:
		args.Force = p.BoolFlag("force")

	case CmdTest:
		scope, err := parseTestScope(p)
		if err != nil {
			return cmd, Args{}, err
		}
		args.TestScope = scope

	case CmdAsk:
		args.NoStream = p.BoolFlag("no-stream")
		args.Query = JoinPositionalArgs(p, 0)
		if strings.TrimSpace(args.Query) == "" {
			return cmd, Args{}, &UsageError{
				Command: "ask",
				Reason:  "a question is required",
				Example: `seekrun ask "什么是人工智能？"`,
			}
		}

	case CmdStats:
		limitFlag := p.FlagOrDefault("limit", p.Flag("n"))
		args.Limit = 10
		if limitFlag != "" {
			n, err := ParseIntWithValidation(limitFlag, "limit")
			if err != nil {
				return cmd, Args{}, &UsageError{Command: "stats", Reason: err.Error()}
			}
			args.Limit = n
		}
	}

	if cmd != CmdAsk && p.PositionalCount() > 0 {
		return cmd, Args{}, &UsageError{
			Command: cmd.String(),
			Reason:  fmt.Sprintf("unexpected argument %q", p.Positional(0)),
		}
	}

	return cmd, args, nil
}

// parseTestScope allows at most one scope flag.
func parseTestScope(p *ArgParser) (TestScope, error) {
	scopes := []struct {
		flag  string
		scope TestScope
	}{
		{"deps-only", ScopeDepsOnly},
		{"api-only", ScopeAPIOnly},
		{"examples", ScopeExamples},
	}

	scope := ScopeAll
	var chosen []string
	for _, s := range scopes {
		if p.BoolFlag(s.flag) {
			scope = s.scope
			chosen = append(chosen, "--"+s.flag)
		}
	}
	if len(chosen) > 1 {
		return ScopeAll, &UsageError{
			Command: "test",
			Reason:  strings.Join(chosen, " and ") + " cannot be combined",
		}
	}
	return scope, nil
}

func unknownCommandError(name string) error {
	err := &UsageError{Reason: fmt.Sprintf("unknown command %q", name)}
	if suggestion := SuggestCommand(name); suggestion != "" {
		err.Example = "seekrun " + suggestion
	}
	return err
}

// Run executes cmd.
func Run(ctx context.Context, env *Env, cmd Command, args Args) error {
	switch cmd {
	case CmdInstall:
		return HandleInstall(env, args)
	case CmdTest:
		return HandleTest(ctx, env, args)
	case CmdExamples:
		return HandleExamples(ctx, env, args)
	case CmdChat:
		return HandleChat(ctx, env, args)
	case CmdAsk:
		return HandleAsk(ctx, env, args)
	case CmdStats:
		return HandleStats(ctx, env, args)
	case CmdVersion:
		PrintVersion(env.Out)
		return nil
	default:
		PrintUsage(env.Out)
		return nil
	}
}
