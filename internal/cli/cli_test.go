// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		bools    []string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name: "positional only",
			args: []string{"hello", "world"},
			validate: func(t *testing.T, p *ArgParser) {
				if p.PositionalCount() != 2 {
					t.Errorf("PositionalCount() = %d, want 2", p.PositionalCount())
				}
				if got := JoinPositionalArgs(p, 0); got != "hello world" {
					t.Errorf("JoinPositionalArgs = %q, want %q", got, "hello world")
				}
			},
		},
		{
			name: "flag with value",
			args: []string{"--model", "deepseek-coder", "question"},
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("model") != "deepseek-coder" {
					t.Errorf("Flag(model) = %q, want %q", p.Flag("model"), "deepseek-coder")
				}
				if p.Positional(0) != "question" {
					t.Errorf("Positional(0) = %q, want %q", p.Positional(0), "question")
				}
			},
		},
		{
			name: "flag with equals",
			args: []string{"--limit=25"},
			validate: func(t *testing.T, p *ArgParser) {
				n, err := p.FlagInt("limit")
				if err != nil || n != 25 {
					t.Errorf("FlagInt(limit) = %d, %v; want 25", n, err)
				}
			},
		},
		{
			name:  "declared boolean does not consume the next argument",
			args:  []string{"--code", "explain", "this"},
			bools: []string{"code"},
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("code") {
					t.Error("BoolFlag(code) should be true")
				}
				if got := JoinPositionalArgs(p, 0); got != "explain this" {
					t.Errorf("positional = %q, want %q", got, "explain this")
				}
			},
		},
		{
			name:  "boolean with explicit value",
			args:  []string{"--json=false"},
			bools: []string{"json"},
			validate: func(t *testing.T, p *ArgParser) {
				if p.BoolFlag("json") {
					t.Error("BoolFlag(json) should be false")
				}
				if !p.HasFlag("json") {
					t.Error("HasFlag(json) should be true")
				}
			},
		},
		{
			name: "double dash ends flags",
			args: []string{"--", "--not-a-flag", "-x"},
			validate: func(t *testing.T, p *ArgParser) {
				if p.PositionalCount() != 2 || p.Positional(0) != "--not-a-flag" {
					t.Errorf("positional = %v", p.PositionalFrom(0))
				}
				if p.HasFlag("not-a-flag") {
					t.Error("flag after -- should not be parsed")
				}
			},
		},
		{
			name: "short flag",
			args: []string{"-m", "deepseek-chat"},
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("m") != "deepseek-chat" {
					t.Errorf("Flag(m) = %q", p.Flag("m"))
				}
			},
		},
		{
			name: "trailing flag is boolean",
			args: []string{"question", "--verbose"},
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("verbose") {
					t.Error("BoolFlag(verbose) should be true")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args, tt.bools...)
			if tt.validate != nil {
				tt.validate(t, p)
			}
		})
	}
}

func TestArgParser_Unknown(t *testing.T) {
	p := NewArgParser([]string{"--json", "--bogus", "--model", "x"}, "json")
	unknown := p.Unknown("json", "model")
	if len(unknown) != 1 || unknown[0] != "bogus" {
		t.Errorf("Unknown() = %v, want [bogus]", unknown)
	}
}

func TestParseIntWithValidation(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"10", 10, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseIntWithValidation(tt.input, "limit")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"true", "YES", "y", "1", "on"} {
		if b, err := ParseBoolString(s); err != nil || !b {
			t.Errorf("ParseBoolString(%q) = %v, %v; want true", s, b, err)
		}
	}
	for _, s := range []string{"false", "No", "n", "0", "off"} {
		if b, err := ParseBoolString(s); err != nil || b {
			t.Errorf("ParseBoolString(%q) = %v, %v; want false", s, b, err)
		}
	}
	if _, err := ParseBoolString("maybe"); err == nil {
		t.Error("ParseBoolString(maybe) should fail")
	}
}

// =============================================================================
// COMMAND PARSING TESTS (cli.go)
// =============================================================================

func TestParse_Commands(t *testing.T) {
	tests := []struct {
		argv []string
		want Command
	}{
		{nil, CmdHelp},
		{[]string{"help"}, CmdHelp},
		{[]string{"--help"}, CmdHelp},
		{[]string{"install"}, CmdInstall},
		{[]string{"setup"}, CmdInstall},
		{[]string{"test"}, CmdTest},
		{[]string{"selftest"}, CmdTest},
		{[]string{"examples"}, CmdExamples},
		{[]string{"chat"}, CmdChat},
		{[]string{"interactive"}, CmdChat},
		{[]string{"ask", "你好"}, CmdAsk},
		{[]string{"stats"}, CmdStats},
		{[]string{"version"}, CmdVersion},
		{[]string{"--version"}, CmdVersion},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.argv), func(t *testing.T) {
			cmd, _, err := Parse(tt.argv)
			if err != nil {
				t.Fatalf("Parse(%v) error: %v", tt.argv, err)
			}
			if cmd != tt.want {
				t.Errorf("Parse(%v) = %v, want %v", tt.argv, cmd, tt.want)
			}
		})
	}
}

func TestParse_Ask(t *testing.T) {
	cmd, args, err := Parse([]string{"ask", "--code", "--no-stream", "什么是", "Go？"})
	if err != nil {
		t.Fatal(err)
	}
	if cmd != CmdAsk {
		t.Fatalf("cmd = %v", cmd)
	}
	if args.Query != "什么是 Go？" {
		t.Errorf("Query = %q", args.Query)
	}
	if !args.Code || !args.NoStream {
		t.Errorf("Code = %v, NoStream = %v; want both true", args.Code, args.NoStream)
	}
}

func TestParse_AskFlags(t *testing.T) {
	_, args, err := Parse([]string{"ask", "-m", "deepseek-reasoner", "-p", "tutor.yaml", "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if args.Model != "deepseek-reasoner" || args.Profile != "tutor.yaml" {
		t.Errorf("Model = %q, Profile = %q", args.Model, args.Profile)
	}
}

func TestParse_TestScopes(t *testing.T) {
	tests := []struct {
		flag string
		want TestScope
	}{
		{"", ScopeAll},
		{"--deps-only", ScopeDepsOnly},
		{"--api-only", ScopeAPIOnly},
		{"--examples", ScopeExamples},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			argv := []string{"test"}
			if tt.flag != "" {
				argv = append(argv, tt.flag)
			}
			_, args, err := Parse(argv)
			if err != nil {
				t.Fatal(err)
			}
			if args.TestScope != tt.want {
				t.Errorf("TestScope = %v, want %v", args.TestScope, tt.want)
			}
		})
	}
}

func TestParse_StatsLimit(t *testing.T) {
	_, args, err := Parse([]string{"stats"})
	if err != nil || args.Limit != 10 {
		t.Errorf("default Limit = %d, %v; want 10", args.Limit, err)
	}
	_, args, err = Parse([]string{"stats", "-n", "3"})
	if err != nil || args.Limit != 3 {
		t.Errorf("Limit = %d, %v; want 3", args.Limit, err)
	}
}

func TestParse_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want string
	}{
		{"ask without question", []string{"ask"}, "question is required"},
		{"combined scopes", []string{"test", "--deps-only", "--api-only"}, "cannot be combined"},
		{"unknown flag", []string{"chat", "--bogus"}, "unknown flag --bogus"},
		{"stray argument", []string{"install", "now"}, "unexpected argument"},
		{"bad limit", []string{"stats", "--limit", "zero"}, "limit must be a valid integer"},
		{"unknown command", []string{"chta"}, "Did you mean: seekrun chat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(tt.argv)
			if err == nil {
				t.Fatal("expected error")
			}
			var usage *UsageError
			if !errors.As(err, &usage) {
				t.Fatalf("error %T is not a UsageError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.want)
			}
			if GetExitCode(err) != ExitUsageError {
				t.Errorf("exit code = %d, want %d", GetExitCode(err), ExitUsageError)
			}
		})
	}
}

// =============================================================================
// SUGGESTION TESTS (suggest.go)
// =============================================================================

func TestSuggestCommand(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"chta", "chat"},
		{"instal", "install"},
		{"exmaples", "examples"},
		{"chat", ""},
		{"x", ""},
		{"completelydifferent", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SuggestCommand(tt.input); got != tt.want {
				t.Errorf("SuggestCommand(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSuggestSlashCommand(t *testing.T) {
	if got := SuggestSlashCommand("/hlep"); got != "/help" {
		t.Errorf("SuggestSlashCommand(/hlep) = %q, want /help", got)
	}
	if got := SuggestSlashCommand("/sve"); got != "/save" {
		t.Errorf("SuggestSlashCommand(/sve) = %q, want /save", got)
	}
}

func TestLevenshteinDistance_Runes(t *testing.T) {
	if d := levenshteinDistance("你好", "你们好"); d != 1 {
		t.Errorf("distance = %d, want 1", d)
	}
}

// =============================================================================
// ERROR TESTS (errors.go)
// =============================================================================

func TestGetExitCode(t *testing.T) {
	if GetExitCode(nil) != ExitSuccess {
		t.Error("nil error should exit 0")
	}
	if GetExitCode(errors.New("boom")) != ExitGeneralError {
		t.Error("plain error should exit 1")
	}
	wrapped := fmt.Errorf("outer: %w", &UsageError{Reason: "bad"})
	if GetExitCode(wrapped) != ExitUsageError {
		t.Error("wrapped usage error should exit 2")
	}
}

func TestCommandError_Unwrap(t *testing.T) {
	inner := errors.New("disk full")
	err := NewCommandError("/save", "save session", inner)
	if !errors.Is(err, inner) {
		t.Error("CommandError should unwrap to its cause")
	}
	if err.Error() != "/save save session failed: disk full" {
		t.Errorf("Error() = %q", err.Error())
	}
}

// =============================================================================
// PROMPT TEMPLATE TESTS (examples.go)
// =============================================================================

func TestPromptTemplate_Format(t *testing.T) {
	got := explainTemplate.Format(map[string]string{"topic": "量子计算"})
	if got != "请用一句话解释：量子计算" {
		t.Errorf("Format = %q", got)
	}

	tpl := PromptTemplate("{a} and {b}")
	if got := tpl.Format(map[string]string{"a": "x"}); got != "x and {b}" {
		t.Errorf("unknown placeholder should survive, got %q", got)
	}
}

func TestParseYes(t *testing.T) {
	for _, s := range []string{"y", "YES", " yes\n", "是"} {
		if !parseYes(s) {
			t.Errorf("parseYes(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", "n", "no", "maybe"} {
		if parseYes(s) {
			t.Errorf("parseYes(%q) = true, want false", s)
		}
	}
}
