// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types, display and exit codes for CLI commands.
//
// Handlers always return errors; main decides how to display them and which
// exit code to use. The chat loop displays errors and keeps going.
package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/seekrun/internal/config"
	"github.com/jeranaias/seekrun/internal/llm"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a failed command
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command failure with context.
type CommandError struct {
	Command string // Command that failed (e.g., "install", "chat")
	Action  string // Action being performed (e.g., "save", "load")
	Err     error
}

func (e *CommandError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s %s failed: %v", e.Command, e.Action, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError represents invalid command-line usage.
type UsageError struct {
	Command string
	Reason  string
	Example string // Suggested invocation (optional)
}

func (e *UsageError) Error() string {
	msg := e.Reason
	if e.Command != "" {
		msg = e.Command + ": " + msg
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nDid you mean: %s", e.Example)
	}
	return msg
}

// NewCommandError wraps err with the command and action that failed.
func NewCommandError(command, action string, err error) error {
	return &CommandError{Command: command, Action: action, Err: err}
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError prints err with a styled prefix and, where one applies, a
// hint for fixing it.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %v\n", ErrorStyle.Render("[Error]"), err)
	if hint := errorHint(err); hint != "" {
		fmt.Fprintf(w, "%s %s\n", DimStyle.Render("[Hint]"), hint)
	}
}

// errorHint suggests a fix for well-known failures.
func errorHint(err error) string {
	switch {
	case errors.Is(err, llm.ErrNotConfigured), errors.Is(err, config.ErrMissingAPIKey):
		return "export " + config.EnvAPIKey + "=<your key> or set api.api_key in config.toml"
	case llm.StatusCode(err) == 401:
		return "the API key was rejected; check " + config.EnvAPIKey
	case llm.StatusCode(err) == 402:
		return "the account has insufficient balance"
	case llm.StatusCode(err) == 429:
		return "rate limited; wait and retry or lower api.requests_per_minute"
	case llm.IsEmptyResponse(err):
		return "the API returned no content; try again"
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		if strings.HasPrefix(usage.Command, "/") {
			return "type /help for chat commands"
		}
		return "run 'seekrun help' for usage"
	}
	return ""
}

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		return ExitUsageError
	}
	return ExitGeneralError
}
