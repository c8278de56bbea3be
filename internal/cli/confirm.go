// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation prompts for destructive actions.
//
// A flag such as --force is the confirmation when there is no terminal.
// With a terminal attached the user is asked as well.
package cli

import (
	"bufio"
	"fmt"
	"strings"
)

// Confirm asks a yes/no question on the Env's streams. It returns false
// without prompting when the session is not interactive.
func (e *Env) Confirm(question string) bool {
	if !e.Interactive {
		return false
	}

	fmt.Fprintf(e.Err, "%s [y/N]: ", question)

	input, err := bufio.NewReader(e.In).ReadString('\n')
	if err != nil {
		return false
	}
	return parseYes(input)
}

// parseYes reports whether a typed answer means yes.
func parseYes(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes", "是":
		return true
	default:
		return false
	}
}

// ShowCancellationMessage reports a declined confirmation.
func (e *Env) ShowCancellationMessage() {
	fmt.Fprintln(e.Err, WarningStyle.Render("[Cancelled]")+" No changes were made")
}
