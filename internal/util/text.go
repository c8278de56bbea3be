// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/unicode/norm"
)

// NormalizeInput returns s in Unicode NFC form with surrounding whitespace
// removed. Terminals on some platforms deliver decomposed CJK and accented
// input; NFC keeps history and prompts byte-stable.
func NormalizeInput(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// TruncateWidth cuts s to at most maxWidth terminal columns, counting wide
// (CJK) characters as two. A truncated result ends in "...".
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// Preview collapses s onto one line and truncates it to maxWidth columns.
func Preview(s string, maxWidth int) string {
	return TruncateWidth(strings.Join(strings.Fields(s), " "), maxWidth)
}

// StringWidth returns the display width of s in terminal columns.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}
