// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// suggest.go - Typo correction for commands and chat slash commands.
package cli

import (
	"strings"
)

// validCommands lists the top-level commands and their aliases.
var validCommands = []string{
	"install",
	"test",
	"examples",
	"chat",
	"ask",
	"stats",
	"version",
	"help",
	// Aliases
	"setup",
	"selftest",
	"interactive",
}

// validSlashCommands lists the chat slash commands.
var validSlashCommands = []string{
	"/help",
	"/quit",
	"/exit",
	"/config",
	"/clear",
	"/save",
	"/load",
	"/history",
	"/system",
	"/examples",
	"/stats",
}

// SuggestCommand returns the closest command to input, or "" if none is
// close enough.
func SuggestCommand(input string) string {
	return suggest(strings.ToLower(input), validCommands)
}

// SuggestSlashCommand is SuggestCommand for chat slash commands.
func SuggestSlashCommand(input string) string {
	return suggest(strings.ToLower(input), validSlashCommands)
}

// suggest picks the candidate with the smallest edit distance, allowing
// more edits for longer input.
func suggest(input string, candidates []string) string {
	if len([]rune(strings.TrimPrefix(input, "/"))) < 2 {
		return ""
	}

	maxDistance := 1
	if len(input) >= 4 {
		maxDistance = 2
	}
	if len(input) > 8 {
		maxDistance = 3
	}

	bestMatch := ""
	bestDistance := -1
	for _, cmd := range candidates {
		distance := levenshteinDistance(input, cmd)
		if distance == 0 {
			return ""
		}
		if distance <= maxDistance && (bestDistance == -1 || distance < bestDistance) {
			bestDistance = distance
			bestMatch = cmd
		}
	}

	return bestMatch
}

// levenshteinDistance is the number of single-rune edits between s1 and s2.
func levenshteinDistance(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	// Two rows instead of the full matrix
	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}
