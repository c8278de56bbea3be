// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the seekrun packages.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync and rename
//
// Text:
//   - NormalizeInput: NFC-normalise and trim user input
//   - Preview: single-line, display-width-bounded excerpt (CJK aware)
//   - TruncateWidth: cut a string to a display width
//
// # Usage
//
//	err := util.AtomicWriteFile(path, data, 0600)
//	fmt.Println(util.Preview(systemPrompt, 100))
package util
