// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation holds the state that shapes each prompt: the system
// prompt, up to three few-shot examples and a rolling message history.
//
// # Key Types
//
//   - Message: one history entry (role, content, timestamp)
//   - FewShotExample / FewShotSet: bounded FIFO of worked examples
//   - State: system prompt, examples, history and prompt template
//   - Template: the fixed labels used when assembling a prompt
//
// # Usage
//
//	state := conversation.NewState("你是一个有用的助手。")
//	prompt := state.BuildPrompt("什么是机器学习？")
//	// ... send prompt, receive reply ...
//	state.AppendExchange("什么是机器学习？", reply)
//
// History is trimmed to the 20 most recent entries after every append, and
// only the last 6 are rendered into a prompt. A State is meant for one caller
// at a time and has no locking.
package conversation
