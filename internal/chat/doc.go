// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat runs conversation turns against a completion backend.
//
// A Session ties a conversation.State to a Generator. Each turn assembles
// the prompt from the state, sends it, and appends the user input and the
// reply to history only once the reply is complete. Failed or abandoned
// turns leave history untouched.
//
//	sess := chat.New(client, state, chat.WithRecorder(store))
//	reply, err := sess.SendStream(ctx, "你好")
//	if err != nil {
//		return err
//	}
//	defer reply.Close()
//	for fragment, err := range reply.Fragments() {
//		if err != nil {
//			return err
//		}
//		fmt.Print(fragment)
//	}
//
// A Session is not safe for concurrent use; one turn runs at a time.
package chat
