// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm provides the HTTP client for the DeepSeek chat-completion API.
//
// The API is OpenAI-compatible: a single POST to {base_url}/chat/completions
// carrying a bearer token. This package turns a GenerationRequest into that
// HTTP request and turns the response (a JSON document, or a Server-Sent
// Events stream when streaming) back into text.
//
// # Key Types
//
//   - Client: adapter for one model id (see NewChatClient and NewCodeClient)
//   - GenerationRequest: one call's prompt and sampling parameters
//   - Payload: the headers and JSON body produced by BuildPayload
//   - Stream: pull iterator over streamed text fragments
//   - EventReader: SSE line parser used by Stream
//   - Error: typed error carrying a Kind (Transport, EmptyResponse, ...)
//
// # Usage
//
//	cfg := llm.DefaultConfig()
//	cfg.APIKey = os.Getenv("DEEPSEEK_API_KEY")
//	client, err := llm.NewChatClient(cfg)
//	if err != nil {
//	    return err
//	}
//	text, err := client.Complete(ctx, client.NewRequest("你好", false))
//
// For streaming responses:
//
//	stream, err := client.Stream(ctx, client.NewRequest(prompt, true))
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for {
//	    fragment, err := stream.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(fragment)
//	}
//
// There is no retry logic in this package. A failed call fails once.
package llm
