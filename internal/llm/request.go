// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Model identifiers served by the DeepSeek API.
const (
	ChatModel = "deepseek-chat"
	CodeModel = "deepseek-coder"
)

// Sampling defaults applied by Client.NewRequest.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024
	DefaultTopP        = 0.95
)

// GenerationRequest describes one call. It is built fresh per call and
// passed by value; nothing in this package modifies it.
type GenerationRequest struct {
	Model       string
	Prompt      string
	Temperature float64 // 0..1
	MaxTokens   int     // > 0
	TopP        float64 // (0, 1]
	Stop        []string
	Stream      bool

	// Extra is merged into the JSON body after every other field and may
	// overwrite any of them, including model, messages and stream. It exists
	// so callers can reach API parameters this package does not model.
	Extra map[string]any
}

// Validate checks parameter ranges before any network activity.
func (r GenerationRequest) Validate() error {
	switch {
	case r.Model == "":
		return &Error{Kind: KindInvalidRequest, Message: "model is required"}
	case r.Temperature < 0 || r.Temperature > 1:
		return &Error{Kind: KindInvalidRequest, Message: fmt.Sprintf("temperature %.2f outside [0, 1]", r.Temperature)}
	case r.MaxTokens <= 0:
		return &Error{Kind: KindInvalidRequest, Message: fmt.Sprintf("max_tokens must be positive, got %d", r.MaxTokens)}
	case r.TopP <= 0 || r.TopP > 1:
		return &Error{Kind: KindInvalidRequest, Message: fmt.Sprintf("top_p %.2f outside (0, 1]", r.TopP)}
	}
	return nil
}

// wireMessage is one entry of the messages array.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Payload is a fully built HTTP request minus the URL.
type Payload struct {
	Header http.Header
	Body   []byte
}

// =============================================================================
// REQUEST BUILDER
// =============================================================================

// BuildPayload produces the headers and JSON body for req. The prompt is sent
// as a single user message; conversation context is already folded into it.
func BuildPayload(req GenerationRequest, apiKey string) (*Payload, error) {
	body := map[string]any{
		"model":       req.Model,
		"messages":    []wireMessage{{Role: "user", Content: req.Prompt}},
		"temperature": req.Temperature,
		"max_tokens":  req.MaxTokens,
		"top_p":       req.TopP,
		"stream":      req.Stream,
	}
	if len(req.Stop) > 0 {
		body["stop"] = req.Stop
	}
	for k, v := range req.Extra {
		body[k] = v
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Message: "failed to marshal request", Cause: err}
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set("Authorization", "Bearer "+apiKey)
	header.Set("User-Agent", userAgent)
	if req.Stream {
		header.Set("Accept", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
	}

	return &Payload{Header: header, Body: data}, nil
}
