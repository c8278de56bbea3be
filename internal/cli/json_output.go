// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output for --json.
//
// Every command that supports --json writes one JSONResponse to stdout.
// Human-readable messages go to stderr in JSON mode.
package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/jeranaias/seekrun/internal/ledger"
)

// JSONResponse is the envelope shared by all --json output.
type JSONResponse struct {
	Success bool `json:"success"`

	// Data contains the command-specific response data.
	Data any `json:"data"`

	// Error is the error message if Success is false, null otherwise.
	Error *string `json:"error"`

	Timestamp string `json:"timestamp"`
	Command   string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates an error response. data may be nil.
func NewJSONErrorResponse(command string, data any, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Data:      data,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response to w, indented.
func (r *JSONResponse) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(r)
}

// OutputJSON runs handler and writes its result, or its error, as a
// JSONResponse. The handler's error is returned so the exit code reflects it.
func OutputJSON(w io.Writer, command string, handler func() (any, error)) error {
	data, err := handler()
	if err != nil {
		if werr := NewJSONErrorResponse(command, data, err).Write(w); werr != nil {
			return werr
		}
		return err
	}
	return NewJSONResponse(command, data).Write(w)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// AskData is the data returned by the ask command.
type AskData struct {
	Model      string `json:"model"`
	Reply      string `json:"reply"`
	Streamed   bool   `json:"streamed"`
	DurationMs int64  `json:"duration_ms"`
	Skipped    int    `json:"skipped_events,omitempty"`
}

// StatsData is the data returned by the stats command.
type StatsData struct {
	LedgerPath string          `json:"ledger_path"`
	Summary    StatsSummary    `json:"summary"`
	Recent     []StatsExchange `json:"recent"`
}

// StatsSummary mirrors ledger.Summary with JSON-friendly units.
type StatsSummary struct {
	Calls          int    `json:"calls"`
	Failures       int    `json:"failures"`
	PromptChars    int    `json:"prompt_chars"`
	ReplyChars     int    `json:"reply_chars"`
	MeanDurationMs int64  `json:"mean_duration_ms"`
	FirstAt        string `json:"first_at,omitempty"`
	LastAt         string `json:"last_at,omitempty"`
}

// StatsExchange is one ledger entry.
type StatsExchange struct {
	ID          string `json:"id"`
	SessionID   string `json:"session_id"`
	Model       string `json:"model"`
	Streamed    bool   `json:"streamed"`
	PromptChars int    `json:"prompt_chars"`
	ReplyChars  int    `json:"reply_chars"`
	DurationMs  int64  `json:"duration_ms"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func newStatsSummary(s ledger.Summary) StatsSummary {
	out := StatsSummary{
		Calls:          s.Calls,
		Failures:       s.Failures,
		PromptChars:    s.PromptChars,
		ReplyChars:     s.ReplyChars,
		MeanDurationMs: s.MeanDuration.Milliseconds(),
	}
	if !s.FirstAt.IsZero() {
		out.FirstAt = s.FirstAt.UTC().Format(time.RFC3339)
		out.LastAt = s.LastAt.UTC().Format(time.RFC3339)
	}
	return out
}

func newStatsExchange(e ledger.Exchange) StatsExchange {
	return StatsExchange{
		ID:          e.ID,
		SessionID:   e.SessionID,
		Model:       e.Model,
		Streamed:    e.Streamed,
		PromptChars: e.PromptChars,
		ReplyChars:  e.ReplyChars,
		DurationMs:  e.Duration.Milliseconds(),
		Error:       e.Error,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
