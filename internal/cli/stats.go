// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// stats.go - Exchange ledger report.
//
// Command: stats [--limit N] [--json]
//
// Shows totals over every recorded call and the most recent calls.
package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeranaias/seekrun/internal/ledger"
	"github.com/jeranaias/seekrun/internal/util"
)

// errLedgerDisabled is returned when ledger.enabled is false.
var errLedgerDisabled = errors.New("the exchange ledger is disabled (set ledger.enabled = true in config.toml)")

// HandleStats handles the "stats" command.
func HandleStats(ctx context.Context, env *Env, args Args) error {
	if !env.Config.Ledger.Enabled {
		return NewCommandError("stats", "", errLedgerDisabled)
	}
	store, err := ledger.Open(env.Config.Ledger.Path)
	if err != nil {
		return NewCommandError("stats", "open ledger", err)
	}
	defer store.Close()

	limit := args.Limit
	if limit <= 0 {
		limit = 10
	}

	if args.JSON {
		return OutputJSON(env.Out, "stats", func() (any, error) {
			return collectStats(ctx, store, limit)
		})
	}

	sum, err := store.Summary(ctx, "")
	if err != nil {
		return NewCommandError("stats", "read summary", err)
	}
	recent, err := store.Recent(ctx, limit)
	if err != nil {
		return NewCommandError("stats", "read recent calls", err)
	}
	printStats(env, store.Path(), sum, recent)
	return nil
}

func collectStats(ctx context.Context, store *ledger.Store, limit int) (*StatsData, error) {
	sum, err := store.Summary(ctx, "")
	if err != nil {
		return nil, err
	}
	recent, err := store.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	data := &StatsData{
		LedgerPath: store.Path(),
		Summary:    newStatsSummary(sum),
		Recent:     make([]StatsExchange, 0, len(recent)),
	}
	for _, e := range recent {
		data.Recent = append(data.Recent, newStatsExchange(e))
	}
	return data, nil
}

func printStats(env *Env, path string, sum ledger.Summary, recent []ledger.Exchange) {
	w := env.Out
	fmt.Fprintln(w, TitleStyle.Render("seekrun stats"))
	fmt.Fprintln(w, RenderSeparator())
	fmt.Fprintf(w, "%s %s\n", RenderLabel("Ledger:"), DimStyle.Render(path))

	if sum.Calls == 0 {
		fmt.Fprintln(w, DimStyle.Render("No calls recorded yet"))
		return
	}

	fmt.Fprintf(w, "%s %d\n", RenderLabel("Calls:"), sum.Calls)
	fmt.Fprintf(w, "%s %d\n", RenderLabel("Failures:"), sum.Failures)
	fmt.Fprintf(w, "%s %d\n", RenderLabel("Prompt chars:"), sum.PromptChars)
	fmt.Fprintf(w, "%s %d\n", RenderLabel("Reply chars:"), sum.ReplyChars)
	fmt.Fprintf(w, "%s %s\n", RenderLabel("Mean duration:"), sum.MeanDuration.Round(time.Millisecond))
	fmt.Fprintf(w, "%s %s to %s\n", RenderLabel("Period:"),
		sum.FirstAt.Format("2006-01-02 15:04"), sum.LastAt.Format("2006-01-02 15:04"))

	fmt.Fprintln(w)
	fmt.Fprintln(w, SectionStyle.Render("Recent calls"))
	for _, e := range recent {
		status := SuccessStyle.Render("ok  ")
		if !e.Succeeded() {
			status = ErrorStyle.Render("fail")
		}
		mode := "complete"
		if e.Streamed {
			mode = "stream"
		}
		line := fmt.Sprintf("%s %s %-16s %-8s %6s",
			e.CreatedAt.Format("01-02 15:04:05"), status, e.Model, mode, e.Duration.Round(time.Millisecond))
		if e.Error != "" {
			line += " " + DimStyle.Render(util.Preview(e.Error, 48))
		}
		fmt.Fprintln(w, line)
	}
}
