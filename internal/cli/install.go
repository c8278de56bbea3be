// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// install.go - First-run setup: config directory, config file and profile.
//
// Command: install [--force]
// Aliases: setup
//
// Creates the configuration directory (~/.seekrun or $SEEKRUN_HOME) with:
//   config.toml    Settings with defaults (no API key is written)
//   profile.toml   The default prompt profile, ready to edit
//   sessions/      Where /save and /load resolve relative names
//   ledger.db      The exchange ledger (when enabled)
//
// Existing files are kept unless --force is given.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/jeranaias/seekrun/internal/config"
	"github.com/jeranaias/seekrun/internal/profile"
	"github.com/jeranaias/seekrun/internal/util"
)

// installStep is one line of the install report.
type installStep struct {
	Name   string
	Path   string
	Status string // "created", "kept", "overwritten" or "failed"
	Err    error
}

// HandleInstall handles the "install" command.
func HandleInstall(env *Env, args Args) error {
	dir, err := config.ConfigDir()
	if err != nil {
		return NewCommandError("install", "", err)
	}
	if err := config.EnsureConfigDir(); err != nil {
		return NewCommandError("install", "create directory", err)
	}

	configPath, err := config.ConfigPathTOML()
	if err != nil {
		return NewCommandError("install", "", err)
	}
	profilePath, err := config.ProfilePath()
	if err != nil {
		return NewCommandError("install", "", err)
	}

	if args.Force && env.Interactive && fileExists(configPath) {
		if !env.Confirm("Overwrite " + configPath + " and " + profilePath + "?") {
			env.ShowCancellationMessage()
			return nil
		}
	}

	steps := []installStep{
		writeIfMissing("config", configPath, args.Force, func(path string) error {
			cfg := config.Default()
			cfg.Chat.ProfilePath = profilePath
			return config.SaveTOML(cfg, path)
		}),
		writeIfMissing("profile", profilePath, args.Force, func(path string) error {
			return util.AtomicWriteFile(path, profile.DefaultTOML(), 0600)
		}),
	}

	sessions := installStep{Name: "sessions", Path: env.Config.Chat.SessionDir, Status: "created"}
	if _, err := os.Stat(sessions.Path); err == nil {
		sessions.Status = "kept"
	} else if err := os.MkdirAll(sessions.Path, 0700); err != nil {
		sessions.Status, sessions.Err = "failed", err
	}
	steps = append(steps, sessions)

	if env.Config.Ledger.Enabled {
		store := env.OpenLedger()
		step := installStep{Name: "ledger", Path: env.Config.Ledger.Path, Status: "ready"}
		if store == nil {
			step.Status, step.Err = "failed", errors.New("could not open ledger")
		} else {
			store.Close()
		}
		steps = append(steps, step)
	}

	printInstallReport(env, dir, steps)

	for _, s := range steps {
		if s.Err != nil {
			return NewCommandError("install", s.Name, s.Err)
		}
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// writeIfMissing runs write unless path exists and force is false.
func writeIfMissing(name, path string, force bool, write func(string) error) installStep {
	step := installStep{Name: name, Path: path, Status: "created"}

	_, err := os.Stat(path)
	switch {
	case err == nil && !force:
		step.Status = "kept"
		return step
	case err == nil:
		step.Status = "overwritten"
	case !errors.Is(err, fs.ErrNotExist):
		step.Status, step.Err = "failed", err
		return step
	}

	if err := write(path); err != nil {
		step.Status, step.Err = "failed", err
	}
	return step
}

func printInstallReport(env *Env, dir string, steps []installStep) {
	w := env.Out
	fmt.Fprintln(w, TitleStyle.Render("seekrun install"))
	fmt.Fprintln(w, RenderSeparator())
	fmt.Fprintf(w, "%s %s\n", RenderLabel("Directory:"), ValueStyle.Render(dir))

	for _, s := range steps {
		status := SuccessStyle.Render("[" + s.Status + "]")
		switch s.Status {
		case "kept":
			status = DimStyle.Render("[kept]")
		case "failed":
			status = ErrorStyle.Render("[failed]")
		}
		fmt.Fprintf(w, "%s %s %s\n", RenderLabel(s.Name+":"), status, DimStyle.Render(s.Path))
		if s.Err != nil {
			fmt.Fprintf(w, "    %v\n", s.Err)
		}
	}

	fmt.Fprintln(w)
	if env.Config.API.APIKey == "" {
		fmt.Fprintf(w, "%s set %s before calling the API\n",
			WarningStyle.Render("[Next]"), config.EnvAPIKey)
	} else {
		fmt.Fprintf(w, "%s API key found %s\n", SuccessStyle.Render("[OK]"), env.Config.MaskedAPIKey())
	}
	fmt.Fprintf(w, "%s run 'seekrun test' to verify the setup\n", DimStyle.Render("[Next]"))
}
