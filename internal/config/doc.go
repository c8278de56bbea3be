// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for seekrun.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: main configuration structure
//   - APIConfig: endpoint, credential, model and pacing
//   - GenerationConfig: sampling parameters sent with each call
//   - ChatConfig: prompt profile, session and REPL settings
//   - LedgerConfig, LogConfig: exchange ledger and logging
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Command-line flags (applied by the cli package)
//   - Environment variables (DEEPSEEK_API_KEY, DEEPSEEK_BASE_URL, ...)
//   - ~/.seekrun/config.toml
//   - ~/.seekrun/config.json
//   - Built-in defaults
//
// The API key has no default. It must come from the environment or the
// config file.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client, err := llm.NewClient(cfg.ClientConfig(logger))
package config
