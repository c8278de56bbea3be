// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/seekrun/internal/llm"
	"github.com/jeranaias/seekrun/internal/util"
)

// Environment variables read by ApplyEnvOverrides.
const (
	EnvAPIKey   = "DEEPSEEK_API_KEY"
	EnvBaseURL  = "DEEPSEEK_BASE_URL"
	EnvModel    = "DEEPSEEK_MODEL"
	EnvLogLevel = "DEEPSEEK_LOG_LEVEL"
	EnvProfile  = "DEEPSEEK_PROFILE"

	// EnvHome relocates the configuration directory (default ~/.seekrun).
	EnvHome = "SEEKRUN_HOME"
)

// ErrMissingAPIKey is returned by RequireAPIKey when no key is configured.
var ErrMissingAPIKey = errors.New("no API key configured: set " + EnvAPIKey + " or api.api_key in config.toml")

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete seekrun configuration.
type Config struct {
	API        APIConfig        `toml:"api" json:"api"`
	Generation GenerationConfig `toml:"generation" json:"generation"`
	Chat       ChatConfig       `toml:"chat" json:"chat"`
	Ledger     LedgerConfig     `toml:"ledger" json:"ledger"`
	Log        LogConfig        `toml:"log" json:"log"`
}

// APIConfig contains the DeepSeek endpoint settings.
type APIConfig struct {
	BaseURL           string `toml:"base_url" json:"base_url"`
	APIKey            string `toml:"api_key" json:"api_key"`
	Model             string `toml:"model" json:"model"`
	TimeoutSecs       int    `toml:"timeout_secs" json:"timeout_secs"`
	RequestsPerMinute int    `toml:"requests_per_minute" json:"requests_per_minute"`
}

// GenerationConfig contains the sampling parameters sent with each call.
type GenerationConfig struct {
	Temperature float64  `toml:"temperature" json:"temperature"`
	MaxTokens   int      `toml:"max_tokens" json:"max_tokens"`
	TopP        float64  `toml:"top_p" json:"top_p"`
	Stop        []string `toml:"stop" json:"stop,omitempty"`
}

// ChatConfig contains interactive chat settings.
type ChatConfig struct {
	// ProfilePath is the prompt profile file. Empty uses the built-in profile.
	ProfilePath string `toml:"profile_path" json:"profile_path"`

	// SessionDir is where relative /save and /load paths resolve.
	SessionDir string `toml:"session_dir" json:"session_dir"`

	// HistoryFile stores line-editor input history.
	HistoryFile string `toml:"history_file" json:"history_file"`

	// Markdown renders replies with glamour instead of streaming raw text.
	Markdown bool `toml:"markdown" json:"markdown"`

	// WatchProfile reloads the profile file when it changes.
	WatchProfile bool `toml:"watch_profile" json:"watch_profile"`
}

// LedgerConfig contains exchange ledger settings.
type LedgerConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Path    string `toml:"path" json:"path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with default values. The API key is empty.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:     llm.DefaultBaseURL,
			Model:       llm.ChatModel,
			TimeoutSecs: int(llm.DefaultTimeout / time.Second),
		},
		Generation: GenerationConfig{
			Temperature: llm.DefaultTemperature,
			MaxTokens:   llm.DefaultMaxTokens,
			TopP:        llm.DefaultTopP,
		},
		Chat: ChatConfig{
			WatchProfile: true,
		},
		Ledger: LedgerConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the seekrun configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".seekrun"), nil
}

func pathInConfigDir(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	return pathInConfigDir("config.toml")
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	return pathInConfigDir("config.json")
}

// ProfilePath returns the path of the starter profile written by install.
func ProfilePath() (string, error) {
	return pathInConfigDir("profile.toml")
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions tightens a config file to 0600; it may hold the key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default location. TOML is tried first,
// then JSON; without either file the defaults are used. Environment
// overrides are applied last, then the result is validated.
func Load() (*Config, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return LoadFromPath(tomlPath)
	}

	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return LoadFromPath(jsonPath)
	}

	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file. The format follows
// the extension (.json, anything else is read as TOML).
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = LoadJSON(cfg, path)
	} else {
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish applies environment overrides and fills computed paths, then
// validates.
func (c *Config) finish() error {
	c.ApplyEnvOverrides()
	if err := c.SetDefaults(); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		slog.Warn("could not ensure secure config permissions", "path", path, "error", err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file %s: %w", path, err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		slog.Warn("could not ensure secure config permissions", "path", path, "error", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file %s: %w", path, err)
	}
	return nil
}

// ApplyEnvOverrides applies DEEPSEEK_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if key := strings.TrimSpace(os.Getenv(EnvAPIKey)); key != "" {
		c.API.APIKey = key
	}
	if baseURL := strings.TrimSpace(os.Getenv(EnvBaseURL)); baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if model := strings.TrimSpace(os.Getenv(EnvModel)); model != "" {
		c.API.Model = model
	}
	if level := strings.TrimSpace(os.Getenv(EnvLogLevel)); level != "" {
		c.Log.Level = level
	}
	if profile := strings.TrimSpace(os.Getenv(EnvProfile)); profile != "" {
		c.Chat.ProfilePath = profile
	}
}

// SetDefaults fills paths that derive from the config directory and expands
// a leading ~ in configured paths.
func (c *Config) SetDefaults() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if c.Chat.SessionDir == "" {
		c.Chat.SessionDir = filepath.Join(dir, "sessions")
	}
	if c.Chat.HistoryFile == "" {
		c.Chat.HistoryFile = filepath.Join(dir, "chat_history")
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = filepath.Join(dir, "ledger.db")
	}
	c.Chat.ProfilePath = expandHome(c.Chat.ProfilePath)
	c.Chat.SessionDir = expandHome(c.Chat.SessionDir)
	c.Chat.HistoryFile = expandHome(c.Chat.HistoryFile)
	c.Ledger.Path = expandHome(c.Ledger.Path)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# seekrun configuration file\n")
	b.WriteString("#\n")
	b.WriteString("# The API key is best supplied through " + EnvAPIKey + ".\n\n")
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks ranges and formats. A missing API key is not an error
// here; commands that call the API use RequireAPIKey.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("api.base_url", "must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if strings.TrimSpace(c.API.Model) == "" {
		add("api.model", "must not be empty")
	}
	if c.API.TimeoutSecs <= 0 {
		add("api.timeout_secs", "must be positive, got %d", c.API.TimeoutSecs)
	}
	if c.API.RequestsPerMinute < 0 {
		add("api.requests_per_minute", "must not be negative, got %d", c.API.RequestsPerMinute)
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 1 {
		add("generation.temperature", "must be within [0, 1], got %g", c.Generation.Temperature)
	}
	if c.Generation.MaxTokens <= 0 {
		add("generation.max_tokens", "must be positive, got %d", c.Generation.MaxTokens)
	}
	if c.Generation.TopP <= 0 || c.Generation.TopP > 1 {
		add("generation.top_p", "must be within (0, 1], got %g", c.Generation.TopP)
	}
	if !validLogLevels[c.Log.Level] {
		add("log.level", "must be one of debug, info, warn, error; got %q", c.Log.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// RequireAPIKey returns ErrMissingAPIKey when no key is configured.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.API.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// =============================================================================
// DERIVED SETTINGS
// =============================================================================

// Timeout returns the API timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSecs) * time.Second
}

// ClientConfig converts the settings into an llm.ClientConfig.
func (c *Config) ClientConfig(logger *slog.Logger) llm.ClientConfig {
	var stop []string
	if len(c.Generation.Stop) > 0 {
		stop = append(stop, c.Generation.Stop...)
	}
	return llm.ClientConfig{
		BaseURL:           c.API.BaseURL,
		APIKey:            c.API.APIKey,
		Model:             c.API.Model,
		Temperature:       c.Generation.Temperature,
		MaxTokens:         c.Generation.MaxTokens,
		TopP:              c.Generation.TopP,
		Stop:              stop,
		Timeout:           c.Timeout(),
		RequestsPerMinute: c.API.RequestsPerMinute,
		Logger:            logger,
	}
}

// MaskedAPIKey returns a display form of the key that never reveals it.
func (c *Config) MaskedAPIKey() string {
	if c.API.APIKey == "" {
		return "[not set]"
	}
	return "[set, " + strconv.Itoa(len(c.API.APIKey)) + " chars]"
}
