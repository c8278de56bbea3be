// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package profile loads prompt profiles: the system prompt, few-shot
// examples and section labels that shape every assembled prompt.
//
// The built-in profile is embedded from default_profile.toml. User profiles
// may be TOML, YAML or JSON, selected by file extension.
package profile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/seekrun/internal/conversation"
)

// BuiltinSource is the Source of the embedded profile.
const BuiltinSource = "builtin"

//go:embed default_profile.toml
var defaultProfileTOML []byte

// ErrNoSystemPrompt is returned for a profile without a system prompt.
var ErrNoSystemPrompt = errors.New("profile has no system_prompt")

// =============================================================================
// PROFILE TYPE
// =============================================================================

// Profile is a named prompt persona.
type Profile struct {
	Name            string                        `json:"name" toml:"name" yaml:"name"`
	SystemPrompt    string                        `json:"system_prompt" toml:"system_prompt" yaml:"system_prompt"`
	FewShotExamples []conversation.FewShotExample `json:"few_shot_examples" toml:"few_shot_examples" yaml:"few_shot_examples"`
	Template        conversation.Template         `json:"template" toml:"template" yaml:"template"`

	// Source is the file the profile came from, or BuiltinSource.
	Source string `json:"-" toml:"-" yaml:"-"`
}

// Default returns the embedded profile.
func Default() *Profile {
	p, err := Parse(defaultProfileTOML, ".toml")
	if err != nil {
		panic("profile: embedded default is invalid: " + err.Error())
	}
	p.Source = BuiltinSource
	return p
}

// DefaultTOML returns the embedded profile file, for writing a starter copy.
func DefaultTOML() []byte {
	return bytes.Clone(defaultProfileTOML)
}

// Load reads a profile file. The format follows the extension: .toml,
// .yaml/.yml or .json.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	p, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	p.Source = path
	return p, nil
}

// Resolve returns the profile at path, or the embedded default when path is
// empty.
func Resolve(path string) (*Profile, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	return Load(path)
}

// Parse decodes a profile in the format named by ext.
func Parse(data []byte, ext string) (*Profile, error) {
	var p Profile
	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.Decode(string(data), &p); err != nil {
			return nil, fmt.Errorf("invalid TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported profile format %q (use .toml, .yaml or .json)", ext)
	}

	if err := p.normalize(); err != nil {
		return nil, err
	}
	return &p, nil
}

// normalize fills template defaults and bounds the example list.
func (p *Profile) normalize() error {
	p.SystemPrompt = strings.TrimSpace(p.SystemPrompt)
	if p.SystemPrompt == "" {
		return ErrNoSystemPrompt
	}
	p.Template = p.Template.WithDefaults()
	if n := len(p.FewShotExamples); n > conversation.MaxFewShotExamples {
		p.FewShotExamples = p.FewShotExamples[n-conversation.MaxFewShotExamples:]
	}
	for i, ex := range p.FewShotExamples {
		if strings.TrimSpace(ex.UserInput) == "" || strings.TrimSpace(ex.AssistantResponse) == "" {
			return fmt.Errorf("few_shot_examples[%d]: user_input and assistant_response are required", i)
		}
	}
	if p.Name == "" {
		p.Name = "custom"
	}
	return nil
}

// Apply installs the profile's prompt, examples and template on s. History
// is left alone.
func (p *Profile) Apply(s *conversation.State) {
	s.SetSystemPrompt(p.SystemPrompt)
	s.SetExamples(p.FewShotExamples)
	s.SetTemplate(p.Template)
}

// NewState creates a conversation state configured from the profile.
func (p *Profile) NewState() *conversation.State {
	s := conversation.NewState(p.SystemPrompt)
	p.Apply(s)
	return s
}
