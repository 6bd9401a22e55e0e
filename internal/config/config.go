// Package config loads MACF's two on-disk configuration files: the
// optional agent identity at {agent_home}/.maceff/config.json, and the
// settings.json/settings.local.json overlay, following the teacher's
// settings.go base-file-then-local-override merge pattern (only
// present-in-JSON fields from the local file override the base, rather
// than a blind struct overwrite that would clobber unset fields back to
// their zero value).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/maceff/macf/internal/macferr"
)

const (
	// ConfigFile holds the optional agent_identity block (spec §6).
	ConfigFile = ".maceff/config.json"
	// SettingsFile and SettingsLocalFile are the overlay pair.
	SettingsFile      = ".maceff/settings.json"
	SettingsLocalFile = ".maceff/settings.local.json"
)

// AgentIdentity is the optional agent_identity block (spec §6).
type AgentIdentity struct {
	Moniker     string `json:"moniker"`
	Description string `json:"description,omitempty"`
	Created     string `json:"created,omitempty"`
}

// Config is the top-level {agent_home}/.maceff/config.json shape.
type Config struct {
	AgentIdentity *AgentIdentity `json:"agent_identity,omitempty"`
}

// LoadConfig reads {agentHome}/.maceff/config.json. A missing file yields
// an empty, non-nil Config — agent identity is explicitly optional.
func LoadConfig(agentHome string) (*Config, error) {
	path := filepath.Join(agentHome, ConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, &macferr.IOErr{Op: "read config", Err: err}
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, &macferr.MalformedInput{Reason: fmt.Sprintf("config.json: %v", err)}
	}
	return &c, nil
}

// SaveConfig writes {agentHome}/.maceff/config.json, creating the
// .maceff directory if needed.
func SaveConfig(agentHome string, c *Config) error {
	path := filepath.Join(agentHome, ConfigFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return &macferr.IOErr{Op: "mkdir config dir", Err: err}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return &macferr.IOErr{Op: "marshal config", Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &macferr.IOErr{Op: "write config", Err: err}
	}
	return nil
}

// Settings is MACF's tunable runtime behavior, analogous to the teacher's
// EntireSettings.
type Settings struct {
	Enabled   bool     `json:"enabled"`
	LogLevel  string   `json:"log_level,omitempty"`
	Telemetry *bool    `json:"telemetry,omitempty"`
	AutoMode  bool     `json:"auto_mode,omitempty"`
	GatedTools []string `json:"gated_tools,omitempty"`
}

func defaultSettings() *Settings {
	return &Settings{Enabled: true}
}

// LoadSettings reads {agentHome}/.maceff/settings.json, then applies
// present-in-JSON overrides from settings.local.json if it exists.
// Missing files are not errors; defaults are returned.
func LoadSettings(agentHome string) (*Settings, error) {
	base, err := loadSettingsFile(filepath.Join(agentHome, SettingsFile))
	if err != nil {
		return nil, err
	}

	localPath := filepath.Join(agentHome, SettingsLocalFile)
	localData, err := os.ReadFile(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return nil, &macferr.IOErr{Op: "read local settings", Err: err}
	}

	if err := mergePresentFields(base, localData); err != nil {
		return nil, err
	}
	return base, nil
}

func loadSettingsFile(path string) (*Settings, error) {
	s := defaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, &macferr.IOErr{Op: "read settings", Err: err}
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, &macferr.MalformedInput{Reason: fmt.Sprintf("settings.json: %v", err)}
	}
	return s, nil
}

// mergePresentFields only overrides fields actually present in data,
// exactly like the teacher's mergeJSON — a local settings file that
// doesn't mention log_level must not reset it to "".
func mergePresentFields(s *Settings, data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return &macferr.MalformedInput{Reason: fmt.Sprintf("settings.local.json: %v", err)}
	}

	if v, ok := raw["enabled"]; ok {
		var b bool
		if err := json.Unmarshal(v, &b); err != nil {
			return &macferr.MalformedInput{Reason: "settings.local.json: enabled: " + err.Error()}
		}
		s.Enabled = b
	}
	if v, ok := raw["log_level"]; ok {
		var ll string
		if err := json.Unmarshal(v, &ll); err != nil {
			return &macferr.MalformedInput{Reason: "settings.local.json: log_level: " + err.Error()}
		}
		if ll != "" {
			s.LogLevel = ll
		}
	}
	if v, ok := raw["auto_mode"]; ok {
		var b bool
		if err := json.Unmarshal(v, &b); err != nil {
			return &macferr.MalformedInput{Reason: "settings.local.json: auto_mode: " + err.Error()}
		}
		s.AutoMode = b
	}
	if v, ok := raw["telemetry"]; ok {
		var b bool
		if err := json.Unmarshal(v, &b); err != nil {
			return &macferr.MalformedInput{Reason: "settings.local.json: telemetry: " + err.Error()}
		}
		s.Telemetry = &b
	}
	if v, ok := raw["gated_tools"]; ok {
		var gt []string
		if err := json.Unmarshal(v, &gt); err != nil {
			return &macferr.MalformedInput{Reason: "settings.local.json: gated_tools: " + err.Error()}
		}
		if len(gt) > 0 {
			s.GatedTools = gt
		}
	}
	return nil
}

// SaveSettings writes {agentHome}/.maceff/settings.json, creating the
// .maceff directory if needed. It never touches settings.local.json.
func SaveSettings(agentHome string, s *Settings) error {
	path := filepath.Join(agentHome, SettingsFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return &macferr.IOErr{Op: "mkdir settings dir", Err: err}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return &macferr.IOErr{Op: "marshal settings", Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &macferr.IOErr{Op: "write settings", Err: err}
	}
	return nil
}
