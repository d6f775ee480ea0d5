// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/flowchat-tui/internal/flow"
	"github.com/jeranaias/flowchat-tui/internal/util"
	"github.com/jeranaias/flowchat-tui/internal/widget"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete flowchat configuration.
type Config struct {
	Flow    FlowConfig    `toml:"flow"`
	Session SessionConfig `toml:"session"`
	UI      UIConfig      `toml:"ui"`
	History HistoryConfig `toml:"history"`
	Debug   DebugConfig   `toml:"debug"`
}

// FlowConfig identifies the flow-execution endpoint and the run parameters
// sent with every request.
type FlowConfig struct {
	// HostURL is the base URL of the flow server (e.g. "https://flows.example.com").
	HostURL string `toml:"host_url"`
	// FlowID is the identifier of the flow to execute.
	FlowID string `toml:"flow_id"`
	// APIKey is sent as the x-api-key header when non-empty.
	APIKey string `toml:"api_key"`
	// AdditionalHeaders are extra request headers, applied last.
	AdditionalHeaders map[string]string `toml:"additional_headers"`

	// InputType and OutputType select the flow IO components ("chat" or "text").
	InputType  string `toml:"input_type"`
	OutputType string `toml:"output_type"`
	// OutputComponent pins the output to a specific component id.
	OutputComponent string `toml:"output_component"`

	// Tweaks are per-component parameter overrides forwarded verbatim.
	Tweaks map[string]any `toml:"tweaks"`
	// ChatInputs and ChatInputField feed structured chat input objects.
	ChatInputs     map[string]any `toml:"chat_inputs"`
	ChatInputField string         `toml:"chat_input_field"`

	// FallbackMessage replaces an empty response.
	FallbackMessage string `toml:"fallback_message"`

	// BufferedMode forces the non-streaming transport path; chunks are
	// replayed on PacingIntervalMs cadence.
	BufferedMode     bool `toml:"buffered_mode"`
	PacingIntervalMs int  `toml:"pacing_interval_ms"`
}

// SessionConfig controls session identity.
type SessionConfig struct {
	// SessionID overrides the generated session identifier. Leave empty to
	// get a fresh id per widget lifetime.
	SessionID string `toml:"session_id"`
}

// UIConfig contains presentation settings shared by the TUI and plain CLI
// surfaces.
type UIConfig struct {
	// WindowTitle is shown in the chat header.
	WindowTitle string `toml:"window_title"`
	// Placeholder is the input hint while idle; PlaceholderSending is shown
	// while a response is streaming.
	Placeholder        string `toml:"placeholder"`
	PlaceholderSending string `toml:"placeholder_sending"`
	// ErrorMessage is the static text shown in the transcript when a run
	// fails.
	ErrorMessage string `toml:"error_message"`
	// StartOpen opens the chat immediately on start.
	StartOpen bool `toml:"start_open"`

	// EnableMarkdown renders bot messages as markdown.
	EnableMarkdown bool `toml:"enable_markdown"`
	// EnableCitations extracts citation markers into source bubbles.
	EnableCitations bool `toml:"enable_citations"`
	// FontSize is a base size hint for renderers that honor it.
	FontSize int `toml:"font_size"`
	// Theme selects the color theme: "dark", "light", or "auto".
	Theme string `toml:"theme"`
}

// HistoryConfig controls local transcript persistence.
type HistoryConfig struct {
	Enabled bool `toml:"enabled"`
	// DBPath is the sqlite database path (empty = ~/.flowchat/history.db).
	DBPath string `toml:"db_path"`
}

// DebugConfig controls the debug log.
type DebugConfig struct {
	Enabled bool `toml:"enabled"`
	// LogPath is the debug log path (empty = ~/.flowchat/debug.log).
	LogPath string `toml:"log_path"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a config with built-in defaults. HostURL and FlowID have
// no defaults and must come from the file, environment, or flags.
func Default() *Config {
	return &Config{
		Flow: FlowConfig{
			InputType:        "chat",
			OutputType:       "chat",
			FallbackMessage:  "Sorry, I could not generate a response.",
			PacingIntervalMs: 50,
		},
		UI: UIConfig{
			WindowTitle:        "Chat",
			Placeholder:        "Type your message...",
			PlaceholderSending: "Waiting for response...",
			ErrorMessage:       "Sorry, something went wrong. Please try again.",
			EnableMarkdown:     true,
			EnableCitations:    true,
			FontSize:           14,
			Theme:              "auto",
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the flowchat configuration directory (~/.flowchat).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".flowchat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// HistoryDBPath resolves the sqlite path, honoring the configured override.
func (c *Config) HistoryDBPath() (string, error) {
	if c.History.DBPath != "" {
		return c.History.DBPath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// DebugLogPath resolves the debug log path, honoring the configured override.
func (c *Config) DebugLogPath() (string, error) {
	if c.Debug.LogPath != "" {
		return c.Debug.LogPath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "debug.log"), nil
}

// =============================================================================
// LOAD
// =============================================================================

// Load loads configuration from the default config file. A missing file is
// not an error: defaults plus environment overrides apply.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file with env
// overrides and full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ensureSecurePermissions fixes config file permissions. The file carries
// the API key and should be 0600.
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
// SAVE
// =============================================================================

// Save writes the configuration to the default TOML file with 0600
// permissions.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to a TOML file. The write is atomic so
// a crash mid-save never leaves a truncated config behind.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# flowchat configuration file")
	fmt.Fprintln(&buf, "# Generated by flowchat - edit with care")
	fmt.Fprintln(&buf, "")

	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return util.AtomicWriteFile(path, buf.Bytes(), 0600)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies FLOWCHAT_* environment variables on top of the
// loaded values.
func (c *Config) ApplyEnvOverrides() {
	if host := os.Getenv("FLOWCHAT_HOST_URL"); host != "" {
		c.Flow.HostURL = host
	}
	if id := os.Getenv("FLOWCHAT_FLOW_ID"); id != "" {
		c.Flow.FlowID = id
	}
	if key := os.Getenv("FLOWCHAT_API_KEY"); key != "" {
		c.Flow.APIKey = key
	}
	if sid := os.Getenv("FLOWCHAT_SESSION_ID"); sid != "" {
		c.Session.SessionID = sid
	}
	if buffered := os.Getenv("FLOWCHAT_BUFFERED"); buffered != "" {
		c.Flow.BufferedMode = envBool(buffered)
	}
	if debug := os.Getenv("FLOWCHAT_DEBUG"); debug != "" {
		c.Debug.Enabled = envBool(debug)
	}
	if theme := os.Getenv("FLOWCHAT_THEME"); theme != "" {
		c.UI.Theme = theme
	}
	if size := os.Getenv("FLOWCHAT_FONT_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			c.UI.FontSize = n
		}
	}
}

func envBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
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
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Flow.HostURL == "" {
		errs = append(errs, ValidationError{
			Field:   "flow.host_url",
			Message: "host URL is required",
		})
	} else {
		u, err := url.Parse(c.Flow.HostURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "flow.host_url",
				Message: fmt.Sprintf("invalid URL '%s', must include scheme and host", c.Flow.HostURL),
			})
		}
	}

	if c.Flow.FlowID == "" {
		errs = append(errs, ValidationError{
			Field:   "flow.flow_id",
			Message: "flow id is required",
		})
	}

	validIO := map[string]bool{"chat": true, "text": true}
	if !validIO[strings.ToLower(c.Flow.InputType)] {
		errs = append(errs, ValidationError{
			Field:   "flow.input_type",
			Message: fmt.Sprintf("invalid type '%s', must be one of: chat, text", c.Flow.InputType),
		})
	}
	if !validIO[strings.ToLower(c.Flow.OutputType)] {
		errs = append(errs, ValidationError{
			Field:   "flow.output_type",
			Message: fmt.Sprintf("invalid type '%s', must be one of: chat, text", c.Flow.OutputType),
		})
	}

	if c.Flow.PacingIntervalMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "flow.pacing_interval_ms",
			Message: "pacing interval cannot be negative",
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if c.UI.FontSize < 0 {
		errs = append(errs, ValidationError{
			Field:   "ui.font_size",
			Message: "font size cannot be negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// DERIVED CONFIGS
// =============================================================================

// FlowClientConfig builds the flow client configuration.
func (c *Config) FlowClientConfig() *flow.Config {
	fc := flow.DefaultConfig()
	fc.HostURL = c.Flow.HostURL
	fc.FlowID = c.Flow.FlowID
	fc.APIKey = c.Flow.APIKey
	fc.AdditionalHeaders = c.Flow.AdditionalHeaders
	if c.Flow.InputType != "" {
		fc.InputType = c.Flow.InputType
	}
	if c.Flow.OutputType != "" {
		fc.OutputType = c.Flow.OutputType
	}
	fc.OutputComponent = c.Flow.OutputComponent
	fc.Tweaks = c.Flow.Tweaks
	fc.ChatInputs = c.Flow.ChatInputs
	fc.ChatInputField = c.Flow.ChatInputField
	if c.Flow.FallbackMessage != "" {
		fc.FallbackMessage = c.Flow.FallbackMessage
	}
	fc.BufferedMode = c.Flow.BufferedMode
	if c.Flow.PacingIntervalMs > 0 {
		fc.PacingInterval = time.Duration(c.Flow.PacingIntervalMs) * time.Millisecond
	}
	return fc
}

// WidgetOptions builds the widget controller options. Callbacks are left
// for the caller to attach.
func (c *Config) WidgetOptions() widget.Options {
	return widget.Options{
		Flow:         c.FlowClientConfig(),
		SessionID:    c.Session.SessionID,
		ErrorMessage: c.UI.ErrorMessage,
		StartOpen:    c.UI.StartOpen,
		Caps: widget.Capabilities{
			SupportsMarkdown:  c.UI.EnableMarkdown,
			SupportsCitations: c.UI.EnableCitations,
			FontSize:          c.UI.FontSize,
		},
	}
}
