// Package config defines the typed bridge configuration and loads tool
// definitions from YAML files. Every recognized key has an explicit default;
// unknown tool types are rejected at load time.
package config

import (
	"strings"
	"time"

	"github.com/wdrdev/sitebridge/pkg/rules"
)

// Tool types.
const (
	TypeCommand   = "command"
	TypeMCPServer = "mcp_server"
)

// Config represents the bridge configuration. One bridge instance binds to
// one project; the project scopes container ownership checks and container
// name derivation.
type Config struct {
	// Project is the DDEV project identifier this bridge is bound to.
	Project string `json:"project" mapstructure:"project"`

	// HostRoot and ContainerRoot drive path normalization of tool arguments.
	HostRoot      string `json:"host_root" mapstructure:"host_root"`
	ContainerRoot string `json:"container_root" mapstructure:"container_root"`

	// ToolsDir holds the YAML tool definition files.
	ToolsDir string `json:"tools_dir" mapstructure:"tools_dir"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics configuration
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
}

// LoggingConfig holds logging configuration. Stdout is reserved for the RPC
// protocol, so process logs default to a file.
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
}

// MetricsConfig holds the optional metrics endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// ToolFile is the shape of one YAML tool definition file.
type ToolFile struct {
	Tools []ToolConfig `yaml:"tools"`
}

// ToolConfig describes one invocable tool and its executor parameters.
type ToolConfig struct {
	Name        string         `yaml:"name"`
	Enabled     bool           `yaml:"enabled"`
	Type        string         `yaml:"type"`
	Description string         `yaml:"description"`
	InputSchema map[string]any `yaml:"input_schema"`

	// command type
	CommandTemplate    string         `yaml:"command_template"`
	Container          string         `yaml:"container"`
	User               string         `yaml:"user"`
	Shell              string         `yaml:"shell"`
	DefaultArgs        map[string]any `yaml:"default_args"`
	DisallowedCommands []string       `yaml:"disallowed_commands"`
	ValidationRules    []rules.Rule   `yaml:"validation_rules"`

	// mcp_server type
	ServerURL         string `yaml:"server_url"`
	ForwardArgs       *bool  `yaml:"forward_args"`
	Timeout           int    `yaml:"timeout"` // seconds
	AuthUsername      string `yaml:"auth_username"`
	AuthPassword      string `yaml:"auth_password"`
	AuthToken         string `yaml:"auth_token"`
	AuthTokenBasic    bool   `yaml:"auth_token_basic"`
	VerifySSL         *bool  `yaml:"verify_ssl"`
	ExposeRemoteTools bool   `yaml:"expose_remote_tools"`
	ToolPrefix        string `yaml:"tool_prefix"`
	InitTimeout       int    `yaml:"init_timeout"` // seconds
}

// Normalize fills in the defaults for every recognized key.
func (t *ToolConfig) Normalize() {
	if t.Type == "" {
		t.Type = TypeCommand
	}
	if t.User == "" {
		t.User = "www-data"
	}
	if t.Shell == "" {
		t.Shell = "/bin/bash"
	}
	if t.ForwardArgs == nil {
		forward := true
		t.ForwardArgs = &forward
	}
	if t.VerifySSL == nil {
		verify := true
		t.VerifySSL = &verify
	}
	if t.Timeout <= 0 {
		t.Timeout = 10
	}
	if t.InitTimeout <= 0 {
		t.InitTimeout = 30
	}
}

// RemoteTimeout returns the per-call timeout as a duration.
func (t *ToolConfig) RemoteTimeout() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// DiscoveryTimeout returns the remote discovery timeout as a duration.
func (t *ToolConfig) DiscoveryTimeout() time.Duration {
	return time.Duration(t.InitTimeout) * time.Second
}

// InterpolateContainer replaces the {project} placeholder in a container
// template with the bound project identifier.
func InterpolateContainer(container, project string) string {
	return strings.ReplaceAll(container, "{project}", project)
}

// DefaultConfig returns a config with default values.
func DefaultConfig() *Config {
	return &Config{
		Project:       "default-project",
		HostRoot:      "/workspace",
		ContainerRoot: "/var/www/html",
		ToolsDir:      "tools-config",
		Logging: LoggingConfig{
			Level: "info",
			File:  "/tmp/sitebridge.log",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9923",
		},
	}
}
