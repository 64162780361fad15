package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading.
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Load loads the bridge configuration from file and environment. A missing
// config file yields the defaults; the environment always wins.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITEBRIDGE")
	v.AutomaticEnv()

	// The project binding honors the conventional DDEV variable as well.
	v.BindEnv("project", "SITEBRIDGE_PROJECT", "DDEV_PROJECT")
	v.BindEnv("host_root", "SITEBRIDGE_HOST_ROOT", "HOST_PROJECT_ROOT")
	v.BindEnv("container_root", "SITEBRIDGE_CONTAINER_ROOT", "CONTAINER_PROJECT_ROOT")
	v.BindEnv("tools_dir", "SITEBRIDGE_TOOLS_DIR")

	if l.configPath != "" {
		v.SetConfigFile(l.configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadToolFiles reads every YAML tool definition file in dir, sorted by name.
// A malformed file is logged and skipped; it never aborts loading of the
// remainder.
func LoadToolFiles(dir string) ([]ToolConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("tools config directory not readable: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext == ".yml" || ext == ".yaml" {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)

	var tools []ToolConfig
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			log.Error().Str("file", file).Err(err).Msg("Failed to read tool config file")
			continue
		}

		var tf ToolFile
		if err := yaml.Unmarshal(data, &tf); err != nil {
			log.Error().Str("file", file).Err(err).Msg("YAML error in tool config file")
			continue
		}
		if len(tf.Tools) == 0 {
			log.Warn().Str("file", file).Msg("Tool config file has no tools array")
			continue
		}

		for i := range tf.Tools {
			tf.Tools[i].Normalize()
		}
		tools = append(tools, tf.Tools...)
	}

	return tools, nil
}

// Load is a convenience function that creates a loader and loads the config.
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
