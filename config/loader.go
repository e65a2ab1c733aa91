package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "trackref.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/trackref"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger
	// explicitPath, when set, replaces the layered lookup
	explicitPath string
}

// NewLoader creates a new configuration loader. A non-empty explicitPath is
// loaded on its own instead of the user and project layers.
func NewLoader(explicitPath string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, explicitPath: explicitPath}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/trackref/config.yaml)
// 3. Project config (trackref.yaml in current or parent directories)
//
// or, when the loader has an explicit path, defaults overlaid by that file.
// It returns the files that contributed so they can be watched.
func (l *Loader) Load() (*Config, []string, error) {
	if l.explicitPath != "" {
		config, err := LoadFromFile(l.explicitPath)
		if err != nil {
			return nil, nil, err
		}
		if err := config.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", l.explicitPath, err)
		}
		l.logger.Debug("Loaded config", slog.String("path", l.explicitPath))
		return config, []string{l.explicitPath}, nil
	}

	// Start with defaults
	config := DefaultConfig()
	var sources []string

	// Load user config
	if userConfigPath := l.userConfigPath(); userConfigPath != "" {
		if userConfig, err := readLayer(userConfigPath); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
			config.Merge(userConfig)
			sources = append(sources, userConfigPath)
		} else if !os.IsNotExist(err) {
			l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
		}
	}

	// Load project config
	projectConfigPath := l.findProjectConfig()
	if projectConfigPath != "" {
		if projectConfig, err := readLayer(projectConfigPath); err == nil {
			l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
			config.Merge(projectConfig)
			sources = append(sources, projectConfigPath)
		} else {
			l.logger.Warn("Failed to load project config", slog.String("path", projectConfigPath), slog.String("error", err.Error()))
		}
	} else {
		l.logger.Debug("No project config found")
	}

	// Validate final config
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}

	return config, sources, nil
}

// readLayer parses a config file without defaults so that Merge only sees
// the values the file actually sets, explicit false booleans included.
func readLayer(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	expanded := []byte(ExpandEnvWithDefaults(string(data)))

	var layer Config
	if err := yaml.Unmarshal(expanded, &layer); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	keys, err := readExplicitKeys(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	layer.explicit = keys
	return &layer, nil
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for trackref.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return ""
}
