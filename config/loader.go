package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "kdd.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/kdd"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger
	// workDir is where the project config search starts. Empty means the
	// process working directory.
	workDir string
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// WithWorkDir starts the project config search at dir.
func (l *Loader) WithWorkDir(dir string) *Loader {
	l.workDir = dir
	return l
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/kdd/config.yaml)
// 3. Project config (kdd.yaml in the working or a parent directory)
// 4. overrides, typically built from CLI flags
//
// The project root is project_root when set (relative to the project config
// file), else the directory holding kdd.yaml, else the git toplevel, else the
// working directory.
func (l *Loader) Load(overrides *Config) (*Config, error) {
	config := DefaultConfig()

	userConfigPath := l.userConfigPath()
	if userConfigPath != "" {
		if userConfig, err := LoadFromFile(userConfigPath); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
			config.Merge(userConfig)
		} else if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
		}
	}

	projectConfigPath := l.findProjectConfig()
	if projectConfigPath != "" {
		projectConfig, err := LoadFromFile(projectConfigPath)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
		if projectConfig.ProjectRoot != "" && !filepath.IsAbs(projectConfig.ProjectRoot) {
			projectConfig.ProjectRoot = filepath.Join(filepath.Dir(projectConfigPath), projectConfig.ProjectRoot)
		}
		projectConfig.Source = projectConfigPath
		config.Merge(projectConfig)
	} else {
		l.logger.Debug("No project config found")
	}

	config.Merge(overrides)

	if config.ProjectRoot == "" {
		switch {
		case projectConfigPath != "":
			config.ProjectRoot = filepath.Dir(projectConfigPath)
		default:
			if gitRoot := l.detectGitRoot(); gitRoot != "" {
				config.ProjectRoot = gitRoot
				l.logger.Debug("Auto-detected git root", slog.String("path", gitRoot))
			} else {
				config.ProjectRoot = l.cwd()
				l.logger.Debug("Using current directory as project root", slog.String("path", config.ProjectRoot))
			}
		}
	}
	if abs, err := filepath.Abs(config.ProjectRoot); err == nil {
		config.ProjectRoot = abs
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// InitProject writes a default kdd.yaml into dir. It refuses to overwrite
// an existing file unless force is set.
func (l *Loader) InitProject(dir string, force bool) (string, error) {
	path := filepath.Join(dir, ProjectConfigFile)
	if _, err := os.Stat(path); err == nil && !force {
		return path, os.ErrExist
	}
	if err := DefaultConfig().SaveToFile(path); err != nil {
		return "", err
	}
	l.logger.Info("Created project config", slog.String("path", path))
	return path, nil
}

func (l *Loader) cwd() string {
	if l.workDir != "" {
		return l.workDir
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for kdd.yaml in the working and parent directories
func (l *Loader) findProjectConfig() string {
	dir, err := filepath.Abs(l.cwd())
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// detectGitRoot finds the git repository root from the working directory
func (l *Loader) detectGitRoot() string {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = l.cwd()
	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}
