package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
}

// Model describes the classifier served behind a KServe v2 compatible
// inference endpoint and how frames are preprocessed for it.
type Model struct {
	ServerURL             string    `toml:"server_url"`
	Name                  string    `toml:"name"`
	Version               string    `toml:"version"`
	LabelsPath            string    `toml:"labels_path"`
	ImageSize             int       `toml:"image_size"`
	Mean                  []float64 `toml:"mean"`
	Std                   []float64 `toml:"std"`
	RequestTimeoutSeconds int       `toml:"request_timeout_seconds"`
	LoadTimeoutSeconds    int       `toml:"load_timeout_seconds"`
}

// FFmpeg contains frame extraction settings.
type FFmpeg struct {
	Binary string `toml:"binary"`
}

// Workers bounds how many blocking jobs run at once.
type Workers struct {
	Extraction int `toml:"extraction"`
	Inference  int `toml:"inference"`
}

// Upload limits accepted request bodies.
type Upload struct {
	MaxBytes int64 `toml:"max_bytes"`
}

// Staging controls transient artifact housekeeping.
type Staging struct {
	StaleAfterMinutes int `toml:"stale_after_minutes"`
	MinFreeMiB        int `toml:"min_free_mib"`
}

// History controls the request outcome log.
type History struct {
	Enabled bool `toml:"enabled"`
	Retain  int  `toml:"retain"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for VidiSnap.
//
// Configuration sections by subsystem:
//   - Paths: staging/log directories and API bind address
//   - Model: inference server, label set and preprocessing
//   - FFmpeg: frame extraction binary
//   - Workers: bounded pool sizes for extraction and inference
//   - Upload: request size limit
//   - Staging: stale artifact sweep and free space floor
//   - History: request outcome log
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Model   Model   `toml:"model"`
	FFmpeg  FFmpeg  `toml:"ffmpeg"`
	Workers Workers `toml:"workers"`
	Upload  Upload  `toml:"upload"`
	Staging Staging `toml:"staging"`
	History History `toml:"history"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("vidisnap.toml")
	if err != nil {
		return "", false, err
	}

	for _, candidate := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the staging and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for frame extraction.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.FFmpeg.Binary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// HistoryPath returns the location of the request history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.LogDir, "history.db")
}

// LockPath returns the single-instance lock file guarding the staging directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StagingDir, ".vidisnap.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
