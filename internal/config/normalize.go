package config

import (
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strings"
)

func (c *Config) normalize() error {
	c.applyEnv()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeModel(); err != nil {
		return err
	}
	c.normalizeFFmpeg()
	c.normalizeWorkers()
	c.normalizeLimits()
	c.normalizeLogging()
	return nil
}

// applyEnv lets deployment environments override the most commonly
// changed values without editing the TOML file.
func (c *Config) applyEnv() {
	if value, ok := os.LookupEnv("VIDISNAP_MODEL_URL"); ok && strings.TrimSpace(value) != "" {
		c.Model.ServerURL = value
	}
	if value, ok := os.LookupEnv("VIDISNAP_API_BIND"); ok && strings.TrimSpace(value) != "" {
		c.Paths.APIBind = value
	}
	if value, ok := os.LookupEnv("VIDISNAP_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeModel() error {
	c.Model.ServerURL = strings.TrimRight(strings.TrimSpace(c.Model.ServerURL), "/")
	if c.Model.ServerURL == "" {
		c.Model.ServerURL = defaultModelServerURL
	}
	if parsed, err := url.Parse(c.Model.ServerURL); err != nil {
		return fmt.Errorf("model.server_url: %w", err)
	} else if parsed.Scheme == "" {
		return fmt.Errorf("model.server_url: %q is missing a scheme", c.Model.ServerURL)
	}
	c.Model.Name = strings.TrimSpace(c.Model.Name)
	if c.Model.Name == "" {
		c.Model.Name = defaultModelName
	}
	c.Model.Version = strings.TrimSpace(c.Model.Version)
	if strings.TrimSpace(c.Model.LabelsPath) != "" {
		expanded, err := expandPath(strings.TrimSpace(c.Model.LabelsPath))
		if err != nil {
			return fmt.Errorf("model.labels_path: %w", err)
		}
		c.Model.LabelsPath = expanded
	}
	if c.Model.ImageSize <= 0 {
		c.Model.ImageSize = defaultImageSize
	}
	if len(c.Model.Mean) == 0 {
		c.Model.Mean = []float64{0.5, 0.5, 0.5}
	}
	if len(c.Model.Std) == 0 {
		c.Model.Std = []float64{0.5, 0.5, 0.5}
	}
	if c.Model.RequestTimeoutSeconds <= 0 {
		c.Model.RequestTimeoutSeconds = defaultModelRequestTimeout
	}
	if c.Model.LoadTimeoutSeconds <= 0 {
		c.Model.LoadTimeoutSeconds = defaultModelLoadTimeout
	}
	return nil
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.Binary = strings.TrimSpace(c.FFmpeg.Binary)
	if c.FFmpeg.Binary == "" {
		c.FFmpeg.Binary = defaultFFmpegBinary
	}
}

func (c *Config) normalizeWorkers() {
	if c.Workers.Extraction <= 0 {
		c.Workers.Extraction = max(runtime.NumCPU(), 1)
	}
	if c.Workers.Inference <= 0 {
		c.Workers.Inference = max(runtime.NumCPU()/2, 1)
	}
}

func (c *Config) normalizeLimits() {
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = defaultUploadMaxBytes
	}
	if c.Staging.StaleAfterMinutes < 0 {
		c.Staging.StaleAfterMinutes = 0
	}
	if c.Staging.MinFreeMiB < 0 {
		c.Staging.MinFreeMiB = 0
	}
	if c.History.Retain < 0 {
		c.History.Retain = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
