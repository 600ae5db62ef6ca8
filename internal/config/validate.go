package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if !strings.Contains(c.Paths.APIBind, ":") {
		return fmt.Errorf("paths.api_bind %q must be host:port", c.Paths.APIBind)
	}
	return nil
}

func (c *Config) validateModel() error {
	if strings.TrimSpace(c.Model.LabelsPath) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("model.labels_path is required. Edit %s (create with 'vidisnap config init')", defaultPath)
	}
	if c.Model.ImageSize < 16 {
		return fmt.Errorf("model.image_size must be at least 16, got %d", c.Model.ImageSize)
	}
	if len(c.Model.Mean) != 3 {
		return fmt.Errorf("model.mean must have 3 channel values, got %d", len(c.Model.Mean))
	}
	if len(c.Model.Std) != 3 {
		return fmt.Errorf("model.std must have 3 channel values, got %d", len(c.Model.Std))
	}
	for i, v := range c.Model.Std {
		if v <= 0 {
			return fmt.Errorf("model.std[%d] must be positive", i)
		}
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.Extraction < 1 {
		return errors.New("workers.extraction must be at least 1")
	}
	if c.Workers.Inference < 1 {
		return errors.New("workers.inference must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json", "tint":
	default:
		return fmt.Errorf("logging.format %q is not supported (use auto, console, json, or tint)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	return nil
}
