package main

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vidisnap/internal/api"
	"vidisnap/internal/config"
)

const clientTimeout = 15 * time.Second

type commandContext struct {
	configFlag   *string
	serverFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, serverFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		serverFlag:   serverFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logLevel() string {
	if c.logLevelFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.logLevelFlag)
}

// serverAddress returns the --server flag, falling back to the configured
// bind address.
func (c *commandContext) serverAddress() (string, error) {
	if c.serverFlag != nil {
		if addr := strings.TrimSpace(*c.serverFlag); addr != "" {
			return addr, nil
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return cfg.Paths.APIBind, nil
}

func (c *commandContext) remoteRequested() bool {
	return c.serverFlag != nil && strings.TrimSpace(*c.serverFlag) != ""
}

func (c *commandContext) apiClient() (*api.Client, error) {
	addr, err := c.serverAddress()
	if err != nil {
		return nil, err
	}
	return api.NewClient(addr, clientTimeout)
}

func wrapClientError(err error, addr string) error {
	var statusErr *api.StatusError
	var netErr net.Error
	switch {
	case errors.As(err, &statusErr):
		return err
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: %s refused the connection; start it with `vidisnap serve`", addr)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("connect to daemon: %s timed out", addr)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
