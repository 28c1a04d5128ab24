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
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		return errors.New("paths.workspace_dir must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxConcurrency < 1 {
		return fmt.Errorf("workflow.max_concurrency must be at least 1, got %d", c.Workflow.MaxConcurrency)
	}
	if c.Workflow.LockWaitTimeoutMS <= 0 {
		return fmt.Errorf("workflow.lock_wait_timeout_ms must be positive, got %d", c.Workflow.LockWaitTimeoutMS)
	}
	if c.Workflow.ClaimBatchSize < 1 {
		return fmt.Errorf("workflow.claim_batch_size must be at least 1, got %d", c.Workflow.ClaimBatchSize)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
