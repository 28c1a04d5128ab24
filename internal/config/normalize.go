package config

import (
	"path/filepath"
	"strings"
)

// Normalize expands path fields and fills derived defaults. It must run before
// Validate so validation sees the final values.
func (c *Config) Normalize() error {
	var err error
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return err
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" && c.Paths.WorkspaceDir != "" {
		c.Paths.LogDir = filepath.Join(c.Paths.WorkspaceDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	return nil
}
