package config

const (
	defaultWorkspaceDir      = "~/.local/share/loom"
	defaultLogDir            = "~/.local/share/loom/logs"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultMaxConcurrency    = 3
	defaultLockWaitTimeoutMS = 5000
	defaultClaimBatchSize    = 16
	defaultRunnerTimeout     = 3600
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			LogDir:       defaultLogDir,
		},
		Workflow: Workflow{
			MaxConcurrency:    defaultMaxConcurrency,
			LockWaitTimeoutMS: defaultLockWaitTimeoutMS,
			ClaimBatchSize:    defaultClaimBatchSize,
		},
		Runner: Runner{
			TimeoutSeconds: defaultRunnerTimeout,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
