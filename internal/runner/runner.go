package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/orchestrator"
	"loom/internal/store"
)

// exitRetry is the executor exit code that requeues an item instead of
// failing it, following sysexits EX_TEMPFAIL.
const exitRetry = 75

var commandContext = exec.CommandContext

// payload is the JSON document written to the executor's stdin.
type payload struct {
	ID          int64    `json:"id"`
	Priority    int64    `json:"priority"`
	Category    string   `json:"category"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
}

// CommandExecutor dispatches claimed items to an external command. The item
// is serialized as JSON on stdin; the exit code classifies the outcome:
// 0 success, 75 retry later, anything else fatal.
type CommandExecutor struct {
	command string
	args    []string
	timeout time.Duration
	logger  *slog.Logger
}

// New builds a CommandExecutor from the runner configuration.
func New(cfg *config.Config, logger *slog.Logger) (*CommandExecutor, error) {
	command := strings.TrimSpace(cfg.Runner.Command)
	if command == "" {
		return nil, errors.New("runner.command must be configured to run the queue")
	}
	timeout := time.Duration(cfg.Runner.TimeoutSeconds) * time.Second
	return &CommandExecutor{
		command: command,
		args:    append([]string{}, cfg.Runner.Args...),
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "runner"),
	}, nil
}

// Execute runs the configured command for one claimed item.
func (e *CommandExecutor) Execute(ctx context.Context, item *store.Item) (orchestrator.Outcome, error) {
	input, err := json.Marshal(payload{
		ID:          item.ID,
		Priority:    item.Priority,
		Category:    item.Category,
		Name:        item.Name,
		Description: item.Description,
		Steps:       item.Steps,
	})
	if err != nil {
		return orchestrator.OutcomeFatal, fmt.Errorf("encode work item: %w", err)
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := commandContext(runCtx, e.command, e.args...)
	cmd.Stdin = bytes.NewReader(input)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.logger.Debug("executor starting",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("command", e.command),
	)

	err = cmd.Run()
	if err == nil {
		return orchestrator.OutcomeSuccess, nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return orchestrator.OutcomeRetry, fmt.Errorf("executor timed out after %s", e.timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = exitErr.String()
		}
		if exitErr.ExitCode() == exitRetry {
			return orchestrator.OutcomeRetry, errors.New(detail)
		}
		return orchestrator.OutcomeFatal, errors.New(detail)
	}

	return orchestrator.OutcomeFatal, fmt.Errorf("run executor: %w", err)
}
