package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"testing"

	"loom/internal/logging"
	"loom/internal/orchestrator"
	"loom/internal/store"
	"loom/internal/testsupport"
)

func newExecutor(t *testing.T, mode string) *CommandExecutor {
	t.Helper()

	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "LOOM_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})

	cfg := testsupport.NewConfig(t)
	cfg.Runner.Command = "work-on-item"
	executor, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("runner.New: %v", err)
	}
	return executor
}

func testItem() *store.Item {
	return &store.Item{
		ID:       3,
		Priority: 1,
		Category: "core",
		Name:     "resize images",
		Steps:    []string{"scan", "convert"},
	}
}

func TestNewRequiresCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := New(cfg, logging.NewNop()); err == nil {
		t.Fatal("expected error when runner.command is empty")
	}
}

func TestExecuteClassifiesSuccess(t *testing.T) {
	executor := newExecutor(t, "success")
	outcome, err := executor.Execute(context.Background(), testItem())
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if outcome != orchestrator.OutcomeSuccess {
		t.Fatalf("expected success outcome, got %v", outcome)
	}
}

func TestExecuteClassifiesRetry(t *testing.T) {
	executor := newExecutor(t, "retry")
	outcome, err := executor.Execute(context.Background(), testItem())
	if outcome != orchestrator.OutcomeRetry {
		t.Fatalf("expected retry outcome, got %v", outcome)
	}
	if err == nil {
		t.Fatal("expected detail error for retry outcome")
	}
}

func TestExecuteClassifiesFatalWithStderrDetail(t *testing.T) {
	executor := newExecutor(t, "fatal")
	outcome, err := executor.Execute(context.Background(), testItem())
	if outcome != orchestrator.OutcomeFatal {
		t.Fatalf("expected fatal outcome, got %v", outcome)
	}
	if err == nil || err.Error() != "cannot continue" {
		t.Fatalf("expected stderr detail, got %v", err)
	}
}

func TestExecutePassesItemJSONOnStdin(t *testing.T) {
	executor := newExecutor(t, "echo")
	outcome, err := executor.Execute(context.Background(), testItem())
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if outcome != orchestrator.OutcomeSuccess {
		t.Fatalf("expected success outcome, got %v", outcome)
	}
}

// TestHelperProcess is re-executed as the external runner command by the
// tests above. It is a no-op under normal test runs.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	switch os.Getenv("LOOM_HELPER_MODE") {
	case "success":
		os.Exit(0)
	case "retry":
		fmt.Fprintln(os.Stderr, "temporarily unavailable")
		os.Exit(75)
	case "fatal":
		fmt.Fprintln(os.Stderr, "cannot continue")
		os.Exit(1)
	case "echo":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read stdin:", err)
			os.Exit(1)
		}
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			fmt.Fprintln(os.Stderr, "decode stdin:", err)
			os.Exit(1)
		}
		if decoded["name"] != "resize images" {
			fmt.Fprintln(os.Stderr, "unexpected payload:", string(data))
			os.Exit(1)
		}
		os.Exit(0)
	default:
		os.Exit(1)
	}
}
