package toolexec

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
)

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no sh available")
	}
	return sh
}

func TestRunCapturesOutput(t *testing.T) {
	sh := requireShell(t)

	out, err := Run(context.Background(), sh, WithArgs("-c", "echo hello; echo oops 1>&2"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "hello") || !strings.Contains(out, "oops") {
		t.Errorf("output %q missing stdout or stderr", out)
	}
}

func TestRunWorkingDirectory(t *testing.T) {
	sh := requireShell(t)
	dir := t.TempDir()

	out, err := Run(context.Background(), sh, WithArgs("-c", "pwd"), WithDir(dir))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, dir[strings.LastIndex(dir, "/")+1:]) {
		t.Errorf("pwd %q not inside %q", out, dir)
	}
}

func TestRunFailure(t *testing.T) {
	sh := requireShell(t)

	_, err := Run(context.Background(), sh, WithArgs("-c", "echo broken; exit 3"))
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if !strings.Contains(exitErr.Output, "broken") {
		t.Errorf("output %q not captured", exitErr.Output)
	}
	if !strings.Contains(exitErr.Error(), "broken") {
		t.Errorf("error %q does not include tool output", exitErr.Error())
	}
}

func TestRunMissingTool(t *testing.T) {
	_, err := Run(context.Background(), "definitely-not-a-real-tool-name")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	sh := requireShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Run(ctx, sh, WithArgs("-c", "sleep 5")); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
