package barcode

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"
)

func TestExecRunnerReportsExitStatus(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	_, err := ExecRunner{}.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo broken >&2; exit 3"}})
	var cerr *CommandError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if cerr.ExitCode != 3 || cerr.Stderr != "broken\n" || cerr.Argv[0] != "sh" {
		t.Fatalf("unexpected error %+v", cerr)
	}
}

func TestExecRunnerCapturesOutput(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	out, err := ExecRunner{}.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo ok"}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Stdout != "ok\n" {
		t.Fatalf("unexpected stdout %q", out.Stdout)
	}
}

func TestExecRunnerKillsOnDeadline(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := ExecRunner{}.Run(ctx, Command{Name: "sleep", Args: []string{"5"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("process was not killed")
	}
}

func TestPathsDefaults(t *testing.T) {
	p := Paths{Results: "/data/results"}.WithDefaults()
	if p.Interpreter != "python2" || p.PrintCmd != "lpr" || p.ZipCmd != "zip" || p.Shell != "bash" || p.CommandTimeout != DefaultCommandTimeout {
		t.Fatalf("unexpected defaults %+v", p)
	}
	if got := p.Artifact("QABCD001AB", PDF); got != "/data/results/QABCD/pdf/QABCD001AB.pdf" {
		t.Fatalf("unexpected artifact path %s", got)
	}
}
