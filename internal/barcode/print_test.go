package barcode

import (
	"context"
	"errors"
	"strings"
	"testing"

	"barcoder/pkg/domain"
)

type usageSpy struct {
	counts []domain.LabelCount
	err    error
}

func (u *usageSpy) AddLabelCount(_ context.Context, c domain.LabelCount) error {
	u.counts = append(u.counts, c)
	return u.err
}

var testPrinter = domain.Printer{Location: "LAB", Name: "TSC_1", Host: "printserv.example.org"}

func preparedCreator(t *testing.T, runner *fakeRunner) *Creator {
	t.Helper()
	paths := testPaths(t)
	write := scriptWriter(t, paths)
	runner.fn = write
	c := NewCreator(paths, WithRunner(runner), WithClock(fixedClock))
	if _, err := c.PrepareTubes(context.Background(), beans("QABCD001AB", "QABCD002AC"), nil); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	return c
}

func TestPrintRecordsUsage(t *testing.T) {
	runner := &fakeRunner{}
	c := preparedCreator(t, runner)
	runner.fn = nil
	usage := &usageSpy{}
	res := c.Print(context.Background(), PrintRequest{Printer: testPrinter, Space: "SPACE", Project: "QABCD", User: "alice"}, usage)
	if !res.Success || res.Labels != 2 || !res.Recorded {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(usage.counts) != 1 || usage.counts[0].NumPrinted != 2 || usage.counts[0].UserName != "alice" {
		t.Fatalf("unexpected usage %+v", usage.counts)
	}
	calls := runner.Calls()
	last := calls[len(calls)-1]
	if last.Name != "bash" || last.Args[0] != "-c" {
		t.Fatalf("unexpected print command %+v", last)
	}
	if !strings.HasPrefix(last.Args[1], "lpr -H 'printserv.example.org' -P 'TSC_1' '") || !strings.HasSuffix(last.Args[1], "/*.pdf") {
		t.Fatalf("unexpected print line %q", last.Args[1])
	}
}

func TestPrintFailureIsReportedNotReturned(t *testing.T) {
	runner := &fakeRunner{}
	c := preparedCreator(t, runner)
	runner.fn = func(_ context.Context, cmd Command) (Output, error) {
		return Output{}, &CommandError{Argv: cmd.Argv(), ExitCode: 1, Stderr: "lpr: unknown printer"}
	}
	usage := &usageSpy{}
	res := c.Print(context.Background(), PrintRequest{Printer: testPrinter, Space: "SPACE", Project: "QABCD", User: "bob"}, usage)
	if res.Success {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(res.Message, "unknown printer") {
		t.Fatalf("expected diagnostic message, got %q", res.Message)
	}
	if len(usage.counts) != 1 || usage.counts[0].NumPrinted != 0 {
		t.Fatalf("expected best effort zero count, got %+v", usage.counts)
	}
}

func TestPrintAccountingFailureKeepsSuccess(t *testing.T) {
	runner := &fakeRunner{}
	c := preparedCreator(t, runner)
	runner.fn = nil
	usage := &usageSpy{err: errors.New("db down")}
	res := c.Print(context.Background(), PrintRequest{Printer: testPrinter}, usage)
	if !res.Success || res.Recorded {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestPrintWithoutBatch(t *testing.T) {
	c := NewCreator(testPaths(t), WithRunner(&fakeRunner{}))
	res := c.Print(context.Background(), PrintRequest{Printer: testPrinter}, nil)
	if res.Success || res.Message == "" {
		t.Fatalf("expected failure without batch, got %+v", res)
	}
}

func TestShellQuote(t *testing.T) {
	if got := shellQuote("a'b"); got != `'a'\''b'` {
		t.Fatalf("unexpected quoting %s", got)
	}
}
