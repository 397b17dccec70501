package barcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"barcoder/pkg/domain"
)

// Logger is the structured logger the creator reports on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Counter receives item counts such as script runs.
type Counter interface {
	Add(ctx context.Context, counter string, n int)
}

// Counter names reported by the creator.
const (
	CounterScriptRuns     = "script_runs"
	CounterScriptFailures = "script_failures"
	CounterLabelsPrinted  = "labels_printed"
)

// UsageRecorder persists printed label counts.
type UsageRecorder interface {
	AddLabelCount(ctx context.Context, count domain.LabelCount) error
}

// Stage is a step of label preparation.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageScanning   Stage = "scanning"
	StageGenerating Stage = "generating"
	StageCollating  Stage = "collating"
	StageReady      Stage = "ready"
)

// Progress is reported while preparing labels.
type Progress struct {
	Stage     Stage
	Completed int
	Total     int
}

// Fraction is Completed/Total, or 1 once nothing remains to be generated.
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		if p.Stage == StageReady || p.Stage == StageCollating {
			return 1
		}
		return 0
	}
	return float64(p.Completed) / float64(p.Total)
}

// ProgressFunc receives progress updates on the preparing goroutine.
type ProgressFunc func(Progress)

// PrepareResult summarises one preparation run.
type PrepareResult struct {
	Total     int                `json:"total"`
	Missing   int                `json:"missing"`
	Generated int                `json:"generated"`
	Batch     *domain.PrintBatch `json:"batch,omitempty"`
	// Failures collects per item script and copy errors; the batch is still ready.
	Failures error `json:"-"`
}

// FailureMessages flattens Failures for reporting.
func (r PrepareResult) FailureMessages() []string {
	if r.Failures == nil {
		return nil
	}
	if merr, ok := r.Failures.(*multierror.Error); ok {
		out := make([]string, 0, len(merr.Errors))
		for _, err := range merr.Errors {
			out = append(out, err.Error())
		}
		return out
	}
	return []string{r.Failures.Error()}
}

// Option configures a Creator.
type Option func(*Creator)

// WithRunner replaces the subprocess runner.
func WithRunner(r Runner) Option { return func(c *Creator) { c.runner = r } }

// WithLogger sets the logger.
func WithLogger(l Logger) Option { return func(c *Creator) { c.logger = l } }

// WithCounter sets the item counter.
func WithCounter(m Counter) Option { return func(c *Creator) { c.counter = m } }

// WithClock overrides time.Now, used for batch and sheet names.
func WithClock(now func() time.Time) Option { return func(c *Creator) { c.now = now } }

// Creator generates label artifacts and prints batches. It holds one
// current tube batch: preparing a new batch replaces it and Print reads it.
type Creator struct {
	paths   Paths
	runner  Runner
	logger  Logger
	counter Counter
	now     func() time.Time

	mu    sync.Mutex
	batch *domain.PrintBatch
}

// NewCreator builds a creator over paths.
func NewCreator(paths Paths, opts ...Option) *Creator {
	c := &Creator{
		paths:  paths.WithDefaults(),
		runner: ExecRunner{},
		logger: nopLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.counter == nil {
		c.counter = nopCounter{}
	}
	return c
}

// Paths returns the effective paths.
func (c *Creator) Paths() Paths { return c.paths }

// Exists reports whether the artifact of type t for code is on disk.
func (c *Creator) Exists(code string, t FileType) bool {
	info, err := os.Stat(c.paths.Artifact(code, t))
	return err == nil && info.Mode().IsRegular()
}

// CurrentBatch returns a copy of the current tube batch, if any.
func (c *Creator) CurrentBatch() (domain.PrintBatch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.batch == nil {
		return domain.PrintBatch{}, false
	}
	b := *c.batch
	b.Files = append([]string(nil), c.batch.Files...)
	return b, true
}

// PrepareTubes generates missing tube sticker PDFs and collates all expected
// PDFs of beans, in order, into a fresh batch directory that becomes the
// current batch. Script and copy failures are collected, not returned; the
// error is non-nil only when ctx ends or the batch cannot be created.
func (c *Creator) PrepareTubes(ctx context.Context, beans []domain.BarcodeBean, progress ProgressFunc) (PrepareResult, error) {
	if len(beans) == 0 {
		return PrepareResult{}, fmt.Errorf("no samples to prepare")
	}
	escaped := domain.EscapeBeans(beans)
	res, failures, err := c.generate(ctx, escaped, PDF, progress, func(b domain.BarcodeBean) Command {
		return c.script(TubeScript, b.Code(), b.CodedString(), orBlank(b.FirstInfo()), orBlank(b.AltInfo()))
	})
	if err != nil {
		return res, err
	}

	report(progress, Progress{Stage: StageCollating, Completed: res.Missing, Total: res.Missing})
	batch, copyFailures, err := c.collate(escaped)
	if err != nil {
		return res, err
	}
	failures = multierror.Append(failures, copyFailures...)
	res.Batch = batch
	res.Failures = failures.ErrorOrNil()

	c.mu.Lock()
	c.batch = batch
	c.mu.Unlock()

	report(progress, Progress{Stage: StageReady, Completed: res.Missing, Total: res.Missing})
	c.logger.Info("tube batch ready", "dir", batch.Dir, "labels", batch.Count(), "generated", res.Generated, "missing", res.Missing)
	return res, nil
}

// PrepareSheetBarcodes generates the missing PNG codes used on sample sheets.
func (c *Creator) PrepareSheetBarcodes(ctx context.Context, beans []domain.BarcodeBean, progress ProgressFunc) (PrepareResult, error) {
	res, failures, err := c.generate(ctx, beans, PNG, progress, func(b domain.BarcodeBean) Command {
		return c.script(SheetScript, b.Code())
	})
	if err != nil {
		return res, err
	}
	res.Failures = failures.ErrorOrNil()
	report(progress, Progress{Stage: StageReady, Completed: res.Missing, Total: res.Missing})
	return res, nil
}

func (c *Creator) generate(ctx context.Context, beans []domain.BarcodeBean, t FileType, progress ProgressFunc, build func(domain.BarcodeBean) Command) (PrepareResult, *multierror.Error, error) {
	report(progress, Progress{Stage: StageScanning, Total: len(beans)})
	var missing []domain.BarcodeBean
	for _, b := range beans {
		if !c.Exists(b.Code(), t) {
			missing = append(missing, b)
		}
	}
	res := PrepareResult{Total: len(beans), Missing: len(missing)}
	var failures *multierror.Error
	for i, b := range missing {
		if err := ctx.Err(); err != nil {
			return res, failures, err
		}
		cmd := build(b)
		if err := c.run(ctx, cmd); err != nil {
			if ctx.Err() != nil {
				return res, failures, ctx.Err()
			}
			failures = multierror.Append(failures, fmt.Errorf("%s %s: %w", t, b.Code(), err))
			c.counter.Add(ctx, CounterScriptFailures, 1)
		} else {
			res.Generated++
		}
		c.counter.Add(ctx, CounterScriptRuns, 1)
		report(progress, Progress{Stage: StageGenerating, Completed: i + 1, Total: len(missing)})
	}
	return res, failures, nil
}

// collate copies <project>/pdf/<code>.pdf into <project>/<timestamp>/NNNN_<code>.pdf.
func (c *Creator) collate(beans []domain.BarcodeBean) (*domain.PrintBatch, []error, error) {
	now := c.now()
	dir, err := freshDir(c.paths.ProjectDir(beans[0].Code()), batchStamp(now))
	if err != nil {
		return nil, nil, fmt.Errorf("create batch dir: %w", err)
	}
	batch := &domain.PrintBatch{Dir: dir, CreatedAt: now.UTC()}
	var failures []error
	for i, b := range beans {
		name := fmt.Sprintf("%04d_%s.pdf", i+1, b.Code())
		src := c.paths.Artifact(b.Code(), PDF)
		dst := filepath.Join(dir, name)
		if err := copyFile(src, dst); err != nil {
			c.logger.Error("could not copy label into batch", "src", src, "dst", dst, "error", err)
			failures = append(failures, fmt.Errorf("copy %s: %w", b.Code(), err))
			continue
		}
		batch.Files = append(batch.Files, name)
	}
	return batch, failures, nil
}

// run executes cmd under the configured timeout and logs failures with
// their exit status, stderr and command line.
func (c *Creator) run(ctx context.Context, cmd Command) error {
	ctx, cancel := context.WithTimeout(ctx, c.paths.CommandTimeout)
	defer cancel()
	c.logger.Debug("running command", "argv", cmd.Argv())
	out, err := c.runner.Run(ctx, cmd)
	if err == nil {
		return nil
	}
	status, stderr := -1, out.Stderr
	var cerr *CommandError
	if errors.As(err, &cerr) {
		status = cerr.ExitCode
		if stderr == "" {
			stderr = cerr.Stderr
		}
	}
	c.logger.Error("command failed", "status", status, "stderr", stderr, "argv", cmd.Argv(), "error", err)
	return err
}

func (c *Creator) script(name string, args ...string) Command {
	return Command{
		Name:    c.paths.Interpreter,
		Args:    append([]string{c.paths.Script(name)}, args...),
		PathEnv: c.paths.PathEnv,
	}
}

// batchStamp renders t to the millisecond without separators, e.g. 20240305142501123.
func batchStamp(t time.Time) string {
	s := t.Format("20060102150405.000")
	return strings.Replace(s, ".", "", 1)
}

// freshDir creates parent/name, or parent/name_N when that already exists,
// and returns the created path. An existing batch is never reused.
func freshDir(parent, name string) (string, error) {
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", err
	}
	dir := filepath.Join(parent, name)
	for n := 2; ; n++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
		dir = filepath.Join(parent, fmt.Sprintf("%s_%d", name, n))
	}
}

func orBlank(s string) string {
	if s == "" {
		return " "
	}
	return s
}

func report(fn ProgressFunc, p Progress) {
	if fn != nil {
		fn(p)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 -- paths derive from the configured results tree
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst) // #nosec G304
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type nopCounter struct{}

func (nopCounter) Add(context.Context, string, int) {}
