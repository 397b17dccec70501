package barcode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"barcoder/pkg/domain"
)

// PrintRequest names the printer and the account the labels are booked on.
type PrintRequest struct {
	Printer domain.Printer
	Space   string
	Project string
	User    string
}

// PrintResult reports a print run. Printer failures are not Go errors.
type PrintResult struct {
	Success  bool   `json:"success"`
	Labels   int    `json:"labels"`
	BatchDir string `json:"batch_dir"`
	Message  string `json:"message,omitempty"`
	// Recorded is true when the usage counter was updated.
	Recorded bool `json:"recorded"`
}

// PrintCommand builds the shell command printing every PDF of dir.
func (c *Creator) PrintCommand(printer domain.Printer, dir string) Command {
	line := fmt.Sprintf("%s -H %s -P %s %s/*.pdf",
		c.paths.PrintCmd, shellQuote(printer.Host), shellQuote(printer.Name), shellQuote(dir))
	return Command{Name: c.paths.Shell, Args: []string{"-c", line}, PathEnv: c.paths.PathEnv}
}

// Print sends the current batch to req.Printer. On success the number of
// files in the batch is added to the usage counter. On failure a zero count
// is recorded on a best effort basis and the result reports Success false.
func (c *Creator) Print(ctx context.Context, req PrintRequest, usage UsageRecorder) PrintResult {
	batch, ok := c.CurrentBatch()
	if !ok {
		return PrintResult{Message: "no prepared batch"}
	}
	res := PrintResult{BatchDir: batch.Dir}
	cmd := c.PrintCommand(req.Printer, batch.Dir)
	if err := c.run(ctx, cmd); err != nil {
		res.Message = err.Error()
		c.record(ctx, usage, req, 0)
		return res
	}
	res.Success = true
	res.Labels = countFiles(batch.Dir, c.logger)
	c.counter.Add(ctx, CounterLabelsPrinted, res.Labels)
	res.Recorded = c.record(ctx, usage, req, res.Labels)
	return res
}

func (c *Creator) record(ctx context.Context, usage UsageRecorder, req PrintRequest, n int) bool {
	if usage == nil {
		return false
	}
	err := usage.AddLabelCount(ctx, domain.LabelCount{
		PrinterName:     req.Printer.Name,
		PrinterLocation: req.Printer.Location,
		Space:           req.Space,
		Project:         req.Project,
		UserName:        req.User,
		NumPrinted:      n,
	})
	if err != nil {
		c.logger.Error("could not record printed labels", "printer", req.Printer.Name, "project", req.Project, "user", req.User, "error", err)
		return false
	}
	c.logger.Info("recorded printed labels", "printer", req.Printer.Name, "project", req.Project, "user", req.User, "labels", n)
	return true
}

// countFiles counts the label PDFs in dir, the authoritative batch size.
func countFiles(dir string, logger Logger) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Error("batch folder missing, no labels available", "dir", dir, "error", err)
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			n++
		}
	}
	return n
}
