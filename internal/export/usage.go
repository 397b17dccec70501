// Package export renders usage reports and sample sheets as downloadable
// files.
package export

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"barcoder/pkg/domain"
)

// WriteUsageCSV writes one row per printer, project and user with a header.
func WriteUsageCSV(w io.Writer, counts []domain.LabelCount) error {
	if counts == nil {
		counts = []domain.LabelCount{}
	}
	if err := gocsv.Marshal(&counts, w); err != nil {
		return fmt.Errorf("write usage csv: %w", err)
	}
	return nil
}

// ReadUsageCSV parses a report written by WriteUsageCSV.
func ReadUsageCSV(r io.Reader) ([]domain.LabelCount, error) {
	var out []domain.LabelCount
	if err := gocsv.Unmarshal(r, &out); err != nil {
		return nil, fmt.Errorf("read usage csv: %w", err)
	}
	return out, nil
}
