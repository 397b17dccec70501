package domain

import (
	"strings"
	"time"
)

// SummaryDateLayout formats registration dates in summary keys (yy-MM-dd).
const SummaryDateLayout = "06-01-02"

// SummaryKey identifies one experiment summary within a project selection.
type SummaryKey struct {
	Date         string `json:"date"`
	ExperimentID string `json:"experiment_id"`
}

// KeyFor returns the grouping key of a sample.
func KeyFor(s SampleRecord) SummaryKey {
	return SummaryKey{Date: s.RegistrationDate.Format(SummaryDateLayout), ExperimentID: s.ExperimentID}
}

// ExperimentSummary groups the samples of one experiment registered on one day.
type ExperimentSummary struct {
	BioType      string         `json:"bio_type"`
	Amount       int            `json:"amount"`
	Name         string         `json:"name"`
	ExperimentID string         `json:"experiment_id"`
	Date         string         `json:"date"`
	Samples      []SampleRecord `json:"samples,omitempty"`
}

// NewExperimentSummary starts a summary for its first sample.
func NewExperimentSummary(bioType, name string, first SampleRecord) *ExperimentSummary {
	return &ExperimentSummary{
		BioType:      bioType,
		Amount:       1,
		Name:         name,
		ExperimentID: first.ExperimentID,
		Date:         first.RegistrationDate.Format(SummaryDateLayout),
		Samples:      []SampleRecord{first},
	}
}

// Key returns the grouping key.
func (e *ExperimentSummary) Key() SummaryKey {
	return SummaryKey{Date: e.Date, ExperimentID: e.ExperimentID}
}

// Increment bumps the sample count.
func (e *ExperimentSummary) Increment() { e.Amount++ }

// AddSample appends a sample to the group.
func (e *ExperimentSummary) AddSample(s SampleRecord) { e.Samples = append(e.Samples, s) }

// ExperimentCode returns the last segment of the experiment identifier.
func (e *ExperimentSummary) ExperimentCode() string {
	id := e.ExperimentID
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// PrintBatch is a timestamped directory of collated label files in print order.
type PrintBatch struct {
	Dir       string    `json:"dir"`
	Files     []string  `json:"files"`
	CreatedAt time.Time `json:"created_at"`
}

// Count is the number of labels available for printing.
func (b *PrintBatch) Count() int {
	if b == nil {
		return 0
	}
	return len(b.Files)
}
