package core

import (
	"context"
	"sort"

	"barcoder/pkg/domain"
)

// ExperimentLookup resolves registry experiments by identifier.
type ExperimentLookup interface {
	Experiment(ctx context.Context, identifier string) (domain.Experiment, error)
}

// Aggregator groups project samples into per experiment, per day summaries.
type Aggregator struct {
	lookup ExperimentLookup
	logger Logger
}

// NewAggregator builds an aggregator. lookup is consulted for experiments
// missing from the map handed to Aggregate.
func NewAggregator(lookup ExperimentLookup, logger Logger) *Aggregator {
	return &Aggregator{lookup: lookup, logger: orNop(logger)}
}

// AggregateExperiments is Aggregate with a discarding logger.
func AggregateExperiments(ctx context.Context, samples []domain.SampleRecord, experiments map[string]domain.Experiment, lookup ExperimentLookup) []*domain.ExperimentSummary {
	return NewAggregator(lookup, nil).Aggregate(ctx, samples, experiments)
}

// Aggregate filters samples to barcode relevant types with valid codes and
// merges them by registration day and experiment. The result is unordered.
func (a *Aggregator) Aggregate(ctx context.Context, samples []domain.SampleRecord, experiments map[string]domain.Experiment) []*domain.ExperimentSummary {
	groups := make(map[domain.SummaryKey]*domain.ExperimentSummary)
	order := make([]domain.SummaryKey, 0)
	for _, s := range samples {
		if s.Type.IsUnknown() {
			a.logger.Warn("skipping sample of unmapped type", "sample", s.Code, "type", s.Type.String())
			continue
		}
		if !s.Type.IsBarcodeRelevant() || !domain.IsBarcode(s.Code) {
			continue
		}
		key := domain.KeyFor(s)
		if summary, ok := groups[key]; ok {
			summary.Increment()
			summary.AddSample(s)
			continue
		}
		exp, known := a.experiment(ctx, s.ExperimentID, experiments)
		name := s.ExperimentID
		if known {
			if n := exp.Property(domain.PropSecondaryName); n != "" {
				name = n
			}
		}
		groups[key] = domain.NewExperimentSummary(a.bioType(s, exp, known), name, s)
		order = append(order, key)
	}
	out := make([]*domain.ExperimentSummary, 0, len(order))
	for _, key := range order {
		out = append(out, groups[key])
	}
	return out
}

func (a *Aggregator) experiment(ctx context.Context, id string, experiments map[string]domain.Experiment) (domain.Experiment, bool) {
	if exp, ok := experiments[id]; ok {
		return exp, true
	}
	if a.lookup == nil || id == "" {
		return domain.Experiment{}, false
	}
	exp, err := a.lookup.Experiment(ctx, id)
	if err != nil {
		a.logger.Warn("experiment lookup failed", "experiment", id, "error", err)
		return domain.Experiment{}, false
	}
	if experiments != nil {
		experiments[id] = exp
	}
	return exp, true
}

// bioType labels a new summary from its first sample.
func (a *Aggregator) bioType(s domain.SampleRecord, exp domain.Experiment, known bool) string {
	switch s.Type.Kind() {
	case domain.KindBiologicalSample:
		return "Tissue Extracts"
	case domain.KindTestSample:
		return s.Property(domain.PropSampleType)
	case domain.KindNGSSingleRun:
		if v := exp.Property(domain.PropSequencingType); known && v != "" {
			return v + "seq"
		}
		return ""
	case domain.KindMHCLigandExtract:
		return "MHC Ligands"
	case domain.KindMSRun:
		return "Wash Runs"
	case domain.KindImagingRun:
		if v := exp.Property(domain.PropImagingModal); known && v != "" {
			return v + " runs"
		}
		return ""
	default:
		a.logger.Warn("no summary label for sample type", "sample", s.Code, "type", s.Type.String())
		return ""
	}
}

// SortSummaries orders summaries by date, then by name, for display.
func SortSummaries(summaries []*domain.ExperimentSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].Date != summaries[j].Date {
			return summaries[i].Date < summaries[j].Date
		}
		return summaries[i].Name < summaries[j].Name
	})
}
