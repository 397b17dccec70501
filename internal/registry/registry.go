// Package registry reads spaces, projects, experiments and samples from the
// sample registry.
package registry

import (
	"context"

	"barcoder/pkg/domain"
)

// Registry is the read-only view of the sample registry used by barcoder.
// Project and experiment arguments are identifiers of the form /SPACE/CODE.
type Registry interface {
	UserSpaces(ctx context.Context, user string) ([]string, error)
	IsAdmin(ctx context.Context, user string) (bool, error)
	ProjectsOfSpace(ctx context.Context, space string) ([]domain.Project, error)
	ExperimentsOfProject(ctx context.Context, project string) ([]domain.Experiment, error)
	// SamplesOfProject returns every sample of project with its parent codes filled.
	SamplesOfProject(ctx context.Context, project string) ([]domain.SampleRecord, error)
	Experiment(ctx context.Context, identifier string) (domain.Experiment, error)
	// ParentMap maps each sample code to the codes of its parents.
	ParentMap(ctx context.Context, codes []string) (map[string][]string, error)
}
