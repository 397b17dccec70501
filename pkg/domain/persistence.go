package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound reports a missing directory or registry entity.
type ErrNotFound struct {
	Entity string
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IsNotFound reports whether err wraps an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// Directory is the relational store of projects, people, printers and label
// usage counts. Implementations must make AddLabelCount an atomic increment.
type Directory interface {
	ProjectName(ctx context.Context, projectIdentifier string) (string, error)
	ProjectID(ctx context.Context, projectIdentifier string) (int, error)
	AddProject(ctx context.Context, projectIdentifier, shortTitle string) (int, error)
	AddExperiment(ctx context.Context, experimentIdentifier string) (int, error)

	AddPerson(ctx context.Context, person Person) (int, error)
	AddAffiliation(ctx context.Context, personID int, affiliation Affiliation, occupation string) (int, error)
	AddPersonToProject(ctx context.Context, projectID, personID int, role string) error
	AddPersonToExperiment(ctx context.Context, experimentID, personID int, role string) error
	PersonForProject(ctx context.Context, projectIdentifier, role string) (Person, error)
	PersonAffiliation(ctx context.Context, personID int) (string, error)
	PrincipalInvestigators(ctx context.Context) (map[string]int, error)

	AddPrinter(ctx context.Context, printer Printer) (int, error)
	AssociatePrinter(ctx context.Context, printerID, projectID int) error
	PrintersForProject(ctx context.Context, project string, userGroups []string) ([]Printer, error)

	AddLabelCount(ctx context.Context, count LabelCount) error
	LabelCounts(ctx context.Context) ([]LabelCount, error)

	Close() error
}
