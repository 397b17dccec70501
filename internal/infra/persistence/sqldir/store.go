// Package sqldir implements domain.Directory on a SQL database through sqlx.
// Queries are written with ? placeholders and rebound for the dialect.
package sqldir

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"gopkg.in/guregu/null.v3"

	"barcoder/internal/infra/persistence/sqlbundle"
	"barcoder/pkg/domain"
)

var _ domain.Directory = (*Store)(nil)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know by default.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Store is a SQL backed directory.
type Store struct {
	db *sqlx.DB
}

// New wraps db. The schema is not touched; call Migrate.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate applies ddl statement by statement.
func (s *Store) Migrate(ctx context.Context, ddl string) error {
	for _, stmt := range sqlbundle.SplitStatements(ddl) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// DB exposes the underlying handle for tests.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) get(ctx context.Context, q sqlx.QueryerContext, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, q, dest, s.db.Rebind(query), args...)
}

func (s *Store) exec(ctx context.Context, e sqlx.ExecerContext, query string, args ...any) error {
	_, err := e.ExecContext(ctx, s.db.Rebind(query), args...)
	return err
}

// inTx runs fn in a transaction that is rolled back unless fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound{Entity: entity, ID: id}
	}
	return err
}

func nullable(s string) null.String { return null.NewString(s, s != "") }

func (s *Store) ProjectName(ctx context.Context, projectIdentifier string) (string, error) {
	var title null.String
	err := s.get(ctx, s.db, &title, `SELECT short_title FROM projects WHERE openbis_project_identifier = ?`, projectIdentifier)
	if err != nil {
		return "", notFound(err, "project", projectIdentifier)
	}
	return title.String, nil
}

func (s *Store) ProjectID(ctx context.Context, projectIdentifier string) (int, error) {
	var id int
	err := s.get(ctx, s.db, &id, `SELECT id FROM projects WHERE openbis_project_identifier = ?`, projectIdentifier)
	if err != nil {
		return 0, notFound(err, "project", projectIdentifier)
	}
	return id, nil
}

// AddProject returns the id of the project, inserting it when missing.
func (s *Store) AddProject(ctx context.Context, projectIdentifier, shortTitle string) (int, error) {
	if id, err := s.ProjectID(ctx, projectIdentifier); err == nil || !domain.IsNotFound(err) {
		return id, err
	}
	var id int
	err := s.get(ctx, s.db, &id, `INSERT INTO projects (openbis_project_identifier, short_title) VALUES (?, ?) RETURNING id`,
		projectIdentifier, nullable(shortTitle))
	if err != nil {
		return 0, fmt.Errorf("insert project %s: %w", projectIdentifier, err)
	}
	return id, nil
}

// AddExperiment returns the id of the experiment, inserting it when missing.
func (s *Store) AddExperiment(ctx context.Context, experimentIdentifier string) (int, error) {
	var id int
	err := s.get(ctx, s.db, &id, `SELECT id FROM experiments WHERE openbis_experiment_identifier = ?`, experimentIdentifier)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	err = s.get(ctx, s.db, &id, `INSERT INTO experiments (openbis_experiment_identifier) VALUES (?) RETURNING id`, experimentIdentifier)
	if err != nil {
		return 0, fmt.Errorf("insert experiment %s: %w", experimentIdentifier, err)
	}
	return id, nil
}

func (s *Store) AddPerson(ctx context.Context, p domain.Person) (int, error) {
	var id int
	err := s.get(ctx, s.db, &id, `INSERT INTO persons (username, title, first_name, family_name, email, phone, active)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		nullable(p.Username), nullable(p.Title), p.FirstName, p.LastName, nullable(p.Email), nullable(p.Phone), true)
	if err != nil {
		return 0, fmt.Errorf("insert person %s: %w", p.FullName(), err)
	}
	return id, nil
}

func (s *Store) AddAffiliation(ctx context.Context, personID int, a domain.Affiliation, occupation string) (int, error) {
	var id int
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		err := s.get(ctx, tx, &id, `INSERT INTO organizations
			(group_name, group_acronym, umbrella_organization, institute, faculty, street, zip_code, city, country, webpage)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			nullable(a.GroupName), nullable(a.Acronym), nullable(a.Organization), nullable(a.Institute), nullable(a.Faculty),
			nullable(a.Street), nullable(a.ZipCode), nullable(a.City), nullable(a.Country), nullable(a.Webpage))
		if err != nil {
			return fmt.Errorf("insert organization: %w", err)
		}
		return s.exec(ctx, tx, `INSERT INTO persons_organizations (person_id, organization_id, occupation) VALUES (?, ?, ?)`,
			personID, id, nullable(occupation))
	})
	return id, err
}

func (s *Store) AddPersonToProject(ctx context.Context, projectID, personID int, role string) error {
	return s.exec(ctx, s.db, `INSERT INTO projects_persons (project_id, person_id, project_role) VALUES (?, ?, ?)
		ON CONFLICT (project_id, person_id, project_role) DO NOTHING`, projectID, personID, role)
}

func (s *Store) AddPersonToExperiment(ctx context.Context, experimentID, personID int, role string) error {
	if experimentID == 0 || personID == 0 {
		return nil
	}
	return s.exec(ctx, s.db, `INSERT INTO experiments_persons (experiment_id, person_id, experiment_role) VALUES (?, ?, ?)
		ON CONFLICT (experiment_id, person_id, experiment_role) DO NOTHING`, experimentID, personID, role)
}
