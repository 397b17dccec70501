package sqldir

import (
	"context"
	"database/sql"
	"errors"

	"gopkg.in/guregu/null.v3"

	"barcoder/pkg/domain"
)

type personRow struct {
	ID        int         `db:"id"`
	Username  null.String `db:"username"`
	Title     null.String `db:"title"`
	FirstName string      `db:"first_name"`
	LastName  string      `db:"family_name"`
	Email     null.String `db:"email"`
	Phone     null.String `db:"phone"`
}

func (r personRow) person() domain.Person {
	return domain.Person{
		ID:        r.ID,
		Username:  r.Username.String,
		Title:     r.Title.String,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email.String,
		Phone:     r.Phone.String,
	}
}

type organizationRow struct {
	ID           int         `db:"id"`
	GroupName    null.String `db:"group_name"`
	Acronym      null.String `db:"group_acronym"`
	Organization null.String `db:"umbrella_organization"`
	Institute    null.String `db:"institute"`
	Faculty      null.String `db:"faculty"`
	Street       null.String `db:"street"`
	ZipCode      null.String `db:"zip_code"`
	City         null.String `db:"city"`
	Country      null.String `db:"country"`
	Webpage      null.String `db:"webpage"`
}

func (r organizationRow) affiliation() domain.Affiliation {
	return domain.Affiliation{
		ID:           r.ID,
		GroupName:    r.GroupName.String,
		Acronym:      r.Acronym.String,
		Organization: r.Organization.String,
		Institute:    r.Institute.String,
		Faculty:      r.Faculty.String,
		Street:       r.Street.String,
		ZipCode:      r.ZipCode.String,
		City:         r.City.String,
		Country:      r.Country.String,
		Webpage:      r.Webpage.String,
	}
}

// PersonForProject returns the person holding role in the project together
// with their first affiliation. When several people hold the role the most
// recently added one wins.
func (s *Store) PersonForProject(ctx context.Context, projectIdentifier, role string) (domain.Person, error) {
	var row personRow
	err := s.get(ctx, s.db, &row, `SELECT persons.id, persons.username, persons.title, persons.first_name,
			persons.family_name, persons.email, persons.phone
		FROM persons
		JOIN projects_persons ON persons.id = projects_persons.person_id
		JOIN projects ON projects_persons.project_id = projects.id
		WHERE projects.openbis_project_identifier = ? AND projects_persons.project_role = ?
		ORDER BY persons.id DESC LIMIT 1`, projectIdentifier, role)
	if err != nil {
		return domain.Person{}, notFound(err, role+" of project", projectIdentifier)
	}
	p := row.person()
	aff, err := s.affiliation(ctx, p.ID)
	switch {
	case err == nil:
		p.Affiliation = &aff
	case !errors.Is(err, sql.ErrNoRows):
		return p, err
	}
	return p, nil
}

func (s *Store) affiliation(ctx context.Context, personID int) (domain.Affiliation, error) {
	var row organizationRow
	err := s.get(ctx, s.db, &row, `SELECT organizations.id, organizations.group_name, organizations.group_acronym,
			organizations.umbrella_organization, organizations.institute, organizations.faculty,
			organizations.street, organizations.zip_code, organizations.city, organizations.country,
			organizations.webpage
		FROM organizations
		JOIN persons_organizations ON organizations.id = persons_organizations.organization_id
		WHERE persons_organizations.person_id = ?
		ORDER BY organizations.id LIMIT 1`, personID)
	if err != nil {
		return domain.Affiliation{}, err
	}
	return row.affiliation(), nil
}

// PersonAffiliation renders the affiliation label of a person, or "" when
// the person has none.
func (s *Store) PersonAffiliation(ctx context.Context, personID int) (string, error) {
	aff, err := s.affiliation(ctx, personID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return aff.Label(), nil
}

// PrincipalInvestigators maps "first last" of every active person to their id.
func (s *Store) PrincipalInvestigators(ctx context.Context) (map[string]int, error) {
	var rows []personRow
	err := sqlxSelect(ctx, s, &rows, `SELECT id, first_name, family_name FROM persons WHERE active = ?`, true)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.FirstName+" "+r.LastName] = r.ID
	}
	return out, nil
}
