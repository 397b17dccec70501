// Package memory provides an in-process domain.Directory for tests and
// development runs without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"barcoder/pkg/domain"
)

var _ domain.Directory = (*Store)(nil)

type countKey struct {
	printer int
	project int
	user    string
}

type membership struct {
	target int
	person int
	role   string
}

// Store keeps the directory in maps guarded by one mutex.
type Store struct {
	mu sync.RWMutex

	projects     map[string]int
	projectTitle map[int]string
	experiments  map[string]int
	persons      map[int]domain.Person
	active       map[int]bool
	affiliations map[int][]domain.Affiliation
	projectRoles map[membership]struct{}
	expRoles     map[membership]struct{}
	printers     map[int]domain.Printer
	associations map[int]map[int]struct{} // project -> printers
	counts       map[countKey]int

	nextID int
}

// NewStore returns an empty directory.
func NewStore() *Store {
	return &Store{
		projects:     make(map[string]int),
		projectTitle: make(map[int]string),
		experiments:  make(map[string]int),
		persons:      make(map[int]domain.Person),
		active:       make(map[int]bool),
		affiliations: make(map[int][]domain.Affiliation),
		projectRoles: make(map[membership]struct{}),
		expRoles:     make(map[membership]struct{}),
		printers:     make(map[int]domain.Printer),
		associations: make(map[int]map[int]struct{}),
		counts:       make(map[countKey]int),
	}
}

func (s *Store) id() int {
	s.nextID++
	return s.nextID
}

func (s *Store) ProjectName(_ context.Context, projectIdentifier string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.projects[projectIdentifier]
	if !ok {
		return "", domain.ErrNotFound{Entity: "project", ID: projectIdentifier}
	}
	return s.projectTitle[id], nil
}

func (s *Store) ProjectID(_ context.Context, projectIdentifier string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.projects[projectIdentifier]
	if !ok {
		return 0, domain.ErrNotFound{Entity: "project", ID: projectIdentifier}
	}
	return id, nil
}

func (s *Store) AddProject(_ context.Context, projectIdentifier, shortTitle string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.projects[projectIdentifier]; ok {
		return id, nil
	}
	id := s.id()
	s.projects[projectIdentifier] = id
	s.projectTitle[id] = shortTitle
	return id, nil
}

func (s *Store) AddExperiment(_ context.Context, experimentIdentifier string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.experiments[experimentIdentifier]; ok {
		return id, nil
	}
	id := s.id()
	s.experiments[experimentIdentifier] = id
	return id, nil
}

func (s *Store) AddPerson(_ context.Context, p domain.Person) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	p.Affiliation = nil
	s.persons[p.ID] = p
	s.active[p.ID] = true
	return p.ID, nil
}

func (s *Store) AddAffiliation(_ context.Context, personID int, a domain.Affiliation, _ string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persons[personID]; !ok {
		return 0, domain.ErrNotFound{Entity: "person", ID: fmt.Sprint(personID)}
	}
	a.ID = s.id()
	s.affiliations[personID] = append(s.affiliations[personID], a)
	return a.ID, nil
}

func (s *Store) AddPersonToProject(_ context.Context, projectID, personID int, role string) error {
	s.mu.Lock()
	s.projectRoles[membership{target: projectID, person: personID, role: role}] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *Store) AddPersonToExperiment(_ context.Context, experimentID, personID int, role string) error {
	if experimentID == 0 || personID == 0 {
		return nil
	}
	s.mu.Lock()
	s.expRoles[membership{target: experimentID, person: personID, role: role}] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *Store) PersonForProject(_ context.Context, projectIdentifier, role string) (domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	missing := domain.ErrNotFound{Entity: role + " of project", ID: projectIdentifier}
	projectID, ok := s.projects[projectIdentifier]
	if !ok {
		return domain.Person{}, missing
	}
	best := 0
	for m := range s.projectRoles {
		if m.target == projectID && m.role == role && m.person > best {
			best = m.person
		}
	}
	p, ok := s.persons[best]
	if !ok {
		return domain.Person{}, missing
	}
	if affs := s.affiliations[best]; len(affs) > 0 {
		a := affs[0]
		p.Affiliation = &a
	}
	return p, nil
}

func (s *Store) PersonAffiliation(_ context.Context, personID int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	affs := s.affiliations[personID]
	if len(affs) == 0 {
		return "", nil
	}
	return affs[0].Label(), nil
}

func (s *Store) PrincipalInvestigators(context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.persons))
	for id, p := range s.persons {
		if s.active[id] {
			out[p.FirstName+" "+p.LastName] = id
		}
	}
	return out, nil
}

func (s *Store) AddPrinter(_ context.Context, p domain.Printer) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.printers {
		if existing.Key() == p.Key() {
			s.printers[id] = p
			return id, nil
		}
	}
	id := s.id()
	s.printers[id] = p
	return id, nil
}

func (s *Store) AssociatePrinter(_ context.Context, printerID, projectID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.associations[projectID]; !ok {
		s.associations[projectID] = make(map[int]struct{})
	}
	s.associations[projectID][printerID] = struct{}{}
	return nil
}

func (s *Store) PrintersForProject(_ context.Context, project string, userGroups []string) ([]domain.Printer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var associated []domain.Printer
	for identifier, projectID := range s.projects {
		if !hasSuffix(identifier, project) {
			continue
		}
		for printerID := range s.associations[projectID] {
			associated = append(associated, s.printers[printerID])
		}
	}
	all := make([]domain.Printer, 0, len(s.printers))
	for _, p := range s.printers {
		all = append(all, p)
	}
	sortPrinters(associated)
	sortPrinters(all)
	return domain.VisiblePrinters(associated, all, userGroups), nil
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func sortPrinters(ps []domain.Printer) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Location != ps[j].Location {
			return ps[i].Location < ps[j].Location
		}
		return ps[i].Name < ps[j].Name
	})
}

func (s *Store) AddLabelCount(_ context.Context, c domain.LabelCount) error {
	if c.NumPrinted < 0 {
		return fmt.Errorf("negative label count %d", c.NumPrinted)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	printerID := 0
	for id, p := range s.printers {
		if p.Name == c.PrinterName && p.Location == c.PrinterLocation {
			printerID = id
			break
		}
	}
	if printerID == 0 {
		return domain.ErrNotFound{Entity: "printer", ID: c.PrinterLocation + "/" + c.PrinterName}
	}
	projectID, ok := s.projects[c.ProjectIdentifier()]
	if !ok {
		return domain.ErrNotFound{Entity: "project", ID: c.ProjectIdentifier()}
	}
	s.counts[countKey{printer: printerID, project: projectID, user: c.UserName}] += c.NumPrinted
	return nil
}

func (s *Store) LabelCounts(context.Context) ([]domain.LabelCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identifiers := make(map[int]string, len(s.projects))
	for id, pid := range s.projects {
		identifiers[pid] = id
	}
	out := make([]domain.LabelCount, 0, len(s.counts))
	for k, n := range s.counts {
		p := s.printers[k.printer]
		space, project := splitIdentifier(identifiers[k.project])
		out = append(out, domain.LabelCount{
			PrinterName:     p.Name,
			PrinterLocation: p.Location,
			Space:           space,
			Project:         project,
			UserName:        k.user,
			NumPrinted:      n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ProjectIdentifier() != b.ProjectIdentifier() {
			return a.ProjectIdentifier() < b.ProjectIdentifier()
		}
		if a.PrinterLocation != b.PrinterLocation {
			return a.PrinterLocation < b.PrinterLocation
		}
		if a.PrinterName != b.PrinterName {
			return a.PrinterName < b.PrinterName
		}
		return a.UserName < b.UserName
	})
	return out, nil
}

func splitIdentifier(id string) (string, string) {
	for i := 1; i < len(id); i++ {
		if id[i] == '/' {
			return id[1:i], id[i+1:]
		}
	}
	if len(id) > 0 && id[0] == '/' {
		return "", id[1:]
	}
	return "", id
}

func (s *Store) Close() error { return nil }
