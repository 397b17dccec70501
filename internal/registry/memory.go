package registry

import (
	"context"
	"sort"
	"strings"
	"sync"

	"barcoder/pkg/domain"
)

// Memory is an in-process Registry for tests and development.
type Memory struct {
	mu          sync.RWMutex
	spaces      map[string][]string // user -> spaces
	admins      map[string]bool
	projects    map[string][]domain.Project
	experiments map[string]domain.Experiment
	samples     []domain.SampleRecord
}

var _ Registry = (*Memory)(nil)

// NewMemory returns an empty registry.
func NewMemory() *Memory {
	return &Memory{
		spaces:      make(map[string][]string),
		admins:      make(map[string]bool),
		projects:    make(map[string][]domain.Project),
		experiments: make(map[string]domain.Experiment),
	}
}

// GrantSpace gives user access to space.
func (m *Memory) GrantSpace(user, space string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.spaces[user] {
		if s == space {
			return
		}
	}
	m.spaces[user] = append(m.spaces[user], space)
}

// SetAdmin marks user as registry administrator.
func (m *Memory) SetAdmin(user string, admin bool) {
	m.mu.Lock()
	m.admins[user] = admin
	m.mu.Unlock()
}

// AddProject stores p, filling its identifier.
func (m *Memory) AddProject(p domain.Project) {
	if p.Identifier == "" {
		p.Identifier = domain.ProjectIdentifier(p.Space, p.Code)
	}
	m.mu.Lock()
	m.projects[p.Space] = append(m.projects[p.Space], p)
	m.mu.Unlock()
}

// AddExperiment stores e under its identifier.
func (m *Memory) AddExperiment(e domain.Experiment) {
	m.mu.Lock()
	m.experiments[e.Identifier] = e
	m.mu.Unlock()
}

// AddSamples appends samples.
func (m *Memory) AddSamples(samples ...domain.SampleRecord) {
	m.mu.Lock()
	m.samples = append(m.samples, samples...)
	m.mu.Unlock()
}

func (m *Memory) UserSpaces(_ context.Context, user string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]string(nil), m.spaces[user]...)
	sort.Strings(out)
	return out, nil
}

func (m *Memory) IsAdmin(_ context.Context, user string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.admins[user], nil
}

func (m *Memory) ProjectsOfSpace(_ context.Context, space string) ([]domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Project(nil), m.projects[space]...), nil
}

func (m *Memory) ExperimentsOfProject(_ context.Context, project string) ([]domain.Experiment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Experiment
	for id, e := range m.experiments {
		if strings.HasPrefix(id, project+"/") {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out, nil
}

func (m *Memory) SamplesOfProject(_ context.Context, project string) ([]domain.SampleRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.SampleRecord
	for _, s := range m.samples {
		if strings.HasPrefix(s.ExperimentID, project+"/") {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) Experiment(_ context.Context, identifier string) (domain.Experiment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.experiments[identifier]
	if !ok {
		return domain.Experiment{}, domain.ErrNotFound{Entity: "experiment", ID: identifier}
	}
	return e, nil
}

func (m *Memory) ParentMap(_ context.Context, codes []string) (map[string][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		want[c] = struct{}{}
	}
	out := make(map[string][]string, len(codes))
	for _, s := range m.samples {
		if _, ok := want[s.Code]; ok {
			out[s.Code] = append([]string(nil), s.Parents...)
		}
	}
	return out, nil
}
