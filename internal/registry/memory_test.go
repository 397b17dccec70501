package registry

import (
	"context"
	"testing"

	"barcoder/pkg/domain"
)

func TestMemoryRegistry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.GrantSpace("alice", "SPACE")
	m.GrantSpace("alice", "SPACE")
	m.SetAdmin("root", true)
	m.AddProject(domain.Project{Code: "QABCD", Space: "SPACE"})
	m.AddExperiment(domain.Experiment{Identifier: "/SPACE/QABCD/QABCDE1", Code: "QABCDE1"})
	m.AddExperiment(domain.Experiment{Identifier: "/SPACE/QABCDX/QABCDXE1"})
	m.AddSamples(
		domain.SampleRecord{Code: "QABCD001AB", ExperimentID: "/SPACE/QABCD/QABCDE1", Parents: []string{"QABCD002AC"}},
		domain.SampleRecord{Code: "QXXXX001AB", ExperimentID: "/SPACE/QXXXX/QXXXXE1"},
	)

	spaces, _ := m.UserSpaces(ctx, "alice")
	if len(spaces) != 1 || spaces[0] != "SPACE" {
		t.Fatalf("unexpected spaces %v", spaces)
	}
	if admin, _ := m.IsAdmin(ctx, "root"); !admin {
		t.Fatalf("root must be admin")
	}
	projects, _ := m.ProjectsOfSpace(ctx, "SPACE")
	if projects[0].Identifier != "/SPACE/QABCD" {
		t.Fatalf("unexpected identifier %s", projects[0].Identifier)
	}
	exps, _ := m.ExperimentsOfProject(ctx, "/SPACE/QABCD")
	if len(exps) != 1 {
		t.Fatalf("prefix match must not leak other projects: %v", exps)
	}
	samples, _ := m.SamplesOfProject(ctx, "/SPACE/QABCD")
	if len(samples) != 1 || samples[0].Code != "QABCD001AB" {
		t.Fatalf("unexpected samples %v", samples)
	}
	parents, _ := m.ParentMap(ctx, []string{"QABCD001AB", "QNONE001AA"})
	if len(parents) != 1 || parents["QABCD001AB"][0] != "QABCD002AC" {
		t.Fatalf("unexpected parents %v", parents)
	}
	if _, err := m.Experiment(ctx, "/SPACE/QABCD/MISSING"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
