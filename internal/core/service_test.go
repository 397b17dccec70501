package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"barcoder/internal/barcode"
	"barcoder/internal/blob"
	dirmem "barcoder/internal/infra/persistence/memory"
	"barcoder/internal/jobs"
	"barcoder/internal/registry"
	"barcoder/pkg/domain"
)

// scriptRunner stands in for the label scripts, zip and the print spooler.
type scriptRunner struct {
	paths   barcode.Paths
	creator *barcode.Creator

	mu    sync.Mutex
	calls []barcode.Command
	fail  map[string]error // keyed by command name
}

func (r *scriptRunner) Run(_ context.Context, cmd barcode.Command) (barcode.Output, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	err := r.fail[cmd.Name]
	r.mu.Unlock()
	if err != nil {
		return barcode.Output{Stderr: "lpr: printer offline"}, err
	}
	if len(cmd.Args) < 2 {
		return barcode.Output{}, nil
	}
	var out string
	switch filepath.Base(cmd.Args[0]) {
	case barcode.TubeScript:
		out = r.paths.Artifact(cmd.Args[1], barcode.PDF)
	case barcode.SheetScript:
		out = r.paths.Artifact(cmd.Args[1], barcode.PNG)
	case barcode.DocScript:
		out = r.creator.SheetPath("QABCD")
	default:
		return barcode.Output{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return barcode.Output{}, err
	}
	return barcode.Output{}, os.WriteFile(out, []byte("artifact"), 0o600)
}

type serviceFixture struct {
	svc     *Service
	runner  *scriptRunner
	dir     *dirmem.Store
	archive *blob.Archive
	printer domain.Printer
}

const (
	testSpace   = "SPACE"
	testProject = "QABCD"
	testExp     = "/SPACE/QABCD/QABCDE1"
)

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()
	paths := barcode.Paths{
		Scripts: filepath.Join(root, "scripts"),
		Tmp:     filepath.Join(root, "tmp"),
		Results: filepath.Join(root, "results"),
	}
	runner := &scriptRunner{paths: paths, fail: map[string]error{}}
	creator := barcode.NewCreator(paths, barcode.WithRunner(runner))
	runner.creator = creator

	reg := registry.NewMemory()
	reg.GrantSpace("alice", testSpace)
	reg.AddProject(domain.Project{Code: testProject, Space: testSpace})
	reg.AddProject(domain.Project{Code: "QWXYZ", Space: testSpace})
	reg.AddExperiment(domain.Experiment{Identifier: testExp, Properties: map[string]string{domain.PropSecondaryName: "Serum prep"}})
	reg.AddSamples(
		domain.SampleRecord{Code: "QABCD002AJ", Type: domain.SampleTypeTest, ExperimentID: testExp, RegistrationDate: day1,
			Properties: map[string]string{domain.PropSampleType: "SERUM", domain.PropSecondaryName: "patient 2"}},
		domain.SampleRecord{Code: "QABCD001AB", Type: domain.SampleTypeTest, ExperimentID: testExp, RegistrationDate: day1,
			Properties: map[string]string{domain.PropSampleType: "SERUM", domain.PropSecondaryName: "patient 1"}},
	)

	dir := dirmem.NewStore()
	projectID, err := dir.AddProject(ctx, domain.ProjectIdentifier(testSpace, testProject), "Serum study")
	if err != nil {
		t.Fatalf("add project: %v", err)
	}
	if _, err := dir.AddProject(ctx, "/SPACE/QWXYZ", strings.Repeat("x", 90)); err != nil {
		t.Fatalf("add project: %v", err)
	}
	printer := domain.Printer{Location: "LAB", Name: "TSC_1", Host: "printserv.example.org", Type: domain.PrinterLabel}
	printerID, err := dir.AddPrinter(ctx, printer)
	if err != nil {
		t.Fatalf("add printer: %v", err)
	}
	if err := dir.AssociatePrinter(ctx, printerID, projectID); err != nil {
		t.Fatalf("associate: %v", err)
	}
	pi, _ := dir.AddPerson(ctx, domain.Person{FirstName: "Ada", LastName: "Lovelace"})
	if err := dir.AddPersonToProject(ctx, projectID, pi, domain.RolePI); err != nil {
		t.Fatalf("add pi: %v", err)
	}

	store, err := blob.Open(ctx, blob.Config{Driver: blob.DriverMemory})
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	archive := blob.NewArchive(store)
	svc := NewService(reg, dir, creator, WithArchive(archive), WithMetrics(NewExpvarMetricsRecorder("")))
	svc.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Stop(ctx)
	})
	return &serviceFixture{svc: svc, runner: runner, dir: dir, archive: archive, printer: printer}
}

func waitJob(t *testing.T, s *Service, id string) jobs.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if j, ok := s.Job(id); ok && j.Status.Terminal() {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return jobs.Job{}
}

func selection() SelectionRequest {
	return SelectionRequest{
		Space:       testSpace,
		Project:     testProject + " (Serum study)",
		Experiments: []domain.SummaryKey{{ExperimentID: testExp}},
		SortBy:      domain.SortBarcodeID,
	}
}

func TestServiceListings(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	spaces, err := f.svc.Spaces(ctx, "alice")
	if err != nil || len(spaces) != 1 || spaces[0] != testSpace {
		t.Fatalf("spaces: %v %v", spaces, err)
	}
	projects, err := f.svc.Projects(ctx, testSpace)
	if err != nil || len(projects) != 2 {
		t.Fatalf("projects: %v %v", projects, err)
	}
	if projects[0].Label != "QABCD (Serum study)" {
		t.Fatalf("unexpected label %q", projects[0].Label)
	}
	if want := "QWXYZ (" + strings.Repeat("x", 80) + "...)"; projects[1].Label != want {
		t.Fatalf("long names must be truncated, got %q", projects[1].Label)
	}

	sel, err := f.svc.SelectProject(ctx, testSpace, "QABCD (Serum study)", nil)
	if err != nil {
		t.Fatalf("select project: %v", err)
	}
	if len(sel.Experiments) != 1 || sel.Experiments[0].Amount != 2 || sel.Experiments[0].Name != "Serum prep" {
		t.Fatalf("unexpected experiments %+v", sel.Experiments)
	}
	if len(sel.Printers) != 1 || sel.Printers[0].Name != "TSC_1" || sel.PrinterError != "" {
		t.Fatalf("unexpected printers %+v", sel)
	}
}

func TestServiceSelectionPublishesPreview(t *testing.T) {
	f := newServiceFixture(t)
	if _, ok := f.svc.PreviewSample(); ok {
		t.Fatal("no preview before a selection")
	}
	req := selection()
	req.Samples = []string{"QABCD001AB"}
	var seen []SelectionEvent
	f.svc.Bus().Subscribe(func(ev SelectionEvent) { seen = append(seen, ev) })

	if _, err := f.svc.Select(context.Background(), req); err != nil {
		t.Fatalf("select: %v", err)
	}
	s, ok := f.svc.PreviewSample()
	if !ok || s.Code != "QABCD001AB" || len(seen) != 1 {
		t.Fatalf("unexpected preview %v %v (%d events)", s.Code, ok, len(seen))
	}
	bean, ok := f.svc.PreviewBean(domain.DefaultTubeOptions)
	if !ok || bean.FirstInfo() != "SERUM" || bean.AltInfo() != "patient 1" {
		t.Fatalf("unexpected preview bean %+v", bean.Fields())
	}

	req.Experiments = nil
	if _, err := f.svc.Select(context.Background(), req); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}
}

func TestServicePrepareTubesAndPrint(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Print(ctx, PrintJobRequest{Space: testSpace, Project: testProject, User: "alice", PrinterName: "TSC_1"}); err == nil {
		t.Fatal("printing without a batch must fail")
	}

	job, err := f.svc.PrepareTubes(ctx, selection())
	if err != nil {
		t.Fatalf("prepare tubes: %v", err)
	}
	job = waitJob(t, f.svc, job.ID)
	if job.Status != jobs.StatusSucceeded || job.Progress != 1 {
		t.Fatalf("unexpected job %+v", job)
	}
	res, ok := job.Result.(TubeResult)
	if !ok {
		t.Fatalf("unexpected result type %T", job.Result)
	}
	if res.Generated != 2 || res.Batch.Count() != 2 || res.Batch.Files[0] != "0001_QABCD001AB.pdf" {
		t.Fatalf("unexpected tube result %+v", res)
	}
	if !strings.HasSuffix(res.Zip, "QABCD_barcodes.zip") || len(res.Archived) != 2 {
		t.Fatalf("expected zip and archived batch, got %+v", res)
	}

	if _, err := f.svc.Print(ctx, PrintJobRequest{Space: testSpace, Project: testProject, User: "alice", PrinterName: "NOPE"}); err == nil {
		t.Fatal("unknown printer must be rejected")
	}
	pj, err := f.svc.Print(ctx, PrintJobRequest{Space: testSpace, Project: testProject, User: "alice", PrinterName: "TSC_1", PrinterLocation: "LAB"})
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	pj = waitJob(t, f.svc, pj.ID)
	pres, ok := pj.Result.(barcode.PrintResult)
	if !ok || !pres.Success || pres.Labels != 2 || !pres.Recorded {
		t.Fatalf("unexpected print result %+v", pj)
	}
	counts, err := f.svc.LabelCounts(ctx)
	if err != nil || len(counts) != 1 || counts[0].NumPrinted != 2 || counts[0].UserName != "alice" {
		t.Fatalf("unexpected counts %+v (%v)", counts, err)
	}
}

func TestServicePrintFailureIsAResult(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	job, err := f.svc.PrepareTubes(ctx, selection())
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	waitJob(t, f.svc, job.ID)

	f.runner.mu.Lock()
	f.runner.fail["bash"] = errors.New("exit status 1")
	f.runner.mu.Unlock()
	pj, err := f.svc.Print(ctx, PrintJobRequest{Space: testSpace, Project: testProject, User: "alice", PrinterName: "TSC_1"})
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	pj = waitJob(t, f.svc, pj.ID)
	res := pj.Result.(barcode.PrintResult)
	if pj.Status != jobs.StatusSucceeded || res.Success || res.Message == "" {
		t.Fatalf("printer failure must be reported in the result: %+v", pj)
	}
}

func TestServicePrepareSheet(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	sheet, err := f.svc.SampleSheet(ctx, selection())
	if err != nil {
		t.Fatalf("sample sheet: %v", err)
	}
	if sheet.ProjectName != "Serum study" || sheet.Investigator == nil || sheet.Investigator.LastName != "Lovelace" || sheet.Contact != nil {
		t.Fatalf("unexpected sheet header %+v", sheet)
	}
	if len(sheet.Columns) != 2 || sheet.Columns[0] != string(domain.InfoSecondaryName) {
		t.Fatalf("unexpected columns %v", sheet.Columns)
	}

	job, err := f.svc.PrepareSheet(ctx, selection())
	if err != nil {
		t.Fatalf("prepare sheet: %v", err)
	}
	job = waitJob(t, f.svc, job.ID)
	res, ok := job.Result.(SheetResult)
	if !ok || job.Status != jobs.StatusSucceeded {
		t.Fatalf("unexpected job %+v", job)
	}
	if res.Generated != 2 || !strings.HasSuffix(res.Document, ".doc") || res.Archived == nil {
		t.Fatalf("unexpected sheet result %+v", res)
	}
	objs, err := f.svc.Archived(ctx, blob.SheetPrefix(testProject))
	if err != nil || len(objs) != 1 {
		t.Fatalf("expected archived sheet, got %+v (%v)", objs, err)
	}
}

func TestServiceCancelUnknownJob(t *testing.T) {
	f := newServiceFixture(t)
	if _, ok := f.svc.CancelJob("missing"); ok {
		t.Fatal("unknown job cannot be canceled")
	}
	if len(f.svc.Jobs()) != 0 {
		t.Fatal("expected no jobs")
	}
}
