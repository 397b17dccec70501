package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"barcoder/internal/barcode"
	"barcoder/internal/blob"
	"barcoder/internal/core"
	"barcoder/internal/export"
	dirmem "barcoder/internal/infra/persistence/memory"
	"barcoder/internal/jobs"
	"barcoder/internal/registry"
	"barcoder/pkg/domain"
)

const (
	space   = "SPACE"
	project = "QABCD"
	exp     = "/SPACE/QABCD/QABCDE1"
)

// artifactRunner writes the file each label script would produce.
type artifactRunner struct {
	paths   barcode.Paths
	creator *barcode.Creator
}

func (r *artifactRunner) Run(_ context.Context, cmd barcode.Command) (barcode.Output, error) {
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
		out = r.creator.SheetPath(project)
	default:
		return barcode.Output{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return barcode.Output{}, err
	}
	return barcode.Output{}, os.WriteFile(out, []byte("artifact"), 0o600)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()
	paths := barcode.Paths{
		Scripts: filepath.Join(root, "scripts"),
		Tmp:     filepath.Join(root, "tmp"),
		Results: filepath.Join(root, "results"),
	}
	runner := &artifactRunner{paths: paths}
	creator := barcode.NewCreator(paths, barcode.WithRunner(runner))
	runner.creator = creator

	day := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	reg := registry.NewMemory()
	reg.GrantSpace("alice", space)
	reg.AddProject(domain.Project{Code: project, Space: space})
	reg.AddExperiment(domain.Experiment{Identifier: exp})
	reg.AddSamples(
		domain.SampleRecord{Code: "QABCD001AB", Type: domain.SampleTypeTest, ExperimentID: exp, RegistrationDate: day,
			Properties: map[string]string{domain.PropSampleType: "SERUM", domain.PropSecondaryName: "patient 1"}},
		domain.SampleRecord{Code: "QABCD002AJ", Type: domain.SampleTypeTest, ExperimentID: exp, RegistrationDate: day,
			Properties: map[string]string{domain.PropSampleType: "SERUM", domain.PropSecondaryName: "patient 2"}},
	)

	dir := dirmem.NewStore()
	projectID, err := dir.AddProject(ctx, domain.ProjectIdentifier(space, project), "Serum study")
	if err != nil {
		t.Fatalf("add project: %v", err)
	}
	printerID, err := dir.AddPrinter(ctx, domain.Printer{Location: "LAB", Name: "TSC_1", Host: "printserv.example.org", Type: domain.PrinterLabel})
	if err != nil {
		t.Fatalf("add printer: %v", err)
	}
	if err := dir.AssociatePrinter(ctx, printerID, projectID); err != nil {
		t.Fatalf("associate: %v", err)
	}

	store, err := blob.Open(ctx, blob.Config{Driver: blob.DriverMemory})
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	metrics := core.NewPrometheusMetricsRecorder()
	svc := core.NewService(reg, dir, creator,
		core.WithArchive(blob.NewArchive(store)),
		core.WithMetrics(metrics))
	svc.Start()
	srv := httptest.NewServer(NewHandler(svc, WithMetricsHandler(metrics.Handler())))
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Stop(ctx)
	})
	return srv
}

func selectionBody() core.SelectionRequest {
	return core.SelectionRequest{
		Space:       space,
		Project:     project,
		Experiments: []domain.SummaryKey{{ExperimentID: exp}},
		SortBy:      domain.SortBarcodeID,
	}
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func waitJob(t *testing.T, base, id string) jobs.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var job jobs.Job
		decodeInto(t, do(t, http.MethodGet, base+Prefix+"/jobs/"+id, nil), &job)
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return jobs.Job{}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)
	if resp := do(t, http.MethodGet, srv.URL+"/healthz", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %d", resp.StatusCode)
	}
	do(t, http.MethodGet, srv.URL+Prefix+"/spaces?user=alice", nil)
	resp := do(t, http.MethodGet, srv.URL+"/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: %d", resp.StatusCode)
	}
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	if !strings.Contains(body.String(), "spaces") {
		t.Fatalf("expected spaces operation in metrics, got %s", body.String())
	}
}

func TestListings(t *testing.T) {
	srv := newTestServer(t)

	if resp := do(t, http.MethodGet, srv.URL+Prefix+"/spaces", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing user should be rejected, got %d", resp.StatusCode)
	}
	var spaces struct{ Spaces []string }
	decodeInto(t, do(t, http.MethodGet, srv.URL+Prefix+"/spaces?user=alice", nil), &spaces)
	if len(spaces.Spaces) != 1 || spaces.Spaces[0] != space {
		t.Fatalf("unexpected spaces %v", spaces)
	}

	var projects struct{ Projects []core.ProjectView }
	decodeInto(t, do(t, http.MethodGet, srv.URL+Prefix+"/spaces/SPACE/projects", nil), &projects)
	if len(projects.Projects) != 1 || projects.Projects[0].Label != "QABCD (Serum study)" {
		t.Fatalf("unexpected projects %+v", projects)
	}

	var sel core.ProjectSelection
	decodeInto(t, do(t, http.MethodGet, srv.URL+Prefix+"/spaces/SPACE/projects/QABCD", nil), &sel)
	if len(sel.Experiments) != 1 || sel.Experiments[0].Amount != 2 || len(sel.Experiments[0].Samples) != 0 {
		t.Fatalf("unexpected selection %+v", sel)
	}
	if len(sel.Printers) != 1 || sel.Printers[0].Name != "TSC_1" {
		t.Fatalf("unexpected printers %+v", sel.Printers)
	}
	decodeInto(t, do(t, http.MethodGet, srv.URL+Prefix+"/spaces/SPACE/projects/QABCD?samples=true", nil), &sel)
	if len(sel.Experiments[0].Samples) != 2 {
		t.Fatalf("samples were requested, got %+v", sel.Experiments[0])
	}
}

func TestPreview(t *testing.T) {
	srv := newTestServer(t)
	req := selectionBody()
	req.Samples = []string{"QABCD002AJ"}
	resp := do(t, http.MethodPost, srv.URL+Prefix+"/preview", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preview: %d", resp.StatusCode)
	}
	var bean beanView
	decodeInto(t, resp, &bean)
	if bean.Code != "QABCD002AJ" || bean.FirstInfo != "SERUM" || bean.AltInfo != "patient 2" {
		t.Fatalf("unexpected preview %+v", bean)
	}

	req.Experiments = nil
	if resp := do(t, http.MethodPost, srv.URL+Prefix+"/preview", req); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty selection should be rejected, got %d", resp.StatusCode)
	}
}

func TestRejectsUnknownFields(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, http.MethodPost, srv.URL+Prefix+"/prepare/tubes", map[string]any{"space": space, "bogus": true})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeInto(t, resp, &body)
	if !strings.Contains(body["error"], "bogus") {
		t.Fatalf("unexpected error %v", body)
	}
}

func TestPrepareAndPrint(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL

	printReq := core.PrintJobRequest{Space: space, Project: project, User: "alice", PrinterName: "TSC_1", PrinterLocation: "LAB"}
	if resp := do(t, http.MethodPost, base+Prefix+"/print", printReq); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("printing without a batch should be rejected, got %d", resp.StatusCode)
	}

	resp := do(t, http.MethodPost, base+Prefix+"/prepare/tubes", selectionBody())
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("prepare: %d", resp.StatusCode)
	}
	var job jobs.Job
	decodeInto(t, resp, &job)
	if job.Kind != core.JobPrepareTubes {
		t.Fatalf("unexpected job %+v", job)
	}
	if job = waitJob(t, base, job.ID); job.Status != jobs.StatusSucceeded {
		t.Fatalf("prepare failed: %+v", job)
	}

	resp = do(t, http.MethodPost, base+Prefix+"/print", printReq)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("print: %d", resp.StatusCode)
	}
	decodeInto(t, resp, &job)
	if job = waitJob(t, base, job.ID); job.Status != jobs.StatusSucceeded {
		t.Fatalf("print failed: %+v", job)
	}
	result, _ := job.Result.(map[string]any)
	if result["success"] != true || result["labels"] != float64(2) {
		t.Fatalf("unexpected print result %+v", job.Result)
	}

	var counts struct{ Counts []domain.LabelCount }
	decodeInto(t, do(t, http.MethodGet, base+Prefix+"/usage", nil), &counts)
	if len(counts.Counts) != 1 || counts.Counts[0].NumPrinted != 2 {
		t.Fatalf("unexpected usage %+v", counts)
	}
	csvResp := do(t, http.MethodGet, base+Prefix+"/usage?format=csv", nil)
	if ct := csvResp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("unexpected content type %q", ct)
	}
	rows, err := export.ReadUsageCSV(csvResp.Body)
	if err != nil || len(rows) != 1 || rows[0].UserName != "alice" {
		t.Fatalf("unexpected csv rows %+v (%v)", rows, err)
	}

	var archived struct{ Objects []blob.Object }
	decodeInto(t, do(t, http.MethodGet, base+Prefix+"/archive?prefix="+blob.BatchPrefix(project), nil), &archived)
	if len(archived.Objects) != 2 {
		t.Fatalf("expected archived batch, got %+v", archived)
	}

	var list struct{ Jobs []jobs.Job }
	decodeInto(t, do(t, http.MethodGet, base+Prefix+"/jobs", nil), &list)
	if len(list.Jobs) != 2 {
		t.Fatalf("expected two jobs, got %d", len(list.Jobs))
	}
}

func TestSampleSheetXLSX(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, http.MethodPost, srv.URL+Prefix+"/sheet.xlsx", selectionBody())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sheet: %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "QABCD_sample_sheet.xlsx") {
		t.Fatalf("unexpected disposition %q", resp.Header.Get("Content-Disposition"))
	}
	f, err := excelize.OpenReader(resp.Body)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Samples")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) < 2 || rows[len(rows)-1][0] != "QABCD002AJ" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestJobNotFound(t *testing.T) {
	srv := newTestServer(t)
	if resp := do(t, http.MethodGet, srv.URL+Prefix+"/jobs/missing", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodDelete, srv.URL+Prefix+"/jobs/missing", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, srv.URL+"/nowhere", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
