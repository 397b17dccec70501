package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"barcoder/internal/barcode"
	"barcoder/internal/blob"
	"barcoder/internal/export"
	"barcoder/internal/jobs"
	"barcoder/internal/registry"
	"barcoder/pkg/domain"
)

// Job kinds submitted by the service.
const (
	JobPrepareTubes = "prepare_tubes"
	JobPrepareSheet = "prepare_sheet"
	JobPrint        = "print"
)

// ProjectNameMaxLength bounds the project title shown next to its code.
const ProjectNameMaxLength = 80

// ErrNoSelection is returned when a request selects no samples.
var ErrNoSelection = errors.New("select at least one group of samples")

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("invalid request")

// ProjectView is a project entry of a space listing.
type ProjectView struct {
	Code       string `json:"code"`
	Identifier string `json:"identifier"`
	Name       string `json:"name,omitempty"`
	// Label is "CODE (name)", or the bare code without a name.
	Label string `json:"label"`
}

// ProjectSelection is the state shown after choosing a project.
type ProjectSelection struct {
	Space       string                      `json:"space"`
	Project     string                      `json:"project"`
	Experiments []*domain.ExperimentSummary `json:"experiments"`
	Printers    []domain.Printer            `json:"printers"`
	// PrinterError is set when the directory failed and the default printer is offered.
	PrinterError string `json:"printer_error,omitempty"`
}

// SelectionRequest picks experiment groups and optionally single samples.
type SelectionRequest struct {
	Space   string `json:"space"`
	Project string `json:"project"`
	// Experiments match summaries by experiment id and, when set, by date.
	Experiments []domain.SummaryKey `json:"experiments"`
	// Samples restricts the selection to these codes.
	Samples []string            `json:"samples,omitempty"`
	Options domain.LabelOptions `json:"options"`
	SortBy  domain.SortBy       `json:"sort_by,omitempty"`
}

// PrintJobRequest asks for the current batch to be printed.
type PrintJobRequest struct {
	Space           string   `json:"space"`
	Project         string   `json:"project"`
	User            string   `json:"user"`
	UserGroups      []string `json:"user_groups,omitempty"`
	PrinterName     string   `json:"printer_name"`
	PrinterLocation string   `json:"printer_location"`
}

// TubeResult is the payload of a finished tube job.
type TubeResult struct {
	barcode.PrepareResult
	FailureMessages []string      `json:"failures,omitempty"`
	Zip             string        `json:"zip,omitempty"`
	Archived        []blob.Object `json:"archived,omitempty"`
}

// SheetResult is the payload of a finished sheet job.
type SheetResult struct {
	barcode.PrepareResult
	FailureMessages []string     `json:"failures,omitempty"`
	Document        string       `json:"document"`
	Archived        *blob.Object `json:"archived,omitempty"`
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger.
func WithServiceLogger(l Logger) ServiceOption { return func(s *Service) { s.logger = orNop(l) } }

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithArchive copies finished batches and sheets into a.
func WithArchive(a *blob.Archive) ServiceOption { return func(s *Service) { s.archive = a } }

// WithWorker replaces the job worker. The service starts and stops it.
func WithWorker(w *jobs.Worker) ServiceOption { return func(s *Service) { s.worker = w } }

// Service coordinates the registry, the directory and the label creator.
type Service struct {
	registry  registry.Registry
	directory domain.Directory
	creator   *barcode.Creator
	archive   *blob.Archive
	worker    *jobs.Worker
	metrics   MetricsRecorder
	logger    Logger

	aggregator *Aggregator
	beans      *BeanBuilder
	bus        *SelectionBus
	unsub      func()

	mu         sync.RWMutex
	selections map[string][]*domain.ExperimentSummary // project identifier -> summaries
	preview    *domain.SampleRecord
}

// NewService wires a service. Start must be called before jobs run.
func NewService(reg registry.Registry, dir domain.Directory, creator *barcode.Creator, opts ...ServiceOption) *Service {
	s := &Service{
		registry:   reg,
		directory:  dir,
		creator:    creator,
		metrics:    noopMetricsRecorder{},
		logger:     noopLogger{},
		bus:        NewSelectionBus(),
		selections: make(map[string][]*domain.ExperimentSummary),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.worker == nil {
		s.worker = jobs.NewWorker(jobs.WithLogger(s.logger), jobs.WithObserver(s.metrics))
	}
	s.aggregator = NewAggregator(reg, s.logger)
	s.beans = NewBeanBuilder(NewFieldTranslator(s.logger))
	s.unsub = s.bus.Subscribe(s.refreshPreview)
	return s
}

// Start launches the job worker.
func (s *Service) Start() { s.worker.Start() }

// Stop cancels pending jobs and waits for the running one.
func (s *Service) Stop(ctx context.Context) error {
	s.unsub()
	return s.worker.Stop(ctx)
}

// Bus returns the selection bus.
func (s *Service) Bus() *SelectionBus { return s.bus }

// Directory returns the directory store.
func (s *Service) Directory() domain.Directory { return s.directory }

func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
}

// Spaces lists the spaces visible to user.
func (s *Service) Spaces(ctx context.Context, user string) (spaces []string, err error) {
	defer func(start time.Time) { s.observe(ctx, "spaces", start, err) }(time.Now())
	spaces, err = s.registry.UserSpaces(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("spaces of %s: %w", user, err)
	}
	sort.Strings(spaces)
	return spaces, nil
}

// Projects lists the projects of space with their directory titles.
func (s *Service) Projects(ctx context.Context, space string) ([]ProjectView, error) {
	projects, err := s.registry.ProjectsOfSpace(ctx, space)
	if err != nil {
		return nil, fmt.Errorf("projects of %s: %w", space, err)
	}
	out := make([]ProjectView, 0, len(projects))
	for _, p := range projects {
		id := p.Identifier
		if id == "" {
			id = domain.ProjectIdentifier(space, p.Code)
		}
		name, err := s.directory.ProjectName(ctx, id)
		if err != nil && !domain.IsNotFound(err) {
			s.logger.Warn("could not read project name", "project", id, "error", err)
		}
		out = append(out, newProjectView(p.Code, id, name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func newProjectView(code, identifier, name string) ProjectView {
	v := ProjectView{Code: code, Identifier: identifier, Label: code}
	if name == "" {
		return v
	}
	if utf8.RuneCountInString(name) >= ProjectNameMaxLength {
		name = string([]rune(name)[:ProjectNameMaxLength]) + "..."
	}
	v.Name = name
	v.Label = code + " (" + name + ")"
	return v
}

// projectCode strips a "CODE (name)" label down to the code.
func projectCode(project string) string {
	if i := strings.Index(project, " "); i >= 0 {
		return project[:i]
	}
	return project
}

// SelectProject loads and groups the barcode samples of a project and the
// printers the caller may use.
func (s *Service) SelectProject(ctx context.Context, space, project string, userGroups []string) (sel ProjectSelection, err error) {
	defer func(start time.Time) { s.observe(ctx, "select_project", start, err) }(time.Now())
	project = projectCode(project)
	summaries, err := s.loadSummaries(ctx, space, project)
	if err != nil {
		return ProjectSelection{}, err
	}
	sel = ProjectSelection{Space: space, Project: project, Experiments: summaries}
	sel.Printers, err = s.directory.PrintersForProject(ctx, project, userGroups)
	if err != nil {
		s.logger.Warn("printer lookup failed, offering default printer", "project", project, "error", err)
		sel.PrinterError = err.Error()
		if len(sel.Printers) == 0 {
			sel.Printers = []domain.Printer{domain.DefaultPrinter}
		}
	}
	return sel, nil
}

func (s *Service) loadSummaries(ctx context.Context, space, project string) ([]*domain.ExperimentSummary, error) {
	id := domain.ProjectIdentifier(space, project)
	exps, err := s.registry.ExperimentsOfProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("experiments of %s: %w", id, err)
	}
	byID := make(map[string]domain.Experiment, len(exps))
	for _, e := range exps {
		byID[e.Identifier] = e
	}
	samples, err := s.registry.SamplesOfProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("samples of %s: %w", id, err)
	}
	summaries := s.aggregator.Aggregate(ctx, samples, byID)
	SortSummaries(summaries)

	s.mu.Lock()
	s.selections[id] = summaries
	s.mu.Unlock()
	return summaries, nil
}

// summaries returns the cached groups of a project, loading them once.
func (s *Service) summaries(ctx context.Context, space, project string) ([]*domain.ExperimentSummary, error) {
	s.mu.RLock()
	cached, ok := s.selections[domain.ProjectIdentifier(space, project)]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}
	return s.loadSummaries(ctx, space, project)
}

// resolve maps a request onto the chosen summaries and samples.
func (s *Service) resolve(ctx context.Context, req SelectionRequest) (SelectionEvent, error) {
	if req.Space == "" || req.Project == "" {
		return SelectionEvent{}, fmt.Errorf("%w: space and project are required", ErrInvalidRequest)
	}
	project := projectCode(req.Project)
	all, err := s.summaries(ctx, req.Space, project)
	if err != nil {
		return SelectionEvent{}, err
	}
	ev := SelectionEvent{Space: req.Space, Project: project}
	for _, sum := range all {
		for _, k := range req.Experiments {
			if k.ExperimentID == sum.ExperimentID && (k.Date == "" || k.Date == sum.Date) {
				ev.Experiments = append(ev.Experiments, sum)
				break
			}
		}
	}
	if len(ev.Experiments) == 0 {
		return SelectionEvent{}, ErrNoSelection
	}
	if len(req.Samples) > 0 {
		want := make(map[string]struct{}, len(req.Samples))
		for _, c := range req.Samples {
			want[c] = struct{}{}
		}
		for _, sum := range ev.Experiments {
			for _, smp := range sum.Samples {
				if _, ok := want[smp.Code]; ok {
					ev.Samples = append(ev.Samples, smp)
				}
			}
		}
	}
	return ev, nil
}

// Select publishes the selection described by req on the bus.
func (s *Service) Select(ctx context.Context, req SelectionRequest) (SelectionEvent, error) {
	ev, err := s.resolve(ctx, req)
	if err != nil {
		return SelectionEvent{}, err
	}
	s.bus.Publish(ev)
	return ev, nil
}

func (s *Service) refreshPreview(ev SelectionEvent) {
	sample, ok := UsefulSample(ev)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok {
		s.preview = nil
		return
	}
	s.preview = &sample
}

// PreviewSample returns the sample of the sticker preview for the last selection.
func (s *Service) PreviewSample() (domain.SampleRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.preview == nil {
		return domain.SampleRecord{}, false
	}
	return *s.preview, true
}

// PreviewBean renders the preview sample with opts, as a sticker would show it.
func (s *Service) PreviewBean(opts domain.LabelOptions) (domain.BarcodeBean, bool) {
	sample, ok := s.PreviewSample()
	if !ok {
		return domain.BarcodeBean{}, false
	}
	opts.Cut = true
	exp := &domain.ExperimentSummary{Samples: []domain.SampleRecord{sample}}
	beans := s.beans.Build([]*domain.ExperimentSummary{exp}, nil, opts)
	return beans[0], true
}

// Beans builds and sorts the beans of a selection.
func (s *Service) Beans(ctx context.Context, req SelectionRequest) ([]domain.BarcodeBean, error) {
	ev, err := s.Select(ctx, req)
	if err != nil {
		return nil, err
	}
	beans := s.beans.Build(ev.Experiments, ev.Samples, req.Options)
	if len(beans) == 0 {
		return nil, ErrNoSelection
	}
	if req.SortBy != "" {
		SortBeans(beans, req.SortBy, s.logger)
	}
	return beans, nil
}

func progressOf(report func(float64)) barcode.ProgressFunc {
	return func(p barcode.Progress) { report(p.Fraction()) }
}

// PrepareTubes submits a job generating and collating tube stickers. The
// finished batch replaces the creator's current batch.
func (s *Service) PrepareTubes(ctx context.Context, req SelectionRequest) (jobs.Job, error) {
	if req.Options == (domain.LabelOptions{}) {
		req.Options = domain.DefaultTubeOptions
	}
	req.Options.Cut = true
	beans, err := s.Beans(ctx, req)
	if err != nil {
		return jobs.Job{}, err
	}
	project := projectCode(req.Project)
	s.logger.Info("preparing tube barcodes", "project", project, "samples", len(beans))
	return s.worker.Submit(JobPrepareTubes, func(ctx context.Context, report func(float64)) (any, error) {
		prep, err := s.creator.PrepareTubes(ctx, beans, progressOf(report))
		if err != nil {
			return nil, err
		}
		res := TubeResult{PrepareResult: prep, FailureMessages: prep.FailureMessages()}
		if zip, err := s.creator.ZipBarcodes(ctx, beans); err != nil {
			s.logger.Warn("could not zip tube barcodes", "project", project, "error", err)
		} else {
			res.Zip = zip
		}
		if s.archive != nil && prep.Batch != nil {
			objs, err := s.archive.ArchiveBatch(ctx, project, *prep.Batch)
			if err != nil {
				s.logger.Warn("batch archive incomplete", "project", project, "error", err)
			}
			res.Archived = objs
		}
		return res, nil
	})
}

// SampleSheet assembles the sheet data of a selection without running any script.
func (s *Service) SampleSheet(ctx context.Context, req SelectionRequest) (export.SampleSheet, error) {
	if req.Options == (domain.LabelOptions{}) {
		req.Options = domain.DefaultSheetOptions
	}
	req.Options.Cut = false
	beans, err := s.Beans(ctx, req)
	if err != nil {
		return export.SampleSheet{}, err
	}
	project := projectCode(req.Project)
	id := domain.ProjectIdentifier(req.Space, project)
	sheet := export.SampleSheet{
		ProjectCode:  project,
		ProjectName:  s.projectName(ctx, id),
		Investigator: s.person(ctx, id, domain.RolePI),
		Contact:      s.person(ctx, id, domain.RoleManager),
		Columns:      []string{string(req.Options.FirstInfo), string(req.Options.AltInfo)},
		Beans:        beans,
	}
	return sheet, nil
}

func (s *Service) projectName(ctx context.Context, id string) string {
	name, err := s.directory.ProjectName(ctx, id)
	if err != nil && !domain.IsNotFound(err) {
		s.logger.Warn("could not read project name", "project", id, "error", err)
	}
	return name
}

func (s *Service) person(ctx context.Context, id, role string) *domain.Person {
	p, err := s.directory.PersonForProject(ctx, id, role)
	if err != nil {
		if !domain.IsNotFound(err) {
			s.logger.Warn("could not read project person", "project", id, "role", role, "error", err)
		}
		return nil
	}
	return &p
}

// PrepareSheet submits a job generating the sheet barcodes and the sample
// sheet document.
func (s *Service) PrepareSheet(ctx context.Context, req SelectionRequest) (jobs.Job, error) {
	sheet, err := s.SampleSheet(ctx, req)
	if err != nil {
		return jobs.Job{}, err
	}
	s.logger.Info("preparing sample sheet", "project", sheet.ProjectCode, "samples", len(sheet.Beans))
	return s.worker.Submit(JobPrepareSheet, func(ctx context.Context, report func(float64)) (any, error) {
		prep, err := s.creator.PrepareSheetBarcodes(ctx, sheet.Beans, progressOf(report))
		if err != nil {
			return nil, err
		}
		doc, err := s.creator.CreateSampleSheet(ctx, barcode.SheetRequest{
			ProjectCode:  sheet.ProjectCode,
			ProjectName:  sheet.ProjectName,
			Investigator: sheet.Investigator,
			Contact:      sheet.Contact,
			Columns:      sheet.Columns,
			Beans:        sheet.Beans,
		})
		if err != nil {
			return nil, err
		}
		res := SheetResult{PrepareResult: prep, FailureMessages: prep.FailureMessages(), Document: doc}
		if s.archive != nil {
			obj, err := s.archive.ArchiveSheet(ctx, sheet.ProjectCode, doc)
			if err != nil {
				s.logger.Warn("could not archive sample sheet", "project", sheet.ProjectCode, "error", err)
			} else {
				res.Archived = &obj
			}
		}
		return res, nil
	})
}

// Print submits a job printing the current batch. The printer must be one
// the caller may use for the project.
func (s *Service) Print(ctx context.Context, req PrintJobRequest) (jobs.Job, error) {
	if req.PrinterName == "" {
		return jobs.Job{}, fmt.Errorf("%w: no printer selected", ErrInvalidRequest)
	}
	if _, ok := s.creator.CurrentBatch(); !ok {
		return jobs.Job{}, fmt.Errorf("%w: no prepared batch to print", ErrInvalidRequest)
	}
	project := projectCode(req.Project)
	printers, err := s.directory.PrintersForProject(ctx, project, req.UserGroups)
	if err != nil {
		s.logger.Warn("printer lookup failed", "project", project, "error", err)
	}
	printer, ok := findPrinter(printers, req.PrinterName, req.PrinterLocation)
	if !ok {
		return jobs.Job{}, fmt.Errorf("%w: printer %s at %s is not available for %s", ErrInvalidRequest, req.PrinterName, req.PrinterLocation, project)
	}
	s.logger.Info("sending print command", "project", project, "printer", printer.Name, "host", printer.Host)
	preq := barcode.PrintRequest{Printer: printer, Space: req.Space, Project: project, User: req.User}
	return s.worker.Submit(JobPrint, func(ctx context.Context, _ func(float64)) (any, error) {
		start := time.Now()
		res := s.creator.Print(ctx, preq, s.directory)
		s.metrics.Observe(ctx, "printer", res.Success, time.Since(start))
		return res, nil
	})
}

func findPrinter(printers []domain.Printer, name, location string) (domain.Printer, bool) {
	for _, p := range printers {
		if p.Name == name && (location == "" || p.Location == location) {
			return p, true
		}
	}
	return domain.Printer{}, false
}

// Job returns the state of a submitted job.
func (s *Service) Job(id string) (jobs.Job, bool) { return s.worker.Status(id) }

// Jobs lists known jobs, oldest first.
func (s *Service) Jobs() []jobs.Job { return s.worker.List() }

// CancelJob cancels a queued or running job.
func (s *Service) CancelJob(id string) (jobs.Job, bool) { return s.worker.Cancel(id) }

// LabelCounts returns the usage accounting rows.
func (s *Service) LabelCounts(ctx context.Context) ([]domain.LabelCount, error) {
	return s.directory.LabelCounts(ctx)
}

// Archived lists the archive below prefix. Without an archive the list is empty.
func (s *Service) Archived(ctx context.Context, prefix string) ([]blob.Object, error) {
	if s.archive == nil {
		return nil, nil
	}
	return s.archive.List(ctx, prefix)
}
