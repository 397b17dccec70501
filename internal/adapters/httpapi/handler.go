// Package httpapi exposes the label service over a JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"barcoder/internal/blob"
	"barcoder/internal/core"
	"barcoder/internal/export"
	"barcoder/internal/jobs"
	"barcoder/pkg/domain"
)

// Prefix is the mount point of the versioned API.
const Prefix = "/api/v1"

// Service is the label service surface used by the handler.
type Service interface {
	Spaces(ctx context.Context, user string) ([]string, error)
	Projects(ctx context.Context, space string) ([]core.ProjectView, error)
	SelectProject(ctx context.Context, space, project string, userGroups []string) (core.ProjectSelection, error)
	Select(ctx context.Context, req core.SelectionRequest) (core.SelectionEvent, error)
	PreviewBean(opts domain.LabelOptions) (domain.BarcodeBean, bool)
	PrepareTubes(ctx context.Context, req core.SelectionRequest) (jobs.Job, error)
	PrepareSheet(ctx context.Context, req core.SelectionRequest) (jobs.Job, error)
	SampleSheet(ctx context.Context, req core.SelectionRequest) (export.SampleSheet, error)
	Print(ctx context.Context, req core.PrintJobRequest) (jobs.Job, error)
	Job(id string) (jobs.Job, bool)
	Jobs() []jobs.Job
	CancelJob(id string) (jobs.Job, bool)
	LabelCounts(ctx context.Context) ([]domain.LabelCount, error)
	Archived(ctx context.Context, prefix string) ([]blob.Object, error)
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request error logger.
func WithLogger(l core.Logger) Option { return func(h *Handler) { h.logger = l } }

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(m http.Handler) Option { return func(h *Handler) { h.metrics = m } }

// Handler routes API requests to the service.
type Handler struct {
	svc     Service
	logger  core.Logger
	metrics http.Handler
	router  *mux.Router
}

// NewHandler builds the router over svc.
func NewHandler(svc Service, opts ...Option) *Handler {
	h := &Handler{svc: svc, logger: core.NopLogger()}
	for _, opt := range opts {
		opt(h)
	}
	h.router = h.routes()
	return h
}

func (h *Handler) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", h.health).Methods(http.MethodGet, http.MethodHead)
	if h.metrics != nil {
		router.Handle("/metrics", h.metrics).Methods(http.MethodGet)
	}

	api := router.PathPrefix(Prefix).Subrouter()
	GET := api.Methods(http.MethodGet).Subrouter()
	POST := api.Methods(http.MethodPost).Subrouter()

	GET.HandleFunc("/spaces", h.listSpaces)
	GET.HandleFunc("/spaces/{space}/projects", h.listProjects)
	GET.HandleFunc("/spaces/{space}/projects/{project}", h.selectProject)
	GET.HandleFunc("/jobs", h.listJobs)
	GET.HandleFunc("/jobs/{id}", h.getJob)
	GET.HandleFunc("/usage", h.usage)
	GET.HandleFunc("/archive", h.archive)

	POST.HandleFunc("/preview", h.preview)
	POST.HandleFunc("/prepare/tubes", h.prepareTubes)
	POST.HandleFunc("/prepare/sheet", h.prepareSheet)
	POST.HandleFunc("/sheet.xlsx", h.sheetXLSX)
	POST.HandleFunc("/print", h.print)

	api.HandleFunc("/jobs/{id}", h.cancelJob).Methods(http.MethodDelete)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return router
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) listSpaces(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}
	spaces, err := h.svc.Spaces(r.Context(), user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"spaces": nonNil(spaces)})
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.Projects(r.Context(), mux.Vars(r)["space"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": nonNil(projects)})
}

func (h *Handler) selectProject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sel, err := h.svc.SelectProject(r.Context(), vars["space"], vars["project"], groupsOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sel.Experiments = stripSamples(sel.Experiments, r.URL.Query().Get("samples") == "true")
	writeJSON(w, http.StatusOK, sel)
}

// stripSamples drops the per sample records unless they were asked for.
func stripSamples(in []*domain.ExperimentSummary, keep bool) []*domain.ExperimentSummary {
	out := make([]*domain.ExperimentSummary, 0, len(in))
	for _, s := range in {
		if keep {
			out = append(out, s)
			continue
		}
		c := *s
		c.Samples = nil
		out = append(out, &c)
	}
	return out
}

func groupsOf(r *http.Request) []string {
	var out []string
	for _, v := range r.URL.Query()["group"] {
		for _, g := range strings.Split(v, ",") {
			if g = strings.TrimSpace(g); g != "" {
				out = append(out, g)
			}
		}
	}
	return out
}

type beanView struct {
	Code          string   `json:"code"`
	CodedString   string   `json:"coded_string"`
	FirstInfo     string   `json:"first_info"`
	AltInfo       string   `json:"alt_info"`
	BioType       string   `json:"bio_type,omitempty"`
	Parents       []string `json:"parents,omitempty"`
	SecondaryName string   `json:"secondary_name,omitempty"`
	ExternalID    string   `json:"external_id,omitempty"`
}

func viewOf(b domain.BarcodeBean) beanView {
	f := b.Fields()
	return beanView{
		Code:          f.Code,
		CodedString:   f.CodedString,
		FirstInfo:     f.FirstInfo,
		AltInfo:       f.AltInfo,
		BioType:       f.BioType,
		Parents:       f.Parents,
		SecondaryName: f.SecondaryName,
		ExternalID:    f.ExternalID,
	}
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	var req core.SelectionRequest
	if !decode(w, r, &req) {
		return
	}
	if _, err := h.svc.Select(r.Context(), req); err != nil {
		h.fail(w, r, err)
		return
	}
	opts := req.Options
	if opts == (domain.LabelOptions{}) {
		opts = domain.DefaultTubeOptions
	}
	bean, ok := h.svc.PreviewBean(opts)
	if !ok {
		writeError(w, http.StatusNotFound, "no sample to preview")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(bean))
}

func (h *Handler) prepareTubes(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, h.svc.PrepareTubes)
}

func (h *Handler) prepareSheet(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, h.svc.PrepareSheet)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, fn func(context.Context, core.SelectionRequest) (jobs.Job, error)) {
	var req core.SelectionRequest
	if !decode(w, r, &req) {
		return
	}
	job, err := fn(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) sheetXLSX(w http.ResponseWriter, r *http.Request) {
	var req core.SelectionRequest
	if !decode(w, r, &req) {
		return
	}
	sheet, err := h.svc.SampleSheet(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sheet.ProjectCode+"_sample_sheet.xlsx"))
	if err := export.WriteSampleSheetXLSX(w, sheet); err != nil {
		h.logger.Error("could not write sample sheet", "project", sheet.ProjectCode, "error", err)
	}
}

func (h *Handler) print(w http.ResponseWriter, r *http.Request) {
	var req core.PrintJobRequest
	if !decode(w, r, &req) {
		return
	}
	job, err := h.svc.Print(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) listJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": nonNil(h.svc.Jobs())})
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.svc.Job(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) cancelJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.svc.CancelJob(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) usage(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.LabelCounts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !wantsCSV(r) {
		writeJSON(w, http.StatusOK, map[string]any{"counts": nonNil(counts)})
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="label_usage.csv"`)
	if err := export.WriteUsageCSV(w, counts); err != nil {
		h.logger.Error("could not write usage csv", "error", err)
	}
}

func wantsCSV(r *http.Request) bool {
	if f := r.URL.Query().Get("format"); f != "" {
		return strings.EqualFold(f, "csv")
	}
	return strings.Contains(r.Header.Get("Accept"), "text/csv")
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	objs, err := h.svc.Archived(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"objects": nonNil(objs)})
}

// fail maps service errors onto status codes.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNoSelection), errors.Is(err, core.ErrInvalidRequest):
		status = http.StatusBadRequest
	case domain.IsNotFound(err), errors.Is(err, blob.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrStopped):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
