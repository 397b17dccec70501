package barcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"barcoder/pkg/domain"
)

// SheetRequest carries everything the sample sheet script renders.
type SheetRequest struct {
	ProjectCode  string
	ProjectName  string
	Investigator *domain.Person
	Contact      *domain.Person
	Columns      []string
	Beans        []domain.BarcodeBean
}

type sheetPerson struct {
	Title     string `json:"title"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Faculty   string `json:"faculty"`
	Institute string `json:"institute"`
	Group     string `json:"group"`
	City      string `json:"city"`
	ZipCode   string `json:"zip_code"`
	Street    string `json:"street"`
}

type sheetSample struct {
	Code    string `json:"code"`
	Info    string `json:"info"`
	AltInfo string `json:"alt_info"`
}

type sheetParams struct {
	ProjectCode  string        `json:"project_code"`
	ProjectName  string        `json:"project_name"`
	Investigator *sheetPerson  `json:"investigator"`
	Contact      *sheetPerson  `json:"contact"`
	Cols         []string      `json:"cols"`
	Samples      []sheetSample `json:"samples"`
}

func toSheetPerson(p *domain.Person) *sheetPerson {
	if p == nil {
		return &sheetPerson{}
	}
	out := &sheetPerson{
		Title:     p.Title,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Phone:     p.Phone,
		Email:     p.Email,
	}
	if a := p.Affiliation; a != nil {
		out.Faculty = a.Faculty
		out.Institute = a.Institute
		out.Group = a.GroupName
		out.City = a.City
		out.ZipCode = a.ZipCode
		out.Street = a.Street
	}
	return out
}

// SheetParams renders the JSON parameter document of the sheet script. Sample
// text is passed with LaTeX characters removed.
func SheetParams(req SheetRequest) ([]byte, error) {
	params := sheetParams{
		ProjectCode:  req.ProjectCode,
		ProjectName:  req.ProjectName,
		Investigator: toSheetPerson(req.Investigator),
		Contact:      toSheetPerson(req.Contact),
		Cols:         req.Columns,
		Samples:      make([]sheetSample, 0, len(req.Beans)),
	}
	if params.Cols == nil {
		params.Cols = []string{}
	}
	for _, b := range domain.StripBeans(req.Beans) {
		params.Samples = append(params.Samples, sheetSample{Code: b.Code(), Info: b.FirstInfo(), AltInfo: b.AltInfo()})
	}
	return json.Marshal(params)
}

// SheetPath is the document the sheet script writes for prefix on the given date.
func (c *Creator) SheetPath(prefix string) string {
	name := fmt.Sprintf("sample_sheet_%s_%s.doc", prefix, c.now().Format("2006Jan02"))
	return filepath.Join(c.paths.Results, prefix, "documents", "sample_sheets", name)
}

// CreateSampleSheet writes the parameter file, runs the sheet script and
// returns the path of the produced document. The parameter file is removed.
func (c *Creator) CreateSampleSheet(ctx context.Context, req SheetRequest) (string, error) {
	if len(req.Beans) == 0 {
		return "", errors.New("no samples for sample sheet")
	}
	payload, err := SheetParams(req)
	if err != nil {
		return "", fmt.Errorf("encode sheet params: %w", err)
	}
	if err := os.MkdirAll(c.paths.Tmp, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}
	jsonPath := filepath.Join(c.paths.Tmp, batchStamp(c.now())+".json")
	if err := os.WriteFile(jsonPath, payload, 0o600); err != nil {
		return "", fmt.Errorf("write sheet params: %w", err)
	}
	defer func() {
		if err := os.Remove(jsonPath); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("could not remove sheet params", "path", jsonPath, "error", err)
		}
	}()

	prefix := domain.ProjectDir(req.Beans[0].Code())
	if err := c.run(ctx, c.script(DocScript, jsonPath)); err != nil {
		c.logger.Error("sample sheet creation failed", "project", prefix, "params", string(payload))
		return "", fmt.Errorf("sample sheet for %s: %w", prefix, err)
	}
	return c.SheetPath(prefix), nil
}

// ZipBarcodes packs the tube PDFs of beans, in order, into
// <results>/<prefix>/pdf/<prefix>_barcodes.zip and returns its path.
func (c *Creator) ZipBarcodes(ctx context.Context, beans []domain.BarcodeBean) (string, error) {
	if len(beans) == 0 {
		return "", errors.New("no samples to zip")
	}
	prefix := domain.ProjectDir(beans[0].Code())
	pdfDir := filepath.Join(c.paths.Results, prefix, string(PDF))
	zipPath := filepath.Join(pdfDir, prefix+"_barcodes.zip")
	if err := os.Remove(zipPath); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("remove old archive: %w", err)
	}
	args := []string{"-j", zipPath}
	for _, b := range beans {
		args = append(args, c.paths.Artifact(b.Code(), PDF))
	}
	if err := c.run(ctx, Command{Name: c.paths.ZipCmd, Args: args, PathEnv: c.paths.PathEnv}); err != nil {
		return "", fmt.Errorf("zip barcodes for %s: %w", prefix, err)
	}
	return zipPath, nil
}
