package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"barcoder/pkg/domain"
)

const sheetName = "Samples"

// SampleSheet is the spreadsheet counterpart of the sample sheet document.
type SampleSheet struct {
	ProjectCode  string
	ProjectName  string
	Investigator *domain.Person
	Contact      *domain.Person
	// Columns are the headers of the info and alt info columns.
	Columns []string
	Beans   []domain.BarcodeBean
}

// headerRows is the number of rows above the sample table.
const headerRows = 5

// WriteSampleSheetXLSX writes the project header and one row per bean.
func WriteSampleSheetXLSX(w io.Writer, sheet SampleSheet) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	head := [][]any{
		{"Project", sheet.ProjectCode},
		{"Title", sheet.ProjectName},
		{"Investigator", personLine(sheet.Investigator)},
		{"Contact", personLine(sheet.Contact)},
	}
	for i, row := range head {
		if err := setRow(f, i+1, row); err != nil {
			return err
		}
	}

	cols := []any{"QBiC Code"}
	for _, c := range sheet.Columns {
		cols = append(cols, c)
	}
	tableHead := headerRows + 1
	if err := setRow(f, tableHead, cols); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(cols), tableHead)
	if err := f.SetCellStyle(sheetName, "A1", "A4", bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, fmt.Sprintf("A%d", tableHead), last, bold); err != nil {
		return err
	}
	for i, b := range sheet.Beans {
		row := []any{b.Code(), b.FirstInfo(), b.AltInfo()}
		if err := setRow(f, tableHead+1+i, row[:min(len(row), len(cols))]); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheetName, "A", "C", 24); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write sample sheet xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheetName, cell, &values)
}

func personLine(p *domain.Person) string {
	if p == nil {
		return ""
	}
	name := p.FullName()
	if p.Title != "" {
		name = p.Title + " " + name
	}
	if p.Affiliation != nil {
		if l := p.Affiliation.Label(); l != "" {
			name += ", " + l
		}
	}
	if p.Email != "" {
		name += " <" + p.Email + ">"
	}
	return name
}
