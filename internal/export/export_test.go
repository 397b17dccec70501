package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"barcoder/pkg/domain"
)

func TestUsageCSVRoundTrip(t *testing.T) {
	counts := []domain.LabelCount{
		{PrinterName: "TSC_1", PrinterLocation: "LAB", Space: "SPACE", Project: "QABCD", UserName: "alice", NumPrinted: 17},
		{PrinterName: "TSC_2", PrinterLocation: "LAB", Space: "SPACE", Project: "QABCD", UserName: "bob", NumPrinted: 3},
	}
	var buf bytes.Buffer
	if err := WriteUsageCSV(&buf, counts); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || lines[0] != "printer,location,space,project,user,num_printed" {
		t.Fatalf("unexpected csv:\n%s", buf.String())
	}
	if lines[1] != "TSC_1,LAB,SPACE,QABCD,alice,17" {
		t.Fatalf("unexpected row %q", lines[1])
	}
	back, err := ReadUsageCSV(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(back) != 2 || back[0] != counts[0] {
		t.Fatalf("unexpected parse %+v", back)
	}
}

func TestUsageCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteUsageCSV(&buf, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "printer,location") {
		t.Fatalf("expected header only, got %q", buf.String())
	}
}

func TestWriteSampleSheetXLSX(t *testing.T) {
	pi := &domain.Person{Title: "Dr.", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.org",
		Affiliation: &domain.Affiliation{GroupName: "Analytics", Acronym: "AN"}}
	sheet := SampleSheet{
		ProjectCode:  "QABCD",
		ProjectName:  "Serum study",
		Investigator: pi,
		Columns:      []string{"Secondary Name", "Parent Samples (Source)"},
		Beans: []domain.BarcodeBean{
			domain.NewBarcodeBean(domain.BeanFields{Code: "QABCD001AB", FirstInfo: "patient 1", AltInfo: "QABCDENTITY-1"}),
			domain.NewBarcodeBean(domain.BeanFields{Code: "QABCD002AJ", FirstInfo: "patient 2"}),
		},
	}
	var buf bytes.Buffer
	if err := WriteSampleSheetXLSX(&buf, sheet); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if rows[0][1] != "QABCD" || rows[2][1] != "Dr. Ada Lovelace, Analytics (AN) <ada@example.org>" {
		t.Fatalf("unexpected header rows %v", rows[:4])
	}
	if got := strings.Join(rows[headerRows], ","); got != "QBiC Code,Secondary Name,Parent Samples (Source)" {
		t.Fatalf("unexpected table header %q", got)
	}
	if got := strings.Join(rows[headerRows+1], ","); got != "QABCD001AB,patient 1,QABCDENTITY-1" {
		t.Fatalf("unexpected first sample %q", got)
	}
	if rows[headerRows+2][0] != "QABCD002AJ" {
		t.Fatalf("unexpected second sample %v", rows[headerRows+2])
	}
}
