package core

import (
	"testing"

	"barcoder/pkg/domain"
)

func summaryOf(samples ...domain.SampleRecord) *domain.ExperimentSummary {
	return &domain.ExperimentSummary{Amount: len(samples), Samples: samples}
}

func TestEffectiveSamples(t *testing.T) {
	a := sample("QABCD001AB", domain.SampleTypeTest, nil)
	b := sample("QABCD002AJ", domain.SampleTypeTest, nil)
	c := sample("QABCD003AR", domain.SampleTypeTest, nil)
	exps := []*domain.ExperimentSummary{summaryOf(a, b), summaryOf(c)}

	if got := EffectiveSamples(exps, nil); len(got) != 3 {
		t.Fatalf("no selection must use all samples, got %d", len(got))
	}
	if got := EffectiveSamples(exps, []domain.SampleRecord{b}); len(got) != 1 || got[0].Code != b.Code {
		t.Fatalf("strict subset must be used, got %+v", got)
	}
	if got := EffectiveSamples(exps, []domain.SampleRecord{c, b, a}); len(got) != 3 || got[0].Code != a.Code {
		t.Fatalf("selecting everything must keep experiment order, got %+v", got)
	}
}

func TestBuildBeans(t *testing.T) {
	s := sample("QABCD001AB", domain.SampleTypeBiological, map[string]string{
		domain.PropPrimaryTissue: "LIVER",
		domain.PropSecondaryName: "patient 1",
		domain.PropExternalID:    "LAB-1",
	})
	s.Parents = []string{"QABCDENTITY-1", "QABCDENTITY-2"}
	b := NewBeanBuilder(nil)

	tube := b.Build([]*domain.ExperimentSummary{summaryOf(s)}, nil, domain.LabelOptions{
		CodedName: domain.CodedSecondaryName, FirstInfo: domain.InfoMaterial, AltInfo: domain.InfoParents, Cut: true,
	})
	if len(tube) != 1 {
		t.Fatalf("expected one bean, got %d", len(tube))
	}
	bean := tube[0]
	if bean.Code() != "QABCD001AB" || bean.CodedString() != "patient_1" || bean.FirstInfo() != "LIVER" {
		t.Fatalf("unexpected tube bean %+v", bean.Fields())
	}
	if bean.AltInfo() != "QABCDENTITY-1 QABCDEN" {
		t.Fatalf("parents must be cut to sticker width, got %q", bean.AltInfo())
	}
	if bean.BioType() != "LIVER" || bean.SecondaryName() != "patient 1" || bean.ExternalID() != "LAB-1" || len(bean.Parents()) != 2 {
		t.Fatalf("unexpected bean fields %+v", bean.Fields())
	}

	sheet := b.Build([]*domain.ExperimentSummary{summaryOf(s)}, nil, domain.DefaultSheetOptions)
	if sheet[0].CodedString() != "QABCD001AB" || sheet[0].AltInfo() != "QABCDENTITY-1 QABCDENTITY-2" {
		t.Fatalf("sheet beans must not be cut: %+v", sheet[0].Fields())
	}
}

func TestBeanBioType(t *testing.T) {
	cases := []struct {
		s    domain.SampleRecord
		want string
	}{
		{sample("QABCD001AB", domain.SampleTypeTest, map[string]string{domain.PropSampleType: "RNA"}), "RNA"},
		{sample("QABCD001AB", domain.SampleTypeTest, nil), "unknown"},
		{sample("QABCD001AB", domain.SampleTypeMHCLigandExtract, map[string]string{domain.PropMHCClass: "II"}), "II"},
		{sample("QABCD001AB", domain.SampleTypeMSRun, nil), "NGS RUN"},
		{sample("QABCD001AB", domain.SampleTypeImagingRun, nil), "Imaging RUN"},
		{sample("QABCD001AB", domain.SampleTypeNGSSingleRun, nil), "unknown"},
		{sample("QABCD001AB", domain.ParseSampleType("Q_OTHER"), nil), "unknown"},
	}
	for _, tc := range cases {
		if got := BeanBioType(tc.s); got != tc.want {
			t.Errorf("%s: want %q got %q", tc.s.Type, tc.want, got)
		}
	}
}

func TestSortBeans(t *testing.T) {
	mk := func(code, ext, bio, sec string) domain.BarcodeBean {
		return domain.NewBarcodeBean(domain.BeanFields{Code: code, ExternalID: ext, BioType: bio, SecondaryName: sec})
	}
	beans := func() []domain.BarcodeBean {
		return []domain.BarcodeBean{
			mk("QABCD001BA", "L2", "RNA", "b"),
			mk("QABCD999AX", "L3", "DNA", "c"),
			mk("QABCD002AJ", "L1", "PROTEIN", "a"),
		}
	}
	codes := func(bs []domain.BarcodeBean) string {
		var out string
		for _, b := range bs {
			out += b.Code()[5:8] + " "
		}
		return out
	}
	cases := map[domain.SortBy]string{
		domain.SortBarcodeID:     "002 999 001 ",
		domain.SortExternalID:    "002 001 999 ",
		domain.SortSampleType:    "999 002 001 ",
		domain.SortSecondaryName: "002 001 999 ",
		"unknown":                "001 999 002 ",
	}
	for by, want := range cases {
		bs := beans()
		SortBeans(bs, by, nil)
		if got := codes(bs); got != want {
			t.Errorf("%s: want %q got %q", by, want, got)
		}
	}
}

func TestSortBeansByCodeUsesTrailingCharacters(t *testing.T) {
	bs := []domain.BarcodeBean{
		domain.NewBarcodeBean(domain.BeanFields{Code: "QABCD002AC"}),
		domain.NewBarcodeBean(domain.BeanFields{Code: "QABCD002AB"}),
	}
	SortBeans(bs, domain.SortBarcodeID, nil)
	if bs[0].Code() != "QABCD002AB" || bs[1].Code() != "QABCD002AC" {
		t.Fatalf("unexpected order %s %s", bs[0].Code(), bs[1].Code())
	}
}
