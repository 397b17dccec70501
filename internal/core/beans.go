package core

import (
	"strings"

	"barcoder/pkg/domain"
)

// BeanBuilder projects selected samples onto barcode beans.
type BeanBuilder struct {
	translator *FieldTranslator
}

// NewBeanBuilder builds beans with the given translator.
func NewBeanBuilder(t *FieldTranslator) *BeanBuilder {
	if t == nil {
		t = NewFieldTranslator(nil)
	}
	return &BeanBuilder{translator: t}
}

// EffectiveSamples returns the samples to label: the union of the selected
// experiments, or the sub selection when it is non-empty and smaller than
// that union.
func EffectiveSamples(experiments []*domain.ExperimentSummary, selection []domain.SampleRecord) []domain.SampleRecord {
	var all []domain.SampleRecord
	for _, e := range experiments {
		all = append(all, e.Samples...)
	}
	if len(selection) > 0 && len(selection) < len(all) {
		return selection
	}
	return all
}

// Build creates one bean per effective sample. opts.Cut selects sticker
// layout: a translated header and truncated info lines.
func (b *BeanBuilder) Build(experiments []*domain.ExperimentSummary, selection []domain.SampleRecord, opts domain.LabelOptions) []domain.BarcodeBean {
	samples := EffectiveSamples(experiments, selection)
	beans := make([]domain.BarcodeBean, 0, len(samples))
	for _, s := range samples {
		parents := strings.Join(s.Parents, " ")
		coded := s.Code
		if opts.Cut {
			coded = b.translator.CodeString(s, opts.CodedName)
		}
		beans = append(beans, domain.NewBarcodeBean(domain.BeanFields{
			Code:          s.Code,
			CodedString:   coded,
			FirstInfo:     b.translator.BuildInfo(opts.FirstInfo, s, parents, opts.Cut),
			AltInfo:       b.translator.BuildInfo(opts.AltInfo, s, parents, opts.Cut),
			BioType:       BeanBioType(s),
			Parents:       s.Parents,
			SecondaryName: s.Property(domain.PropSecondaryName),
			ExternalID:    s.Property(domain.PropExternalID),
		}))
	}
	return beans
}

// BeanBioType resolves the tissue/source string of a sample from the
// property its type stores it in, with per type fallbacks.
func BeanBioType(s domain.SampleRecord) string {
	var key string
	switch s.Type.Kind() {
	case domain.KindBiologicalSample:
		key = domain.PropPrimaryTissue
	case domain.KindTestSample:
		key = domain.PropSampleType
	case domain.KindMHCLigandExtract:
		key = domain.PropMHCClass
	case domain.KindNGSSingleRun, domain.KindMSRun, domain.KindImagingRun:
	default:
		return "unknown"
	}
	if key != "" && s.HasProperty(key) {
		return s.Property(key)
	}
	switch s.Type.Kind() {
	case domain.KindMSRun:
		return "NGS RUN"
	case domain.KindImagingRun:
		return "Imaging RUN"
	default:
		return "unknown"
	}
}
