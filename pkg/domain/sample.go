// Package domain defines the registry records, label projections, directory
// entities and code helpers shared by the barcoder service.
package domain

import (
	"strings"
	"time"
)

// SampleKind identifies one of the registry sample types the service understands.
type SampleKind int

// Known sample kinds. KindUnknown keeps the raw registry string on the SampleType.
const (
	KindUnknown SampleKind = iota
	KindBiologicalSample
	KindTestSample
	KindNGSSingleRun
	KindMHCLigandExtract
	KindMSRun
	KindImagingRun
	KindBiologicalEntity
)

var sampleTypeCodes = map[SampleKind]string{
	KindBiologicalSample: "Q_BIOLOGICAL_SAMPLE",
	KindTestSample:       "Q_TEST_SAMPLE",
	KindNGSSingleRun:     "Q_NGS_SINGLE_SAMPLE_RUN",
	KindMHCLigandExtract: "Q_MHC_LIGAND_EXTRACT",
	KindMSRun:            "Q_MS_RUN",
	KindImagingRun:       "Q_BMI_GENERIC_IMAGING_RUN",
	KindBiologicalEntity: "Q_BIOLOGICAL_ENTITY",
}

// SampleType is a closed variant over the registry's sample type codes. Types
// the service does not know are carried as KindUnknown with their raw code.
type SampleType struct {
	kind SampleKind
	raw  string
}

// Predefined sample types.
var (
	SampleTypeBiological       = SampleType{kind: KindBiologicalSample, raw: "Q_BIOLOGICAL_SAMPLE"}
	SampleTypeTest             = SampleType{kind: KindTestSample, raw: "Q_TEST_SAMPLE"}
	SampleTypeNGSSingleRun     = SampleType{kind: KindNGSSingleRun, raw: "Q_NGS_SINGLE_SAMPLE_RUN"}
	SampleTypeMHCLigandExtract = SampleType{kind: KindMHCLigandExtract, raw: "Q_MHC_LIGAND_EXTRACT"}
	SampleTypeMSRun            = SampleType{kind: KindMSRun, raw: "Q_MS_RUN"}
	SampleTypeImagingRun       = SampleType{kind: KindImagingRun, raw: "Q_BMI_GENERIC_IMAGING_RUN"}
	SampleTypeBiologicalEntity = SampleType{kind: KindBiologicalEntity, raw: "Q_BIOLOGICAL_ENTITY"}
)

// ParseSampleType maps a registry code to a SampleType. It never fails.
func ParseSampleType(raw string) SampleType {
	code := strings.TrimSpace(raw)
	for kind, known := range sampleTypeCodes {
		if known == code {
			return SampleType{kind: kind, raw: known}
		}
	}
	return SampleType{kind: KindUnknown, raw: code}
}

// Kind returns the variant tag.
func (t SampleType) Kind() SampleKind { return t.kind }

// String returns the registry code.
func (t SampleType) String() string { return t.raw }

// IsUnknown reports whether the registry code was not recognised.
func (t SampleType) IsUnknown() bool { return t.kind == KindUnknown }

// IsBarcodeRelevant reports whether samples of this type get labels.
func (t SampleType) IsBarcodeRelevant() bool {
	switch t.kind {
	case KindBiologicalSample, KindTestSample, KindNGSSingleRun,
		KindMHCLigandExtract, KindMSRun, KindImagingRun:
		return true
	default:
		return false
	}
}

// MarshalText encodes the type as its registry code.
func (t SampleType) MarshalText() ([]byte, error) { return []byte(t.raw), nil }

// UnmarshalText decodes a registry code.
func (t *SampleType) UnmarshalText(b []byte) error {
	*t = ParseSampleType(string(b))
	return nil
}

// Registry property keys read by the service.
const (
	PropSecondaryName  = "Q_SECONDARY_NAME"
	PropExternalID     = "Q_EXTERNALDB_ID"
	PropPrimaryTissue  = "Q_PRIMARY_TISSUE"
	PropSampleType     = "Q_SAMPLE_TYPE"
	PropMHCClass       = "Q_MHC_CLASS"
	PropAntibody       = "Q_ANTIBODY"
	PropOrganism       = "Q_NCBI_ORGANISM"
	PropSequencingType = "Q_SEQUENCING_TYPE"
	PropImagingModal   = "Q_BMI_MODALITY"
)

// Factor is one experimental design variable attached to a sample.
type Factor struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// SampleRecord is a read-only row from the sample registry.
type SampleRecord struct {
	Code             string            `json:"code"`
	Type             SampleType        `json:"type"`
	Properties       map[string]string `json:"properties,omitempty"`
	Factors          []Factor          `json:"factors,omitempty"`
	Parents          []string          `json:"parents,omitempty"`
	RegistrationDate time.Time         `json:"registration_date"`
	ExperimentID     string            `json:"experiment_id"`
}

// Property returns a property value or "" when missing.
func (s SampleRecord) Property(key string) string {
	if s.Properties == nil {
		return ""
	}
	return s.Properties[key]
}

// HasProperty reports whether the key is set on the sample.
func (s SampleRecord) HasProperty(key string) bool {
	_, ok := s.Properties[key]
	return ok
}

// Experiment is a registry experiment.
type Experiment struct {
	Identifier string            `json:"identifier"`
	Code       string            `json:"code"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Property returns a property value or "" when missing.
func (e Experiment) Property(key string) string {
	if e.Properties == nil {
		return ""
	}
	return e.Properties[key]
}

// Project is a registry project inside a space.
type Project struct {
	Code        string `json:"code"`
	Space       string `json:"space"`
	Identifier  string `json:"identifier"`
	Description string `json:"description,omitempty"`
}

// ProjectIdentifier joins space and project code into the registry form /SPACE/PROJECT.
func ProjectIdentifier(space, project string) string {
	return "/" + space + "/" + project
}
