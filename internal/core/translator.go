package core

import (
	"strings"
	"unicode/utf8"

	"barcoder/pkg/domain"
)

const (
	// HeaderMaxLength is the width of the id line on a tube sticker.
	HeaderMaxLength = 15
	// InfoMaxLength is the width of each info line on a tube sticker.
	InfoMaxLength = 21
)

// FieldTranslator renders the info and header lines of a label.
type FieldTranslator struct {
	logger Logger
}

// NewFieldTranslator builds a translator logging unknown options on logger.
func NewFieldTranslator(logger Logger) *FieldTranslator {
	return &FieldTranslator{logger: orNop(logger)}
}

// BuildInfo resolves option for sample s. Options outside the fixed tables
// are looked up as experimental factor labels, then as raw property keys.
// parents is the space separated parent list used by the sheet option.
func (t *FieldTranslator) BuildInfo(option domain.InfoOption, s domain.SampleRecord, parents string, cut bool) string {
	var res string
	switch option {
	case "":
		return ""
	case domain.InfoMaterial:
		res = material(s)
	case domain.InfoOrganism:
		res = s.Property(domain.PropOrganism)
	case domain.InfoMHCType:
		res = s.Property(domain.PropMHCClass)
	case domain.InfoAntibody:
		res = s.Property(domain.PropAntibody)
	case domain.InfoParents:
		res = parents
	case domain.InfoSecondaryName:
		res = s.Property(domain.PropSecondaryName)
	case domain.InfoCode:
		res = s.Code
	case domain.InfoLabID:
		res = s.Property(domain.PropExternalID)
	default:
		for _, f := range s.Factors {
			if f.Label == string(option) {
				return factorString(f, cut)
			}
		}
		if s.HasProperty(string(option)) {
			res = s.Property(string(option))
			break
		}
		t.logger.Debug("info option not set for sample", "option", string(option), "sample", s.Code)
		return ""
	}
	if cut {
		res = truncate(res, InfoMaxLength)
	}
	return res
}

func material(s domain.SampleRecord) string {
	switch {
	case s.HasProperty(domain.PropPrimaryTissue):
		return s.Property(domain.PropPrimaryTissue)
	case s.HasProperty(domain.PropMHCClass):
		return s.Property(domain.PropMHCClass)
	default:
		return s.Property(domain.PropSampleType)
	}
}

// factorString renders "label value unit", dropping the label and then the
// unit when the result would not fit a sticker line.
func factorString(f domain.Factor, cut bool) string {
	val := f.Value
	if f.Unit != "" {
		val += " " + f.Unit
	}
	res := f.Label + " " + val
	if !cut {
		return res
	}
	if utf8.RuneCountInString(res) > InfoMaxLength {
		res = val
	}
	if utf8.RuneCountInString(res) > InfoMaxLength {
		res = f.Value
	}
	return truncate(res, InfoMaxLength)
}

// CodeString renders the header line of a tube sticker for the chosen identifier.
func (t *FieldTranslator) CodeString(s domain.SampleRecord, coded domain.CodedName) string {
	var res string
	switch coded {
	case domain.CodedQBiCID:
		res = s.Code
	case domain.CodedSecondaryName:
		res = s.Property(domain.PropSecondaryName)
	case domain.CodedLabID:
		res = s.Property(domain.PropExternalID)
	default:
		t.logger.Warn("unknown coded name, using sample code", "coded_name", string(coded))
		res = s.Code
	}
	return truncate(fixFileName(res), HeaderMaxLength)
}

var fileNameReplacer = strings.NewReplacer(";", "_", "#", "_", " ", "_")

func fixFileName(s string) string {
	s = strings.ReplaceAll(s, "null", "")
	s = fileNameReplacer.Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return s
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
