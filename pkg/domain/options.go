package domain

// InfoOption names the value printed on one of the two info lines.
type InfoOption string

// Info line choices offered for tube stickers and sample sheets.
const (
	InfoMaterial      InfoOption = "Tissue/Extr. Material"
	InfoOrganism      InfoOption = "Organism"
	InfoSecondaryName InfoOption = "Secondary Name"
	InfoCode          InfoOption = "QBiC Code"
	InfoLabID         InfoOption = "Lab ID"
	InfoMHCType       InfoOption = "MHC Type"
	InfoAntibody      InfoOption = "Used Antibody"
	InfoParents       InfoOption = "Parent Samples (Source)"
)

// TubeInfoOptions lists the fixed choices for tube stickers.
var TubeInfoOptions = []InfoOption{InfoMaterial, InfoOrganism, InfoSecondaryName, InfoCode, InfoLabID, InfoMHCType, InfoAntibody}

// SheetInfoOptions lists the fixed choices for sample sheet columns.
var SheetInfoOptions = []InfoOption{InfoMaterial, InfoOrganism, InfoSecondaryName, InfoCode, InfoLabID, InfoMHCType, InfoAntibody, InfoParents}

// CodedName selects the identifier printed as the label header.
type CodedName string

const (
	CodedQBiCID        CodedName = "QBiC ID"
	CodedSecondaryName CodedName = "Secondary Name"
	CodedLabID         CodedName = "Lab ID"
)

// LabelOptions are the caller's display choices for one bean build.
type LabelOptions struct {
	CodedName CodedName  `json:"coded_name"`
	FirstInfo InfoOption `json:"first_info"`
	AltInfo   InfoOption `json:"alt_info"`
	// Cut truncates info and header lines to sticker width.
	Cut bool `json:"cut"`
}

// DefaultTubeOptions mirror the sticker preview defaults.
var DefaultTubeOptions = LabelOptions{
	CodedName: CodedQBiCID,
	FirstInfo: InfoMaterial,
	AltInfo:   InfoSecondaryName,
	Cut:       true,
}

// DefaultSheetOptions mirror the sample sheet defaults.
var DefaultSheetOptions = LabelOptions{
	CodedName: CodedQBiCID,
	FirstInfo: InfoSecondaryName,
	AltInfo:   InfoParents,
}

// SortBy names the ordering applied to beans before printing.
type SortBy string

const (
	SortBarcodeID     SortBy = "Barcode ID (recommended)"
	SortExternalID    SortBy = "Lab ID"
	SortSecondaryName SortBy = "Secondary Name"
	SortSampleType    SortBy = "Tissue/Source"
)
