package domain

// BarcodeBean is the flat label projection of one sample. Beans are built once
// and never mutated; use the accessors.
type BarcodeBean struct {
	code          string
	codedString   string
	firstInfo     string
	altInfo       string
	bioType       string
	parents       []string
	secondaryName string
	externalID    string
}

// BeanFields carries the values of a new bean.
type BeanFields struct {
	Code          string
	CodedString   string
	FirstInfo     string
	AltInfo       string
	BioType       string
	Parents       []string
	SecondaryName string
	ExternalID    string
}

// NewBarcodeBean builds an immutable bean from its fields.
func NewBarcodeBean(f BeanFields) BarcodeBean {
	return BarcodeBean{
		code:          f.Code,
		codedString:   f.CodedString,
		firstInfo:     f.FirstInfo,
		altInfo:       f.AltInfo,
		bioType:       f.BioType,
		parents:       append([]string(nil), f.Parents...),
		secondaryName: f.SecondaryName,
		externalID:    f.ExternalID,
	}
}

func (b BarcodeBean) Code() string          { return b.code }
func (b BarcodeBean) CodedString() string   { return b.codedString }
func (b BarcodeBean) FirstInfo() string     { return b.firstInfo }
func (b BarcodeBean) AltInfo() string       { return b.altInfo }
func (b BarcodeBean) BioType() string       { return b.bioType }
func (b BarcodeBean) SecondaryName() string { return b.secondaryName }
func (b BarcodeBean) ExternalID() string    { return b.externalID }

// Parents returns a copy of the parent codes.
func (b BarcodeBean) Parents() []string {
	return append([]string(nil), b.parents...)
}

// HasParents reports whether the sample has registered parents.
func (b BarcodeBean) HasParents() bool { return len(b.parents) > 0 }

// Fields exposes the bean values, e.g. for JSON encoding.
func (b BarcodeBean) Fields() BeanFields {
	return BeanFields{
		Code:          b.code,
		CodedString:   b.codedString,
		FirstInfo:     b.firstInfo,
		AltInfo:       b.altInfo,
		BioType:       b.bioType,
		Parents:       b.Parents(),
		SecondaryName: b.secondaryName,
		ExternalID:    b.externalID,
	}
}

func (b BarcodeBean) mapStrings(fn func(string) string) BarcodeBean {
	return BarcodeBean{
		code:          fn(b.code),
		codedString:   fn(b.codedString),
		firstInfo:     fn(b.firstInfo),
		altInfo:       fn(b.altInfo),
		bioType:       fn(b.bioType),
		parents:       b.Parents(),
		secondaryName: fn(b.secondaryName),
		externalID:    fn(b.externalID),
	}
}
