package domain

import "strings"

const (
	latexEscaped = `%&$`
	latexSpecial = `%&$\^_<>~{}#`
)

// EscapeLatex prefixes the characters that break label templates with a
// backslash and trims surrounding whitespace.
func EscapeLatex(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(latexEscaped, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// RemoveLatex drops every LaTeX special character from s and trims it.
func RemoveLatex(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(latexSpecial, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// EscapeBean returns a copy of bean with all display fields escaped.
func EscapeBean(bean BarcodeBean) BarcodeBean {
	return bean.mapStrings(EscapeLatex)
}

// StripBean returns a copy of bean with all LaTeX characters removed.
func StripBean(bean BarcodeBean) BarcodeBean {
	return bean.mapStrings(RemoveLatex)
}

// EscapeBeans applies EscapeBean to every bean.
func EscapeBeans(beans []BarcodeBean) []BarcodeBean {
	out := make([]BarcodeBean, len(beans))
	for i, b := range beans {
		out[i] = EscapeBean(b)
	}
	return out
}

// StripBeans applies StripBean to every bean.
func StripBeans(beans []BarcodeBean) []BarcodeBean {
	out := make([]BarcodeBean, len(beans))
	for i, b := range beans {
		out[i] = StripBean(b)
	}
	return out
}
