package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var barcodePattern = regexp.MustCompile(`^Q[A-Z0-9]{4}[0-9]{3}[A-Z0-9]{2}$`)

// IsBarcode reports whether code is a full sample barcode such as QABCD001AB.
func IsBarcode(code string) bool {
	return barcodePattern.MatchString(code)
}

// ProjectPrefix returns the 4 or 5 character project prefix of a sample code.
func ProjectPrefix(code string) string {
	if len(code) < 5 {
		return code
	}
	if c := code[4]; c >= '0' && c <= '9' {
		return code[:4]
	}
	return code[:5]
}

// ProjectDir returns the fixed five character prefix used for result folders.
func ProjectDir(code string) string {
	if len(code) < 5 {
		return code
	}
	return code[:5]
}

// CompareSampleCodes orders barcodes by project, letter and number, with the
// trailing characters breaking ties, so that QABCD999A sorts before QABCD001B.
// Codes that are not Q codes or that name entities are compared
// lexicographically. The result is -1, 0 or 1.
func CompareSampleCodes(a, b string) int {
	if !strings.HasPrefix(a, "Q") || strings.Contains(a, "ENTITY") ||
		!strings.HasPrefix(b, "Q") || strings.Contains(b, "ENTITY") {
		return strings.Compare(a, b)
	}
	if len(a) < 9 || len(b) < 9 {
		return strings.Compare(a, b)
	}
	if c := strings.Compare(a[:5], b[:5]); c != 0 {
		return c
	}
	if c := strings.Compare(a[8:9], b[8:9]); c != 0 {
		return c
	}
	if c := strings.Compare(a[5:8], b[5:8]); c != 0 {
		return c
	}
	return strings.Compare(a[9:], b[9:])
}

// IncrementSampleCode returns the code following code in registration order,
// with a fresh checksum. 999 rolls over to 001 and advances the letter, X
// wrapping to A.
func IncrementSampleCode(code string) (string, error) {
	if len(code) < 9 {
		return "", fmt.Errorf("sample code %q too short", code)
	}
	n, err := strconv.Atoi(code[5:8])
	if err != nil {
		return "", fmt.Errorf("sample code %q: %w", code, err)
	}
	letter := code[8]
	n++
	if n > 999 {
		n = 1
		letter = nextUppercase(letter)
	}
	next := fmt.Sprintf("%s%03d%c", code[:5], n, letter)
	return next + string(Checksum(next)), nil
}

func nextUppercase(c byte) byte {
	if c == 'X' {
		return 'A'
	}
	return c + 1
}

// Checksum computes the position weighted check character of s.
func Checksum(s string) byte {
	sum := 0
	for i := 0; i < len(s); i++ {
		sum += int(s[i]) * (i + 1)
	}
	c := sum%34 + 48
	if c > 57 {
		c += 7
	}
	return byte(c)
}

// BarcodeRange renders the numeric span of codes, e.g. QABC001-042.
func BarcodeRange(codes []string) string {
	if len(codes) == 0 || len(codes[0]) < 8 {
		return ""
	}
	min := codes[0][5:8]
	max := min
	for _, code := range codes {
		if len(code) < 8 {
			continue
		}
		num := code[5:8]
		if num < min {
			min = num
		}
		if num > max {
			max = num
		}
	}
	return ProjectPrefix(codes[0]) + min + "-" + max
}

// IsMeasurementOfBarcode reports whether code is a barcode prefixed with the
// measurement tag of sampleType, e.g. MSQABCD001AB for Q_MS_RUN.
func IsMeasurementOfBarcode(code, sampleType string) bool {
	parts := strings.Split(sampleType, "_")
	if len(parts) > 1 {
		code = strings.Replace(code, parts[1], "", 1)
	}
	return IsBarcode(code)
}
