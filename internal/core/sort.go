package core

import (
	"sort"

	"barcoder/pkg/domain"
)

// SortBeans orders beans in place. An unknown sorter leaves the order as is.
func SortBeans(beans []domain.BarcodeBean, by domain.SortBy, logger Logger) {
	var less func(a, b domain.BarcodeBean) bool
	switch by {
	case domain.SortBarcodeID:
		less = func(a, b domain.BarcodeBean) bool { return domain.CompareSampleCodes(a.Code(), b.Code()) < 0 }
	case domain.SortExternalID:
		less = func(a, b domain.BarcodeBean) bool { return a.ExternalID() < b.ExternalID() }
	case domain.SortSampleType:
		less = func(a, b domain.BarcodeBean) bool { return a.BioType() < b.BioType() }
	case domain.SortSecondaryName:
		less = func(a, b domain.BarcodeBean) bool { return a.SecondaryName() < b.SecondaryName() }
	default:
		orNop(logger).Warn("unknown bean sorter, keeping order", "sort_by", string(by))
		return
	}
	sort.SliceStable(beans, func(i, j int) bool { return less(beans[i], beans[j]) })
}
