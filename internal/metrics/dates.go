package metrics

import (
	"sort"

	"cloud.google.com/go/civil"

	"github.com/AngelCh415/quasr/internal/models"
)

// resolveDate returns the filter date when no time breakdown is requested
// and the row's own date under a daily breakdown.
func resolveDate(self *civil.Date, filter civil.Date, tb models.TimeBreakdown) (civil.Date, error) {
	if tb == models.TimeBreakdownNone {
		return filter, nil
	}
	if self == nil {
		return civil.Date{}, ErrMissingDate
	}
	return *self, nil
}

// SortRows orders rows by start date, metric index, marketing node, end
// date and platform. Absent nodes and platforms sort first.
func SortRows(rows []models.OutputDataRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.StartDate != b.StartDate {
			return a.StartDate.Before(b.StartDate)
		}
		if a.MetricIndex != b.MetricIndex {
			return a.MetricIndex < b.MetricIndex
		}
		if c := cmpOpt(a.MarketingNode, b.MarketingNode); c != 0 {
			return c < 0
		}
		if a.EndDate != b.EndDate {
			return a.EndDate.Before(b.EndDate)
		}
		return cmpOpt(a.AdPlatform, b.AdPlatform) < 0
	})
}

func cmpOpt(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}
