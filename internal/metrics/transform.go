// Package metrics turns raw metric-value rows into metric-indexed output
// rows for a query.
package metrics

import (
	"errors"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/AngelCh415/quasr/internal/models"
)

// ErrMissingDate reports a row without a date under a daily breakdown.
// The execution layer must always supply qdate in that case, so this is
// an internal inconsistency rather than bad input.
var ErrMissingDate = errors.New("row has no date under daily time breakdown")

// groupKey identifies one (date, marketing node, ad platform) bucket.
type groupKey struct {
	date     civil.Date
	hasDate  bool
	node     string
	hasNode  bool
	platform string
}

func keyOf(r models.InputDataRow) groupKey {
	k := groupKey{platform: r.AdPlatform}
	if r.Date != nil {
		k.date, k.hasDate = *r.Date, true
	}
	if r.MarketingNode != nil {
		k.node, k.hasNode = *r.MarketingNode, true
	}
	return k
}

func (k groupKey) datePtr() *civil.Date {
	if !k.hasDate {
		return nil
	}
	d := k.date
	return &d
}

func (k groupKey) nodePtr() *string {
	if !k.hasNode {
		return nil
	}
	n := k.node
	return &n
}

// Transform computes every metric of q from rows. Output order within a
// metric is unspecified; use SortRows before exposing it.
func Transform(q models.Query, rows []models.InputDataRow) ([]models.OutputDataRow, error) {
	var out []models.OutputDataRow
	for idx, m := range q.Metrics {
		var (
			part []models.OutputDataRow
			err  error
		)
		switch m := m.(type) {
		case models.UpperFunnelMetric:
			part, err = upperFunnel(idx, m.Name, rows, q)
		case models.SummationMetric:
			part, err = summation(idx, m.Names, rows, q)
		case models.DivisionMetric:
			part, err = division(idx, m.Numerator, m.Denominator, rows, q)
		default:
			return nil, fmt.Errorf("metric %d: unsupported definition %T", idx, m)
		}
		if err != nil {
			return nil, fmt.Errorf("metric %d: %w", idx, err)
		}
		out = append(out, part...)
	}
	return out, nil
}

func upperFunnel(idx int, name string, rows []models.InputDataRow, q models.Query) ([]models.OutputDataRow, error) {
	var out []models.OutputDataRow
	for _, r := range rows {
		if r.MetricName != name {
			continue
		}
		row, err := outputRow(idx, keyOf(r), r.Value, q)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func summation(idx int, names models.NameSet, rows []models.InputDataRow, q models.Query) ([]models.OutputDataRow, error) {
	sums := sumBy(names, rows)
	out := make([]models.OutputDataRow, 0, len(sums))
	for k, v := range sums {
		row, err := outputRow(idx, k, v, q)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// division emits one row per key seen on either side; a missing side
// counts as zero.
func division(idx int, num, den models.NameSet, rows []models.InputDataRow, q models.Query) ([]models.OutputDataRow, error) {
	nums := sumBy(num, rows)
	dens := sumBy(den, rows)

	keys := make(map[groupKey]struct{}, len(nums)+len(dens))
	for k := range nums {
		keys[k] = struct{}{}
	}
	for k := range dens {
		keys[k] = struct{}{}
	}

	out := make([]models.OutputDataRow, 0, len(keys))
	for k := range keys {
		row, err := outputRow(idx, k, safeDivF(nums[k], dens[k]), q)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func sumBy(names models.NameSet, rows []models.InputDataRow) map[groupKey]float64 {
	sums := map[groupKey]float64{}
	for _, r := range rows {
		if names.Contains(r.MetricName) {
			sums[keyOf(r)] += r.Value
		}
	}
	return sums
}

func outputRow(idx int, k groupKey, v float64, q models.Query) (models.OutputDataRow, error) {
	start, err := resolveDate(k.datePtr(), q.StartDate, q.TimeBreakdown)
	if err != nil {
		return models.OutputDataRow{}, err
	}
	end, err := resolveDate(k.datePtr(), q.EndDate, q.TimeBreakdown)
	if err != nil {
		return models.OutputDataRow{}, err
	}
	row := models.OutputDataRow{
		Value:         v,
		StartDate:     start,
		EndDate:       end,
		MetricIndex:   idx,
		MarketingNode: k.nodePtr(),
	}
	if q.AdPlatformBreakdown {
		row.AdPlatform = models.Ptr(k.platform)
	}
	return row, nil
}

func safeDivF(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
