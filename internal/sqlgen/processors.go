package sqlgen

import (
	"fmt"
	"strings"

	"github.com/AngelCh415/quasr/internal/models"
)

// Processor contributes SELECT, WHERE and GROUP BY fragments for a query.
type Processor interface {
	Select(q models.Query) []string
	Filter(q models.Query) []string
	GroupBy(q models.Query) []string
}

const DefaultPlatformTag = "Twitter"

// Base selects the summed value, metric name and platform, scopes to the
// organization and joins the three tables.
type Base struct {
	PlatformTag string
}

func (b Base) Select(models.Query) []string {
	return []string{
		"SUM(sourceValue) AS sourceValue",
		"UpperFunnelMetricFields.name as name",
		Quote(b.PlatformTag) + " as ad_platform",
	}
}

func (Base) Filter(q models.Query) []string {
	return []string{
		"UpperFunnelMetricFields.organizationId=" + Quote(q.OrgID),
		"UpperFunnelMetricFields.id=UpperFunnelMetricValues.upperFunnelMetricFieldId",
		"Properties.id=UpperFunnelMetricValues.propertyId",
	}
}

func (Base) GroupBy(models.Query) []string {
	return []string{"UpperFunnelMetricFields.name", "ad_platform", "qdate"}
}

type NodeBreakdown struct{}

func (NodeBreakdown) Select(q models.Query) []string {
	if q.NodeBreakdown == nil {
		return []string{"NULL as marketing_node"}
	}
	return []string{fmt.Sprintf("Properties.%s AS marketing_node", q.NodeBreakdown.Column())}
}

func (NodeBreakdown) Filter(models.Query) []string { return nil }

func (NodeBreakdown) GroupBy(q models.Query) []string {
	if q.NodeBreakdown == nil {
		return nil
	}
	return []string{"Properties." + q.NodeBreakdown.Column()}
}

type TimeFilter struct{}

func (TimeFilter) Select(models.Query) []string { return nil }

func (TimeFilter) Filter(q models.Query) []string {
	return []string{
		"date>=" + Quote(q.StartDate.String()),
		"date<=" + Quote(q.EndDate.String()),
	}
}

func (TimeFilter) GroupBy(models.Query) []string { return nil }

// TimeBreakdown always emits the qdate alias that Base groups by.
type TimeBreakdown struct{}

func (TimeBreakdown) Select(q models.Query) []string {
	if q.TimeBreakdown == models.TimeBreakdownDay {
		return []string{"date AS qdate"}
	}
	return []string{"NULL as qdate"}
}

func (TimeBreakdown) Filter(models.Query) []string { return nil }

func (TimeBreakdown) GroupBy(models.Query) []string { return nil }

type NodeFilter struct{}

func (NodeFilter) Select(models.Query) []string { return nil }

func (NodeFilter) Filter(q models.Query) []string {
	if q.NodeFilter == nil {
		return nil
	}
	return []string{fmt.Sprintf("Properties.%s IN (%s)", q.NodeFilter.Level.Column(), quoteList(q.NodeFilter.Values))}
}

func (NodeFilter) GroupBy(models.Query) []string { return nil }

// MetricSelector restricts fetched rows to the base metrics the query
// reads. An empty metric list yields IN (), which matches nothing.
type MetricSelector struct{}

func (MetricSelector) Select(models.Query) []string { return nil }

func (MetricSelector) Filter(q models.Query) []string {
	seen := map[string]struct{}{}
	var names []string
	for _, m := range q.Metrics {
		for _, n := range models.BaseNames(m) {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			names = append(names, n)
		}
	}
	return []string{fmt.Sprintf("UpperFunnelMetricFields.name IN (%s)", quoteList(names))}
}

func (MetricSelector) GroupBy(models.Query) []string { return nil }

// Quote renders s as a double-quoted string literal. Embedded double
// quotes are doubled, which MySQL and SQLite both read back as one quote.
func Quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteList(vals []string) string {
	q := make([]string, len(vals))
	for i, v := range vals {
		q[i] = Quote(v)
	}
	return strings.Join(q, ",")
}
