package models

import (
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
)

type NodeLevel int

const (
	Campaign NodeLevel = iota
	Ad
	AdSet
)

// Column is the Properties column holding identifiers at this level.
func (l NodeLevel) Column() string {
	switch l {
	case Ad:
		return "adId"
	case AdSet:
		return "adSetId"
	default:
		return "campaignId"
	}
}

func (l NodeLevel) String() string {
	switch l {
	case Ad:
		return "ad"
	case AdSet:
		return "adSet"
	default:
		return "campaign"
	}
}

// ParseNodeLevel accepts the query DSL tokens campaign, ad and adSet.
func ParseNodeLevel(s string) (NodeLevel, error) {
	switch s {
	case "campaign":
		return Campaign, nil
	case "ad":
		return Ad, nil
	case "adSet":
		return AdSet, nil
	}
	return 0, fmt.Errorf("unknown marketing node level %q", s)
}

type TimeBreakdown int

const (
	TimeBreakdownNone TimeBreakdown = iota
	TimeBreakdownDay
)

type NodeFilter struct {
	Level  NodeLevel
	Values []string
}

type Query struct {
	Metrics             []Metric
	OrgID               string
	StartDate           civil.Date
	EndDate             civil.Date
	NodeBreakdown       *NodeLevel
	NodeFilter          *NodeFilter
	AdPlatformBreakdown bool
	TimeBreakdown       TimeBreakdown
}

// InputDataRow is one row returned by executing the compiled SQL.
type InputDataRow struct {
	Value         float64
	Date          *civil.Date
	MetricName    string
	MarketingNode *string
	AdPlatform    string
}

// OutputDataRow is one metric-indexed result row.
type OutputDataRow struct {
	Value         float64
	StartDate     civil.Date
	EndDate       civil.Date
	MetricIndex   int
	MarketingNode *string
	AdPlatform    *string
}

// NameSet is a deduplicated, sorted set of metric names.
type NameSet []string

func NewNameSet(names ...string) NameSet {
	seen := make(map[string]struct{}, len(names))
	out := make(NameSet, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (s NameSet) Contains(name string) bool {
	i := sort.SearchStrings(s, name)
	return i < len(s) && s[i] == name
}

// Metric is one of UpperFunnelMetric, SummationMetric or DivisionMetric.
type Metric interface {
	metric()
}

type UpperFunnelMetric struct {
	Name string
}

type SummationMetric struct {
	Names NameSet
}

type DivisionMetric struct {
	Numerator   NameSet
	Denominator NameSet
}

func (UpperFunnelMetric) metric() {}
func (SummationMetric) metric()   {}
func (DivisionMetric) metric()    {}

// BaseNames lists the stored metric names a definition reads.
func BaseNames(m Metric) []string {
	switch m := m.(type) {
	case UpperFunnelMetric:
		return []string{m.Name}
	case SummationMetric:
		return m.Names
	case DivisionMetric:
		out := make([]string, 0, len(m.Numerator)+len(m.Denominator))
		out = append(out, m.Numerator...)
		return append(out, m.Denominator...)
	}
	return nil
}

func Ptr[T any](v T) *T { return &v }
