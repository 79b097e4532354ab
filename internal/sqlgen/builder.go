// Package sqlgen compiles a query into one SQL statement over the metric
// value, metric field and property tables.
package sqlgen

import (
	"strings"

	"github.com/AngelCh415/quasr/internal/models"
)

const (
	fromClause = "UpperFunnelMetricValues,UpperFunnelMetricFields,Properties"
	whereSep   = " AND "
)

type Builder struct {
	procs []Processor
}

type Option func(*builderOpts)

type builderOpts struct {
	platformTag string
}

// WithPlatformTag sets the literal platform reported for every row.
func WithPlatformTag(tag string) Option {
	return func(o *builderOpts) {
		if tag != "" {
			o.platformTag = tag
		}
	}
}

func NewBuilder(opts ...Option) *Builder {
	o := builderOpts{platformTag: DefaultPlatformTag}
	for _, fn := range opts {
		fn(&o)
	}
	return &Builder{procs: []Processor{
		Base{PlatformTag: o.platformTag},
		NodeBreakdown{},
		TimeFilter{},
		TimeBreakdown{},
		NodeFilter{},
		MetricSelector{},
	}}
}

// Build never fails; a malformed query produces valid SQL that selects
// nothing useful.
func (b *Builder) Build(q models.Query) string {
	var selects, filters, groupbys []string
	for _, p := range b.procs {
		selects = append(selects, p.Select(q)...)
	}
	for _, p := range b.procs {
		filters = append(filters, p.Filter(q)...)
	}
	for _, p := range b.procs {
		groupbys = append(groupbys, p.GroupBy(q)...)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selects, ","))
	sb.WriteString(" FROM ")
	sb.WriteString(fromClause)
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(filters, whereSep))
	sb.WriteString(" GROUP BY ")
	sb.WriteString(strings.Join(groupbys, ","))
	return sb.String()
}

var defaultBuilder = NewBuilder()

func Build(q models.Query) string { return defaultBuilder.Build(q) }

// ParseFilters splits the WHERE clause of a statement produced by Build
// back into its predicates. Separators inside double-quoted literals are
// part of the literal; a doubled quote is an escaped quote.
func ParseFilters(sql string) []string {
	const anchor = " FROM " + fromClause + " WHERE "
	start := indexUnquoted(sql, anchor)
	if start < 0 {
		return nil
	}
	where := sql[start+len(anchor):]
	if end := indexUnquoted(where, " GROUP BY "); end >= 0 {
		where = where[:end]
	}

	var out []string
	for {
		i := indexUnquoted(where, whereSep)
		if i < 0 {
			return append(out, where)
		}
		out = append(out, where[:i])
		where = where[i+len(whereSep):]
	}
}

// indexUnquoted is strings.Index restricted to text outside "..." literals.
// A doubled quote toggles out of and back into the literal, so escaped
// quotes need no special case.
func indexUnquoted(s, sub string) int {
	quoted := false
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			quoted = !quoted
			continue
		}
		if !quoted && strings.HasPrefix(s[i:], sub) {
			return i
		}
	}
	return -1
}
