package sqlgen

import (
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/quasr/internal/models"
)

func nodeFilterQuery() models.Query {
	return models.Query{
		OrgID:         "test_org",
		StartDate:     civil.Date{Year: 2020, Month: 1, Day: 1},
		EndDate:       civil.Date{Year: 2020, Month: 1, Day: 2},
		NodeBreakdown: models.Ptr(models.Ad),
		NodeFilter: &models.NodeFilter{
			Level:  models.Campaign,
			Values: []string{"test_node"},
		},
		TimeBreakdown: models.TimeBreakdownDay,
	}
}

func TestBuild_MarketingNodeFilter(t *testing.T) {
	got := Build(nodeFilterQuery())

	want := `SELECT SUM(sourceValue) AS sourceValue,UpperFunnelMetricFields.name as name,"Twitter" as ad_platform,` +
		`Properties.adId AS marketing_node,date AS qdate ` +
		`FROM UpperFunnelMetricValues,UpperFunnelMetricFields,Properties ` +
		`WHERE UpperFunnelMetricFields.organizationId="test_org" ` +
		`AND UpperFunnelMetricFields.id=UpperFunnelMetricValues.upperFunnelMetricFieldId ` +
		`AND Properties.id=UpperFunnelMetricValues.propertyId ` +
		`AND date>="2020-01-01" AND date<="2020-01-02" ` +
		`AND Properties.campaignId IN ("test_node") ` +
		`AND UpperFunnelMetricFields.name IN () ` +
		`GROUP BY UpperFunnelMetricFields.name,ad_platform,qdate,Properties.adId`
	assert.Equal(t, want, got)
}

func TestBuild_FilterRoundTrip(t *testing.T) {
	q := nodeFilterQuery()
	q.NodeFilter.Values = []string{"n1", "n2"}

	filters := ParseFilters(Build(q))
	assert.Contains(t, filters, `UpperFunnelMetricFields.organizationId="test_org"`)
	assert.Contains(t, filters, `date>="2020-01-01"`)
	assert.Contains(t, filters, `date<="2020-01-02"`)
	assert.Contains(t, filters, `Properties.campaignId IN ("n1","n2")`)
	assert.Len(t, filters, 7)
}

func TestBuild_FilterRoundTripQuotedSeparators(t *testing.T) {
	q := nodeFilterQuery()
	q.OrgID = `acme AND "co" GROUP BY x`
	q.NodeFilter.Values = []string{`a AND b`, `say "hi"`}

	b := NewBuilder(WithPlatformTag(`x WHERE y AND z`))
	filters := ParseFilters(b.Build(q))
	require.Len(t, filters, 7)
	assert.Equal(t, `UpperFunnelMetricFields.organizationId="acme AND ""co"" GROUP BY x"`, filters[0])
	assert.Equal(t, `Properties.campaignId IN ("a AND b","say ""hi""")`, filters[5])
	assert.Equal(t, `UpperFunnelMetricFields.name IN ()`, filters[6])
}

func TestParseFilters_NotABuiltStatement(t *testing.T) {
	assert.Nil(t, ParseFilters("SELECT 1"))
}

func TestBuild_NoBreakdowns(t *testing.T) {
	q := models.Query{
		OrgID:     "o",
		StartDate: civil.Date{Year: 2021, Month: 3, Day: 4},
		EndDate:   civil.Date{Year: 2021, Month: 3, Day: 5},
		Metrics:   []models.Metric{models.UpperFunnelMetric{Name: "Cost"}},
	}
	got := Build(q)

	assert.Contains(t, got, "NULL as marketing_node")
	assert.Contains(t, got, "NULL as qdate")
	assert.NotContains(t, got, "Properties.campaignId IN")
	assert.True(t, strings.HasSuffix(got, "GROUP BY UpperFunnelMetricFields.name,ad_platform,qdate"))
}

func TestMetricSelector_DedupsAcrossDefinitions(t *testing.T) {
	q := models.Query{Metrics: []models.Metric{
		models.UpperFunnelMetric{Name: "Cost"},
		models.SummationMetric{Names: models.NewNameSet("Install", "Cost")},
		models.DivisionMetric{
			Numerator:   models.NewNameSet("Click"),
			Denominator: models.NewNameSet("Install", "Impression"),
		},
	}}

	got := MetricSelector{}.Filter(q)
	require.Len(t, got, 1)
	assert.Equal(t, `UpperFunnelMetricFields.name IN ("Cost","Install","Click","Impression")`, got[0])
}

func TestMetricSelector_EmptyMetrics(t *testing.T) {
	got := MetricSelector{}.Filter(models.Query{})
	assert.Equal(t, []string{"UpperFunnelMetricFields.name IN ()"}, got)
}

func TestNodeBreakdownLevels(t *testing.T) {
	tests := []struct {
		level models.NodeLevel
		col   string
	}{
		{models.Campaign, "Properties.campaignId"},
		{models.Ad, "Properties.adId"},
		{models.AdSet, "Properties.adSetId"},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			q := models.Query{NodeBreakdown: models.Ptr(tt.level)}
			assert.Equal(t, []string{tt.col + " AS marketing_node"}, NodeBreakdown{}.Select(q))
			assert.Equal(t, []string{tt.col}, NodeBreakdown{}.GroupBy(q))
		})
	}
	assert.Empty(t, NodeBreakdown{}.GroupBy(models.Query{}))
}

func TestWithPlatformTag(t *testing.T) {
	got := NewBuilder(WithPlatformTag("Meta")).Build(models.Query{})
	assert.Contains(t, got, `"Meta" as ad_platform`)

	got = NewBuilder(WithPlatformTag("")).Build(models.Query{})
	assert.Contains(t, got, `"Twitter" as ad_platform`)
}

func TestQuoteDoublesEmbeddedQuotes(t *testing.T) {
	assert.Equal(t, `"plain"`, Quote("plain"))
	assert.Equal(t, `"a""b"`, Quote(`a"b`))
	assert.Equal(t, `""`, Quote(""))
}
