// Package dsl parses the external JSON query language into models.Query.
package dsl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AngelCh415/quasr/internal/models"
)

var (
	ErrInvalidQuery         = errors.New("invalid query")
	ErrTimeFilterCount      = errors.New("exactly one time filter is required")
	ErrMixedNodeLevels      = errors.New("marketing node filters must target a single level")
	ErrUnknownAdPlatform    = errors.New("unknown ad platform breakdown")
	ErrUnknownNodeLevel     = errors.New("unknown marketing node level")
	ErrUnknownTimeBreakdown = errors.New("unknown time breakdown")
	ErrUnknownMetricType    = errors.New("unknown metric type")
	ErrInvalidDate          = errors.New("invalid date")
)

const (
	adPlatformToken = "adPlatform"
	dailyToken      = "daily"

	upperFunnelType = "upperFunnelMetric"
	summationType   = "summationMetric"
	divisionType    = "divisionMetric"
)

type Request struct {
	OrgID     string    `json:"orgId" yaml:"orgId" validate:"required"`
	DataQuery DataQuery `json:"dataQuery" yaml:"dataQuery"`
}

type DataQuery struct {
	Metrics    []Metric   `json:"metrics" yaml:"metrics" validate:"dive"`
	Filters    Filters    `json:"filters" yaml:"filters"`
	Breakdowns Breakdowns `json:"breakdowns" yaml:"breakdowns"`
}

type Filters struct {
	Time          []TimeFilter `json:"time" yaml:"time"`
	MarketingNode []NodeFilter `json:"marketingNode,omitempty" yaml:"marketingNode,omitempty"`
}

type TimeFilter struct {
	Value TimeRange `json:"value" yaml:"value"`
}

type TimeRange struct {
	StartDate string `json:"startDate" yaml:"startDate"`
	EndDate   string `json:"endDate" yaml:"endDate"`
}

type NodeFilter struct {
	Value string `json:"value" yaml:"value"`
	Level string `json:"level" yaml:"level"`
}

type Breakdowns struct {
	Time          string `json:"time,omitempty" yaml:"time,omitempty"`
	MarketingNode string `json:"marketingNode,omitempty" yaml:"marketingNode,omitempty"`
	AdPlatform    string `json:"adPlatform,omitempty" yaml:"adPlatform,omitempty"`
}

// Metric is the tagged union of the three metric kinds; MetricType
// selects which fields apply. Numerator and denominator may only be
// upper-funnel or summation metrics.
type Metric struct {
	MetricType  string           `json:"metricType" yaml:"metricType" validate:"required"`
	MetricName  string           `json:"metricName,omitempty" yaml:"metricName,omitempty" validate:"required_if=MetricType upperFunnelMetric"`
	Metrics     []ConcreteMetric `json:"metrics,omitempty" yaml:"metrics,omitempty" validate:"dive"`
	Numerator   *Metric          `json:"numerator,omitempty" yaml:"numerator,omitempty"`
	Denominator *Metric          `json:"denominator,omitempty" yaml:"denominator,omitempty"`
}

type ConcreteMetric struct {
	MetricName string `json:"metricName" yaml:"metricName" validate:"required"`
}

var validate = validator.New()

// Parse decodes a JSON request and converts it into a query.
func Parse(r io.Reader) (models.Query, error) {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return models.Query{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return req.ToQuery()
}

func ParseBytes(b []byte) (models.Query, error) { return Parse(bytes.NewReader(b)) }

// ParseYAML accepts the same structure written as YAML.
func ParseYAML(b []byte) (models.Query, error) {
	var req Request
	if err := yaml.Unmarshal(b, &req); err != nil {
		return models.Query{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return req.ToQuery()
}

func (req Request) ToQuery() (models.Query, error) {
	if err := validate.Struct(req); err != nil {
		return models.Query{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	dq := req.DataQuery

	if n := len(dq.Filters.Time); n != 1 {
		return models.Query{}, fmt.Errorf("%w: got %d", ErrTimeFilterCount, n)
	}
	start, err := parseDate(dq.Filters.Time[0].Value.StartDate)
	if err != nil {
		return models.Query{}, err
	}
	end, err := parseDate(dq.Filters.Time[0].Value.EndDate)
	if err != nil {
		return models.Query{}, err
	}

	q := models.Query{
		OrgID:     req.OrgID,
		StartDate: start,
		EndDate:   end,
	}
	if q.NodeFilter, err = nodeFilter(dq.Filters.MarketingNode); err != nil {
		return models.Query{}, err
	}
	if err := applyBreakdowns(&q, dq.Breakdowns); err != nil {
		return models.Query{}, err
	}
	for i, m := range dq.Metrics {
		cm, err := m.toCore()
		if err != nil {
			return models.Query{}, fmt.Errorf("metric %d: %w", i, err)
		}
		q.Metrics = append(q.Metrics, cm)
	}
	return q, nil
}

func parseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w %q", ErrInvalidDate, s)
	}
	return d, nil
}

// nodeFilter treats an empty list as no filter.
func nodeFilter(fs []NodeFilter) (*models.NodeFilter, error) {
	if len(fs) == 0 {
		return nil, nil
	}
	var (
		level  models.NodeLevel
		values = make([]string, 0, len(fs))
	)
	for i, f := range fs {
		l, err := parseLevel(f.Level)
		if err != nil {
			return nil, err
		}
		if i > 0 && l != level {
			return nil, fmt.Errorf("%w: %s and %s", ErrMixedNodeLevels, level, l)
		}
		level = l
		values = append(values, f.Value)
	}
	return &models.NodeFilter{Level: level, Values: values}, nil
}

func applyBreakdowns(q *models.Query, b Breakdowns) error {
	switch b.Time {
	case "":
	case dailyToken:
		q.TimeBreakdown = models.TimeBreakdownDay
	default:
		return fmt.Errorf("%w %q", ErrUnknownTimeBreakdown, b.Time)
	}
	if b.MarketingNode != "" {
		l, err := parseLevel(b.MarketingNode)
		if err != nil {
			return err
		}
		q.NodeBreakdown = &l
	}
	switch b.AdPlatform {
	case "":
	case adPlatformToken:
		q.AdPlatformBreakdown = true
	default:
		return fmt.Errorf("%w %q", ErrUnknownAdPlatform, b.AdPlatform)
	}
	return nil
}

func parseLevel(s string) (models.NodeLevel, error) {
	l, err := models.ParseNodeLevel(s)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrUnknownNodeLevel, s)
	}
	return l, nil
}

func (m Metric) toCore() (models.Metric, error) {
	switch m.MetricType {
	case upperFunnelType:
		return models.UpperFunnelMetric{Name: m.MetricName}, nil
	case summationType:
		return models.SummationMetric{Names: m.names()}, nil
	case divisionType:
		num, err := m.Numerator.operand()
		if err != nil {
			return nil, fmt.Errorf("numerator: %w", err)
		}
		den, err := m.Denominator.operand()
		if err != nil {
			return nil, fmt.Errorf("denominator: %w", err)
		}
		return models.DivisionMetric{Numerator: num, Denominator: den}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownMetricType, m.MetricType)
}

func (m Metric) names() models.NameSet {
	names := make([]string, len(m.Metrics))
	for i, c := range m.Metrics {
		names[i] = c.MetricName
	}
	return models.NewNameSet(names...)
}

func (m *Metric) operand() (models.NameSet, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: missing operand", ErrInvalidQuery)
	}
	switch m.MetricType {
	case upperFunnelType:
		return models.NewNameSet(m.MetricName), nil
	case summationType:
		return m.names(), nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownMetricType, m.MetricType)
}
