// Package export writes output rows as CSV.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/AngelCh415/quasr/internal/models"
)

const ContentType = "text/csv"

// header is the column layout. geography and metadata are reserved and
// always empty.
var header = []string{
	"startDate",
	"endDate",
	"metricIndex",
	"value",
	"marketingNode",
	"geography",
	"adPlatform",
	"metadata",
}

// Header returns a copy of the column layout.
func Header() []string {
	return append([]string(nil), header...)
}

// WriteCSV writes the header followed by one record per row, so an empty
// result is a header-only table.
func WriteCSV(w io.Writer, rows []models.OutputDataRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.StartDate.String(),
			r.EndDate.String(),
			strconv.Itoa(r.MetricIndex),
			strconv.FormatFloat(r.Value, 'f', -1, 64),
			deref(r.MarketingNode),
			"",
			deref(r.AdPlatform),
			"",
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
