package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"offer-wizard/internal/domain"
)

// ReportWriter writes a completed offer report as CSV for the download step.
type ReportWriter struct {
	now func() time.Time
}

func NewReportWriter() *ReportWriter {
	return &ReportWriter{now: time.Now}
}

// WriteFile writes the report to path, creating the directory if needed.
func (w *ReportWriter) WriteFile(path string, report domain.OfferReport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create report file: %w", err)
	}
	defer f.Close()
	return w.Write(f, report)
}

// Write writes the report as CSV: a property summary block, the comparable
// set, and every recorded answer grouped by wizard step.
func (w *ReportWriter) Write(out io.Writer, report domain.OfferReport) error {
	cw := csv.NewWriter(out)

	rows := [][]string{
		{"offer_report", report.Property.MLSID, w.now().UTC().Format(time.RFC3339)},
		{},
		{"address", joinAddress(report.Property)},
		{"list_price", money(report.Property.ListPrice)},
		{"beds", strconv.Itoa(report.Property.Beds)},
		{"baths", strconv.FormatFloat(report.Property.Baths, 'f', -1, 64)},
		{"sqft", strconv.Itoa(report.Property.Sqft)},
		{"suggested_price", money(report.Price.Suggested)},
		{"offer_price", money(report.Price.Final())},
		{},
		{"comparable_id", "address", "sold_price", "beds", "baths", "sqft", "distance_mi"},
	}
	for _, c := range report.Analysis.Comparables {
		rows = append(rows, []string{
			c.ID,
			c.Address,
			money(c.SoldPrice),
			strconv.Itoa(c.Beds),
			strconv.FormatFloat(c.Baths, 'f', -1, 64),
			strconv.Itoa(c.Sqft),
			strconv.FormatFloat(c.DistanceMi, 'f', 2, 64),
		})
	}

	rows = append(rows, []string{}, []string{"step", "question", "response"})
	for _, a := range report.Answers {
		rows = append(rows, []string{string(a.Page), a.Question, strings.Join(a.Response, "; ")})
	}

	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: write report row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: flush report: %w", err)
	}
	return nil
}

func joinAddress(p domain.Property) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Address, p.City, p.State + " " + p.Zip} {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, strings.TrimSpace(s))
		}
	}
	return strings.Join(parts, ", ")
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
