// Package export renders history records as a downloadable document.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-history/internal/weather"
)

// Format selects the export rendering.
type Format string

const (
	// Structured is a JSON array of full records.
	Structured Format = "structured"
	// Tabular is CSV with one row per record.
	Tabular Format = "tabular"
)

// FileBase is the attachment name without extension.
const FileBase = "weather_history_export"

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Columns is the fixed tabular header.
var Columns = []string{
	"id",
	"inputLocation",
	"locationName",
	"latitude",
	"longitude",
	"startDate",
	"endDate",
	"userNotes",
	"createdAt",
	"updatedAt",
	"weatherSummary",
}

// ParseFormat accepts structured|json and tabular|csv, case-insensitively.
// An empty string means Structured.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "structured", "json":
		return Structured, nil
	case "tabular", "csv":
		return Tabular, nil
	default:
		return "", fmt.Errorf("%w: %q (use structured|json or tabular|csv)", weather.ErrUnsupportedFormat, s)
	}
}

// ContentType is the MIME type of f.
func (f Format) ContentType() string {
	if f == Tabular {
		return "text/csv; charset=utf-8"
	}
	return "application/json"
}

// Ext is the file extension of f, without the dot.
func (f Format) Ext() string {
	if f == Tabular {
		return "csv"
	}
	return "json"
}

// FileName is the attachment file name for f.
func (f Format) FileName() string {
	return FileBase + "." + f.Ext()
}

// Write renders records in format f.
func Write(w io.Writer, records []weather.HistoryRecord, f Format) error {
	switch f {
	case Structured:
		return writeStructured(w, records)
	case Tabular:
		return writeTabular(w, records)
	default:
		return fmt.Errorf("%w: %q", weather.ErrUnsupportedFormat, string(f))
	}
}

func writeStructured(w io.Writer, records []weather.HistoryRecord) error {
	if records == nil {
		records = []weather.HistoryRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func writeTabular(w io.Writer, records []weather.HistoryRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, rec := range records {
		summary, err := Summary(rec.WeatherSeries)
		if err != nil {
			return fmt.Errorf("summarize record %s: %w", rec.ID, err)
		}
		row := []string{
			rec.ID,
			rec.InputLocation,
			rec.ResolvedLocation.Name,
			formatFloat(rec.ResolvedLocation.Lat),
			formatFloat(rec.ResolvedLocation.Lon),
			formatTime(rec.DateRange.Start),
			formatTime(rec.DateRange.End),
			rec.UserNotes,
			formatTime(rec.CreatedAt),
			formatTime(rec.UpdatedAt),
			summary,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Summary renders the first observation only, followed by "..." when the
// series has more. An empty series is "[]".
func Summary(series []weather.Observation) (string, error) {
	if len(series) == 0 {
		return "[]", nil
	}
	first, err := json.Marshal(series[:1])
	if err != nil {
		return "", err
	}
	if len(series) > 1 {
		return string(first) + "...", nil
	}
	return string(first), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}
