package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/thermal-analyzer/backend/internal/models"
)

// TimestampFormat is ISO-8601 in UTC with milliseconds.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Report is the downloadable JSON document.
type Report struct {
	Timestamp string                  `json:"timestamp"`
	ImageURL  string                  `json:"imageUrl"`
	Emissions []models.EmissionRecord `json:"emissions"`
	Summary   string                  `json:"summary"`
}

// NewReport snapshots a result list at now.
func NewReport(imageURL string, emissions []models.EmissionRecord, now time.Time) *Report {
	records := models.CloneEmissions(emissions)
	if records == nil {
		records = make([]models.EmissionRecord, 0)
	}
	return &Report{
		Timestamp: now.UTC().Format(TimestampFormat),
		ImageURL:  imageURL,
		Emissions: records,
		Summary:   Summary(len(records)),
	}
}

// MarshalIndent encodes the report with two-space indentation.
func (r *Report) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FileName is the attachment name of a report generated at now.
func FileName(now time.Time) string {
	return fmt.Sprintf("thermal-analysis-%d.json", now.UnixMilli())
}

// CSVFileName is FileName for the CSV export.
func CSVFileName(now time.Time) string {
	return fmt.Sprintf("thermal-analysis-%d.csv", now.UnixMilli())
}

var csvHeader = []string{"type", "level", "percentage", "confidence", "description"}

// WriteCSV writes one line per emission after a header line.
func WriteCSV(w io.Writer, emissions []models.EmissionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range emissions {
		row := []string{
			e.Type,
			string(e.Level),
			strconv.FormatFloat(e.Percentage, 'f', -1, 64),
			strconv.FormatFloat(e.Confidence, 'f', -1, 64),
			e.Description,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
