// Package report builds the results view and the downloadable analysis report.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/thermal-analyzer/backend/internal/models"
)

// Row is one emission as shown in the results list.
type Row struct {
	Type          string               `json:"type" msgpack:"type"`
	Level         models.EmissionLevel `json:"level" msgpack:"level"`
	Badge         string               `json:"badge" msgpack:"badge"`
	ColorClass    string               `json:"colorClass" msgpack:"colorClass"`
	Icon          string               `json:"icon" msgpack:"icon"`
	Percentage    float64              `json:"percentage" msgpack:"percentage"`
	Concentration string               `json:"concentration" msgpack:"concentration"`
	BarWidth      float64              `json:"barWidth" msgpack:"barWidth"`
	Confidence    string               `json:"confidence" msgpack:"confidence"`
	Description   string               `json:"description" msgpack:"description"`
}

// Hotspot is an emission marker overlaid on the image.
type Hotspot struct {
	Type       string `json:"type" msgpack:"type"`
	ColorClass string `json:"colorClass" msgpack:"colorClass"`
	Top        string `json:"top" msgpack:"top"`
	Left       string `json:"left" msgpack:"left"`
}

// LegendItem explains one marker colour.
type LegendItem struct {
	Label      string `json:"label" msgpack:"label"`
	ColorClass string `json:"colorClass" msgpack:"colorClass"`
}

// View is everything the results page renders.
type View struct {
	SessionID        string       `json:"sessionId" msgpack:"sessionId"`
	FileName         string       `json:"fileName,omitempty" msgpack:"fileName,omitempty"`
	ImageURL         string       `json:"imageUrl" msgpack:"imageUrl"`
	Rows             []Row        `json:"rows" msgpack:"rows"`
	Hotspots         []Hotspot    `json:"hotspots" msgpack:"hotspots"`
	Legend           []LegendItem `json:"legend" msgpack:"legend"`
	Summary          string       `json:"summary" msgpack:"summary"`
	CompletedAt      *time.Time   `json:"completedAt,omitempty" msgpack:"completedAt,omitempty"`
	ProcessingTimeMs int64        `json:"processingTimeMs,omitempty" msgpack:"processingTimeMs,omitempty"`
}

// Legend is the fixed temperature scale of the heatmap, coolest first.
var Legend = []LegendItem{
	{Label: "Low Temp", ColorClass: "thermal-cool"},
	{Label: "Medium Temp", ColorClass: "thermal-warm"},
	{Label: "High Temp", ColorClass: "thermal-hot"},
}

// BarWidth maps a percentage onto the 0-100 width of its bar. The ×10 is
// display scaling so that single-digit concentrations remain visible.
func BarWidth(percentage float64) float64 {
	w := percentage * 10
	if w > 100 {
		return 100
	}
	if w < 0 {
		return 0
	}
	return w
}

// LevelColor returns the colour class of a level.
func LevelColor(level models.EmissionLevel) string {
	switch level {
	case models.EmissionLevelLow:
		return "emission-low"
	case models.EmissionLevelMedium:
		return "emission-medium"
	case models.EmissionLevelHigh:
		return "emission-high"
	default:
		return "muted"
	}
}

// LevelIcon returns the icon name of a level.
func LevelIcon(level models.EmissionLevel) string {
	if level == models.EmissionLevelLow {
		return "check-circle"
	}
	return "alert-triangle"
}

// Summary is the one-line result description used by the page and the report.
func Summary(count int) string {
	return fmt.Sprintf("Analysis detected %d emission types", count)
}

// HotspotPosition returns the overlay position of the i-th marker.
func HotspotPosition(i int) (top, left string) {
	return fmt.Sprintf("%d%%", 20+i*15), fmt.Sprintf("%d%%", 30+i*20)
}

// BuildView renders a session's results.
func BuildView(s *models.AnalysisSession) *View {
	v := &View{
		SessionID:        s.ID,
		ImageURL:         s.ImageURL,
		Rows:             make([]Row, 0, len(s.Results)),
		Hotspots:         make([]Hotspot, 0, len(s.Results)),
		Legend:           Legend,
		Summary:          Summary(len(s.Results)),
		ProcessingTimeMs: s.ProcessingTimeMs,
	}
	if s.File != nil {
		v.FileName = s.File.Name
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		v.CompletedAt = &t
	}

	for i, e := range s.Results {
		v.Rows = append(v.Rows, Row{
			Type:          e.Type,
			Level:         e.Level,
			Badge:         strings.ToUpper(string(e.Level)),
			ColorClass:    LevelColor(e.Level),
			Icon:          LevelIcon(e.Level),
			Percentage:    e.Percentage,
			Concentration: fmt.Sprintf("%.2f%%", e.Percentage),
			BarWidth:      BarWidth(e.Percentage),
			Confidence:    fmt.Sprintf("%.0f%%", e.Confidence),
			Description:   e.Description,
		})
		top, left := HotspotPosition(i)
		v.Hotspots = append(v.Hotspots, Hotspot{
			Type:       e.Type,
			ColorClass: LevelColor(e.Level),
			Top:        top,
			Left:       left,
		})
	}
	return v
}
