package analysis

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/thermal-analyzer/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// Profile is the constant result set returned by the mock analyzer.
//
// The YAML form is:
//
//	emissions:
//	  - type: "Methane (CH₄)"
//	    level: high
//	    percentage: 3.24
//	    confidence: 94
//	    description: "..."
type Profile struct {
	Emissions []models.EmissionRecord `yaml:"emissions"`
}

// DefaultProfile returns the built-in three-record result set.
func DefaultProfile() *Profile {
	return &Profile{
		Emissions: []models.EmissionRecord{
			{
				Type:        "Methane (CH₄)",
				Level:       models.EmissionLevelHigh,
				Percentage:  3.24,
				Confidence:  94,
				Description: "Significant methane emissions detected near pipeline junction. Immediate attention recommended.",
			},
			{
				Type:        "Carbon Dioxide (CO₂)",
				Level:       models.EmissionLevelMedium,
				Percentage:  1.87,
				Confidence:  87,
				Description: "Moderate CO₂ levels detected from industrial ventilation system.",
			},
			{
				Type:        "Nitrogen Oxides (NOx)",
				Level:       models.EmissionLevelLow,
				Percentage:  0.42,
				Confidence:  76,
				Description: "Low-level NOx emissions within acceptable limits for industrial facility.",
			},
		},
	}
}

// Records returns a copy of the profile's emissions.
func (p *Profile) Records() []models.EmissionRecord {
	return models.CloneEmissions(p.Emissions)
}

// LoadProfile reads a YAML profile from path. A missing file yields the
// default profile.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultProfile(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open emission profile: %w", err)
	}
	defer f.Close()

	return ParseProfile(f)
}

// ParseProfile reads a YAML profile from r.
func ParseProfile(r io.Reader) (*Profile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read emission profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse emission profile: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Profile) validate() error {
	if len(p.Emissions) == 0 {
		return fmt.Errorf("emission profile has no emissions")
	}
	for i, e := range p.Emissions {
		if e.Type == "" {
			return fmt.Errorf("emission %d: type is required", i)
		}
		if !e.Level.Valid() {
			return fmt.Errorf("emission %d: invalid level %q", i, e.Level)
		}
		if e.Percentage < 0 || e.Confidence < 0 || e.Confidence > 100 {
			return fmt.Errorf("emission %d: percentage and confidence out of range", i)
		}
	}
	return nil
}
