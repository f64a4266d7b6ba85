// Package models contains domain types for the Thermal Emission Analyzer.
package models

// EmissionLevel classifies how severe a detected emission is.
type EmissionLevel string

const (
	EmissionLevelLow    EmissionLevel = "low"
	EmissionLevelMedium EmissionLevel = "medium"
	EmissionLevelHigh   EmissionLevel = "high"
)

// Valid reports whether l is one of the known levels.
func (l EmissionLevel) Valid() bool {
	switch l {
	case EmissionLevelLow, EmissionLevelMedium, EmissionLevelHigh:
		return true
	}
	return false
}

// EmissionRecord is one detected-substance entry of an analysis.
type EmissionRecord struct {
	Type        string        `json:"type" yaml:"type" msgpack:"type"`
	Level       EmissionLevel `json:"level" yaml:"level" msgpack:"level"`
	Percentage  float64       `json:"percentage" yaml:"percentage" msgpack:"percentage"`
	Confidence  float64       `json:"confidence" yaml:"confidence" msgpack:"confidence"`
	Description string        `json:"description" yaml:"description" msgpack:"description"`
}

// CloneEmissions returns an independent copy of records.
func CloneEmissions(records []EmissionRecord) []EmissionRecord {
	if records == nil {
		return nil
	}
	out := make([]EmissionRecord, len(records))
	copy(out, records)
	return out
}
