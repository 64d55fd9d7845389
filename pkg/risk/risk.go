package risk

import "fmt"

// Band is the discrete risk classification derived from a criticality
// score.
type Band string

const (
	BandCritical Band = "CRITICAL"
	BandHigh     Band = "HIGH"
	BandMedium   Band = "MEDIUM"
	BandLow      Band = "LOW"
)

// Thresholds are the band boundaries. Each band's lower bound is inclusive:
// a score exactly at Critical classifies as CRITICAL.
type Thresholds struct {
	Critical float64 `koanf:"critical" json:"critical"`
	High     float64 `koanf:"high" json:"high"`
	Medium   float64 `koanf:"medium" json:"medium"`
}

// DefaultThresholds returns the default band boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Critical: 0.85, High: 0.70, Medium: 0.40}
}

// Validate enforces descending, in-range boundaries.
func (t Thresholds) Validate() error {
	if !(t.Critical > t.High && t.High > t.Medium && t.Medium > 0 && t.Critical <= 1) {
		return fmt.Errorf("risk thresholds must satisfy 0 < medium < high < critical <= 1, got %+v", t)
	}
	return nil
}

// Classify maps a criticality score to its band.
func (t Thresholds) Classify(score float64) Band {
	switch {
	case score >= t.Critical:
		return BandCritical
	case score >= t.High:
		return BandHigh
	case score >= t.Medium:
		return BandMedium
	default:
		return BandLow
	}
}
