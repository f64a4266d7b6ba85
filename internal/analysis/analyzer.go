// Package analysis runs emission analysis over an uploaded thermal image.
//
// The only implementation is MockAnalyzer, which waits a fixed delay and
// returns a constant result set. The Analyzer interface is the seam where a
// real detection backend plugs in.
package analysis

import (
	"context"
	"time"

	"github.com/thermal-analyzer/backend/internal/models"
)

// DefaultDelay is how long the mock analysis takes.
const DefaultDelay = 4000 * time.Millisecond

// ProgressFunc receives the current stage and an overall progress in 0-100.
type ProgressFunc func(stage string, progress float64)

// Analyzer turns an uploaded image into emission records. Implementations
// must return promptly with ctx.Err() once ctx is cancelled.
type Analyzer interface {
	Analyze(ctx context.Context, file *models.UploadedFile, progress ProgressFunc) ([]models.EmissionRecord, error)
}

// Stages reported while the mock analysis runs.
var Stages = []string{
	"Analyzing spectral signatures",
	"Detecting emission patterns",
	"Computing confidence scores",
}

// MockAnalyzer returns the profile's records after a single delay timer.
type MockAnalyzer struct {
	delay   time.Duration
	profile *Profile
}

// NewMockAnalyzer creates a mock analyzer. A nil profile uses DefaultProfile
// and a non-positive delay uses DefaultDelay.
func NewMockAnalyzer(delay time.Duration, profile *Profile) *MockAnalyzer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if profile == nil {
		profile = DefaultProfile()
	}
	return &MockAnalyzer{delay: delay, profile: profile}
}

// Delay returns the configured analysis delay.
func (a *MockAnalyzer) Delay() time.Duration {
	return a.delay
}

// Analyze waits for the delay, reporting one stage per equal slice of it.
func (a *MockAnalyzer) Analyze(ctx context.Context, file *models.UploadedFile, progress ProgressFunc) ([]models.EmissionRecord, error) {
	if progress == nil {
		progress = func(string, float64) {}
	}

	timer := time.NewTimer(a.delay)
	defer timer.Stop()

	// Delays shorter than one tick per stage skip the intermediate stages.
	var tick <-chan time.Time
	if step := a.delay / time.Duration(len(Stages)); step > 0 {
		ticker := time.NewTicker(step)
		defer ticker.Stop()
		tick = ticker.C
	}

	stage := 0
	progress(Stages[stage], 0)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-tick:
			if stage < len(Stages)-1 {
				stage++
				progress(Stages[stage], float64(stage)*100/float64(len(Stages)))
			}
		case <-timer.C:
			return a.profile.Records(), nil
		}
	}
}
