package history

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thermal-analyzer/backend/internal/analysis"
	"github.com/thermal-analyzer/backend/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	file := &models.UploadedFile{ID: "f1", Name: "stack.png", Type: "image/png", Size: 4096}
	emissions := analysis.DefaultProfile().Records()

	require.NoError(t, s.Record(ctx, "s1", file, base, emissions))
	require.NoError(t, s.Record(ctx, "s2", &models.UploadedFile{Name: "flare.tiff", Type: "image/tiff"}, base.Add(time.Minute), emissions[:1]))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "s2", runs[0].SessionID)
	assert.Equal(t, "flare.tiff", runs[0].FileName)
	assert.Len(t, runs[0].Emissions, 1)

	assert.Equal(t, "s1", runs[1].SessionID)
	assert.Equal(t, int64(4096), runs[1].FileSize)
	assert.True(t, base.Equal(runs[1].CompletedAt))
	if diff := cmp.Diff(emissions, runs[1].Emissions); diff != "" {
		t.Errorf("emissions mismatch (-want +got):\n%s", diff)
	}

	limited, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_SubstanceStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	file := &models.UploadedFile{Name: "a.jpg", Type: "image/jpeg"}
	require.NoError(t, s.Record(ctx, "s1", file, time.Now(), []models.EmissionRecord{
		{Type: "Methane (CH₄)", Level: models.EmissionLevelHigh, Percentage: 3, Confidence: 90},
	}))
	require.NoError(t, s.Record(ctx, "s2", file, time.Now(), []models.EmissionRecord{
		{Type: "Methane (CH₄)", Level: models.EmissionLevelLow, Percentage: 1, Confidence: 80},
		{Type: "Carbon Dioxide (CO₂)", Level: models.EmissionLevelMedium, Percentage: 2, Confidence: 70},
	}))

	stats, err := s.SubstanceStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "Carbon Dioxide (CO₂)", stats[0].Type)
	assert.Equal(t, 1, stats[0].Detections)

	methane := stats[1]
	assert.Equal(t, "Methane (CH₄)", methane.Type)
	assert.Equal(t, 2, methane.Detections)
	assert.InDelta(t, 2.0, methane.AveragePercentage, 1e-9)
	assert.InDelta(t, 3.0, methane.MaxPercentage, 1e-9)
	assert.InDelta(t, 85.0, methane.AverageConfidence, 1e-9)
	assert.Equal(t, 1, methane.HighLevelCount)
}

func TestStore_EmptyAndErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runs, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)

	stats, err := s.SubstanceStats(ctx)
	require.NoError(t, err)
	assert.Empty(t, stats)

	assert.Error(t, s.Record(ctx, "s1", nil, time.Now(), nil))

	require.NoError(t, s.Record(ctx, "s1", &models.UploadedFile{Name: "x.png"}, time.Now(), nil))
	runs, err = s.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Empty(t, runs[0].Emissions)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	for i := 0; i < cap(s.querySem); i++ {
		s.querySem <- struct{}{}
	}
	_, err = s.Recent(cancelled, 5)
	assert.ErrorIs(t, err, context.Canceled)
	for i := 0; i < cap(s.querySem); i++ {
		<-s.querySem
	}
}
