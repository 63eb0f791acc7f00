package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shoetrack/internal/models"
)

type fakeSource struct {
	err   error
	shoes []*models.Shoe
	runs  []*models.Run
}

func (f *fakeSource) ListShoes(ctx context.Context, collectionID string, includeRetired bool) ([]*models.Shoe, error) {
	return f.shoes, f.err
}

func (f *fakeSource) ListRuns(ctx context.Context, shoeID string) ([]*models.Run, error) {
	return f.runs, f.err
}

func TestBuilder_Build(t *testing.T) {
	now := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{
		shoes: []*models.Shoe{
			{ID: "s1", Name: "Pegasus", CurrentMileage: 760, MaxMileage: 800},
			{ID: "s2", Name: "Vaporfly", CurrentMileage: 100, MaxMileage: 400},
			{ID: "s3", Name: "Old", CurrentMileage: 900, MaxMileage: 800, Retired: true},
		},
		runs: []*models.Run{
			{ID: "r1", Date: now.AddDate(0, 0, -1), Distance: 10, RunType: models.RunEasy},
			{ID: "r2", Date: now.AddDate(0, 0, -3), Distance: 20, RunType: models.RunLong},
			{ID: "r3", Date: now.AddDate(0, 0, -14), Distance: 6, RunType: models.RunEasy},
			{ID: "r4", Date: now.AddDate(0, 0, -60), Distance: 42.2, RunType: models.RunRace},
		},
	}
	b := NewBuilder(src)
	b.now = func() time.Time { return now }

	d, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, d.ActiveShoes)
	assert.Equal(t, 1, d.RetiredShoes)
	require.Len(t, d.Shoes, 2)
	assert.Equal(t, "s1", d.Shoes[0].ID)
	assert.InDelta(t, 95, d.Shoes[0].WearPercent, 1e-9)
	require.Len(t, d.WornOut, 1)
	assert.Equal(t, "s1", d.WornOut[0].ID)

	assert.Equal(t, 4, d.TotalRuns)
	assert.InDelta(t, 78.2, d.TotalDistance, 1e-9)
	assert.InDelta(t, 16, d.DistanceByType[models.RunEasy], 1e-9)
	assert.InDelta(t, 42.2, d.DistanceByType[models.RunRace], 1e-9)
	assert.Equal(t, 2, d.RunsLast7Days)
	assert.InDelta(t, 30, d.DistanceLast7Days, 1e-9)
	assert.Equal(t, 3, d.RunsLast30Days)
	assert.InDelta(t, 78.2/4, d.AvgRecentDistance, 1e-9)
}

func TestBuilder_Empty(t *testing.T) {
	d, err := NewBuilder(&fakeSource{}).Build(context.Background())
	require.NoError(t, err)
	assert.Zero(t, d.TotalRuns)
	assert.Zero(t, d.AvgRecentDistance)
	assert.Empty(t, d.Shoes)
	assert.Empty(t, d.WornOut)
}

func TestBuilder_SourceError(t *testing.T) {
	_, err := NewBuilder(&fakeSource{err: errors.New("closed")}).Build(context.Background())
	assert.ErrorContains(t, err, "failed to list shoes")
}
