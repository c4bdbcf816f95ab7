package usecase

import (
	"testing"
	"time"

	"SessionLens/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRegistryEvictsOldest(t *testing.T) {
	reg := NewRunRegistry(2)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		reg.Put(&models.RunResult{RunID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)})
	}

	_, ok := reg.Get("a")
	assert.False(t, ok)

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].RunID)
	assert.Equal(t, "b", list[1].RunID)
}

func TestRunRegistryReplaceKeepsSlot(t *testing.T) {
	reg := NewRunRegistry(0)
	reg.Put(&models.RunResult{RunID: "a", CandleCount: 1})
	reg.Put(&models.RunResult{RunID: "a", CandleCount: 2})
	reg.Put(nil)

	list := reg.List()
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].CandleCount)
}

func day(date string, rng float64, class models.Classification) models.DailyStats {
	return models.DailyStats{Date: date, DailyRange: rng, Volume: 100, Classification: class}
}

func TestCompareContracts(t *testing.T) {
	mnq := &models.RunResult{
		Daily: []models.DailyStats{
			day("2024-01-02", 100, models.ClassStrong),
			day("2024-01-03", 200, models.ClassLateral),
			day("2024-01-04", 300, models.ClassStrong),
		},
		Sessions: []models.SessionStats{
			{Date: "2024-01-02", Session: models.SessionNY, RangeTotal: 60},
			{Date: "2024-01-03", Session: models.SessionNY, RangeTotal: 30},
		},
	}
	mes := &models.RunResult{
		Daily: []models.DailyStats{
			day("2024-01-02", 10, models.ClassLateral),
			day("2024-01-03", 20, models.ClassLateral),
			day("2024-01-04", 30, models.ClassStrong),
			day("2024-01-05", 40, models.ClassStrong),
		},
	}

	cmp, err := CompareContracts([]ContractRun{{"MNQ", mnq}, {"MES", mes}})
	require.NoError(t, err)
	require.Len(t, cmp.Contracts, 2)

	a := cmp.Contracts[0]
	assert.Equal(t, 200.0, a.MeanRange)
	assert.Equal(t, 100.0, a.MinRange)
	assert.Equal(t, 300.0, a.MaxRange)
	assert.InDelta(t, 30.0, a.MeanSessionRanges[models.SessionNY], 1e-9)
	assert.Zero(t, a.MeanSessionRanges[models.SessionAsia])

	assert.InDelta(t, 8.0, cmp.VolatilityRatio, 1e-9)
	assert.Equal(t, 1.0, cmp.VolumeRatio)
	assert.Equal(t, 3, cmp.SharedDays)
	require.NotNil(t, cmp.RangeCorrelation)
	assert.Equal(t, 1.0, cmp.RangeCorrelation.R)
	assert.Equal(t, models.CorrelationKey("MNQ→MES"), cmp.RangeCorrelation.Key)

	_, err = CompareContracts(nil)
	assert.ErrorIs(t, err, models.ErrEmptyDataset)
	_, err = CompareContracts([]ContractRun{{"MNQ", &models.RunResult{}}})
	assert.ErrorIs(t, err, models.ErrEmptyDataset)
}
