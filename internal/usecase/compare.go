package usecase

import (
	"fmt"

	"SessionLens/internal/domain/models"
	"SessionLens/internal/services/aggregate"
	"SessionLens/internal/services/analytics"
	"SessionLens/pkg/util"
)

// ContractRun pairs a finished run with the contract it was computed for.
type ContractRun struct {
	Contract string
	Result   *models.RunResult
}

// CompareContracts profiles each run and, for exactly two contracts, adds
// ratios of the first to the second and the correlation of their daily
// ranges over shared dates.
func CompareContracts(runs []ContractRun) (*models.ContractComparison, error) {
	if len(runs) == 0 {
		return nil, fmt.Errorf("compare contracts: %w", models.ErrEmptyDataset)
	}
	cmp := &models.ContractComparison{}
	for _, r := range runs {
		if r.Result == nil || len(r.Result.Daily) == 0 {
			return nil, fmt.Errorf("compare contracts: %s: %w", r.Contract, models.ErrEmptyDataset)
		}
		cmp.Contracts = append(cmp.Contracts, contractMetrics(r.Contract, r.Result))
	}
	if len(runs) != 2 {
		return cmp, nil
	}

	a, b := cmp.Contracts[0], cmp.Contracts[1]
	cmp.VolatilityRatio = ratio(a.MeanRange, b.MeanRange)
	cmp.StrongDaysRatio = ratio(a.StrongPct, b.StrongPct)
	cmp.VolumeRatio = ratio(a.MeanDailyVolume, b.MeanDailyVolume)

	other := aggregate.ByDate(runs[1].Result.Daily)
	var xs, ys []float64
	for _, d := range runs[0].Result.Daily {
		if o, ok := other[d.Date]; ok {
			xs = append(xs, d.DailyRange)
			ys = append(ys, o.DailyRange)
		}
	}
	cmp.SharedDays = len(xs)
	if r, ok := util.Pearson(xs, ys); ok {
		r = util.Round(r, 3)
		cmp.RangeCorrelation = &models.Correlation{
			Key:      models.CorrelationKey(a.Contract + "→" + b.Contract),
			R:        r,
			Samples:  len(xs),
			Strength: analytics.Strength(r),
			Sign:     analytics.Sign(r),
		}
	}
	return cmp, nil
}

func contractMetrics(name string, res *models.RunResult) models.ContractMetrics {
	days := res.Daily
	m := models.ContractMetrics{
		Contract:          name,
		Days:              len(days),
		MeanSessionRanges: make(map[models.Session]float64, len(models.Sessions)),
	}

	ranges := make([]float64, len(days))
	vols := make([]float64, len(days))
	volumes := make([]float64, len(days))
	strong, lateral := 0, 0
	for i, d := range days {
		ranges[i] = d.DailyRange
		vols[i] = d.Volatility
		volumes[i] = float64(d.Volume)
		switch d.Classification {
		case models.ClassStrong:
			strong++
		case models.ClassLateral:
			lateral++
		}
		if d.IsOutlier {
			m.Outliers++
		}
	}
	m.StrongPct = util.Pct(strong, len(days))
	m.LateralPct = util.Pct(lateral, len(days))
	m.MeanRange = util.Mean(ranges)
	m.MinRange, m.MaxRange = util.MinMax(ranges)
	m.MeanVolatility = util.Mean(vols)
	m.MeanDailyVolume = util.Mean(volumes)

	for _, s := range res.Sessions {
		m.MeanSessionRanges[s.Session] += s.RangeTotal
	}
	for _, s := range models.Sessions {
		m.MeanSessionRanges[s] /= float64(len(days))
	}
	return m
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
