package ingest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"SessionLens/internal/domain/models"
)

// Bounds holds the plausibility limits applied to a batch.
type Bounds struct {
	PriceMin   float64
	PriceMax   float64
	VolumeMin  int64
	GapMinutes int
	SkipOHLC   bool
}

// DefaultBounds matches the limits used for MNQ-style index futures.
func DefaultBounds() Bounds {
	return Bounds{PriceMin: 1000, PriceMax: 50000, VolumeMin: 0, GapMinutes: 5}
}

// Validator runs every check over a batch and accumulates findings.
type Validator struct {
	b Bounds
}

func NewValidator(b Bounds) *Validator {
	if b.GapMinutes <= 0 {
		b.GapMinutes = 5
	}
	return &Validator{b: b}
}

// Validate never stops at the first failure. The input slice is not modified.
func (v *Validator) Validate(candles []models.Candle) *models.ValidationResult {
	res := &models.ValidationResult{Counts: make(map[models.ViolationKind]int)}

	v.checkNulls(candles, res)
	v.checkPrices(candles, res)
	v.checkVolume(candles, res)
	v.checkHighLow(candles, res)
	if !v.b.SkipOHLC {
		v.checkOpenClose(candles, res)
	}
	v.checkDuplicates(candles, res)
	v.checkGaps(candles, res)

	return res
}

func (v *Validator) checkNulls(candles []models.Candle, res *models.ValidationResult) {
	perCol := make(map[string]int)
	total := 0
	for _, c := range candles {
		for _, m := range c.Missing {
			perCol[m]++
			total++
		}
	}
	if total == 0 {
		return
	}
	parts := make([]string, 0, len(perCol))
	for _, col := range columns {
		if n := perCol[col]; n > 0 {
			parts = append(parts, col+": "+strconv.Itoa(n))
		}
	}
	res.Counts[models.ViolationNulls] = total
	res.Warnings = append(res.Warnings, models.ValidationWarning{
		Kind:    models.ViolationNulls,
		Count:   total,
		Message: "Valores nulos encontrados: " + strings.Join(parts, ", "),
	})
}

func (v *Validator) checkPrices(candles []models.Candle, res *models.ValidationResult) {
	cols := []struct {
		name string
		get  func(models.Candle) float64
	}{
		{"open", func(c models.Candle) float64 { return c.Open }},
		{"high", func(c models.Candle) float64 { return c.High }},
		{"low", func(c models.Candle) float64 { return c.Low }},
		{"close", func(c models.Candle) float64 { return c.Close }},
	}
	for _, col := range cols {
		var (
			seen         bool
			lo, hi       float64
			below, above int
		)
		for _, c := range candles {
			if !c.Has(col.name) {
				continue
			}
			x := col.get(c)
			if !seen || x < lo {
				lo = x
			}
			if !seen || x > hi {
				hi = x
			}
			seen = true
			if x < v.b.PriceMin {
				below++
			}
			if x > v.b.PriceMax {
				above++
			}
		}
		if below > 0 {
			res.Counts[models.ViolationPriceMin] += below
			res.Errors = append(res.Errors, fmt.Sprintf("%s: precio mínimo (%s) fuera de rango", col.name, fmtPrice(lo)))
		}
		if above > 0 {
			res.Counts[models.ViolationPriceMax] += above
			res.Errors = append(res.Errors, fmt.Sprintf("%s: precio máximo (%s) fuera de rango", col.name, fmtPrice(hi)))
		}
	}
}

func (v *Validator) checkVolume(candles []models.Candle, res *models.ValidationResult) {
	n := 0
	for _, c := range candles {
		if c.Has("volume") && c.Volume < v.b.VolumeMin {
			n++
		}
	}
	if n > 0 {
		res.Counts[models.ViolationVolume] = n
		res.Errors = append(res.Errors, fmt.Sprintf("%d registros con volumen negativo", n))
	}
}

func (v *Validator) checkHighLow(candles []models.Candle, res *models.ValidationResult) {
	n := 0
	for _, c := range candles {
		if c.Has("high") && c.Has("low") && c.High < c.Low {
			n++
		}
	}
	if n > 0 {
		res.Counts[models.ViolationHighLow] = n
		res.Errors = append(res.Errors, fmt.Sprintf("%d velas con High < Low", n))
	}
}

func (v *Validator) checkOpenClose(candles []models.Candle, res *models.ValidationResult) {
	var badOpen, badClose int
	for _, c := range candles {
		if !c.Has("high") || !c.Has("low") {
			continue
		}
		if c.Has("open") && (c.Open > c.High || c.Open < c.Low) {
			badOpen++
		}
		if c.Has("close") && (c.Close > c.High || c.Close < c.Low) {
			badClose++
		}
	}
	if badOpen > 0 {
		res.Counts[models.ViolationOpenRange] = badOpen
		res.Errors = append(res.Errors, fmt.Sprintf("%d velas con Open fuera de rango H/L", badOpen))
	}
	if badClose > 0 {
		res.Counts[models.ViolationCloseRange] = badClose
		res.Errors = append(res.Errors, fmt.Sprintf("%d velas con Close fuera de rango H/L", badClose))
	}
}

// checkDuplicates counts every row whose timestamp occurs more than once.
func (v *Validator) checkDuplicates(candles []models.Candle, res *models.ValidationResult) {
	seen := make(map[int64]int, len(candles))
	for _, c := range candles {
		seen[c.Timestamp.UnixNano()]++
	}
	n := 0
	for _, k := range seen {
		if k > 1 {
			n += k
		}
	}
	if n > 0 {
		res.Counts[models.ViolationDuplicates] = n
		res.Warnings = append(res.Warnings, models.ValidationWarning{
			Kind:    models.ViolationDuplicates,
			Count:   n,
			Message: fmt.Sprintf("%d timestamps duplicados encontrados", n),
		})
	}
}

func (v *Validator) checkGaps(candles []models.Candle, res *models.ValidationResult) {
	if len(candles) < 2 {
		return
	}
	ts := make([]time.Time, len(candles))
	for i, c := range candles {
		ts[i] = c.Timestamp
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })

	limit := time.Duration(v.b.GapMinutes) * time.Minute
	n := 0
	for i := 1; i < len(ts); i++ {
		if ts[i].Sub(ts[i-1]) > limit {
			n++
		}
	}
	if n > 0 {
		res.Counts[models.ViolationGaps] = n
		res.Warnings = append(res.Warnings, models.ValidationWarning{
			Kind:    models.ViolationGaps,
			Count:   n,
			Message: fmt.Sprintf("%d gaps temporales detectados (>%d min)", n, v.b.GapMinutes),
		})
	}
}

func fmtPrice(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
