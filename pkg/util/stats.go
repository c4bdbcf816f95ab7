package util

import (
	"math"
	"sort"

	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"
)

// Mean returns the arithmetic mean, or NaN for an empty sample.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// SampleStd returns the n-1 standard deviation. Samples shorter than two yield 0.
func SampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// MinMax returns the extremes of xs. Both are NaN when xs is empty.
func MinMax(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return math.NaN(), math.NaN()
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}

// Percentile computes the q-th percentile (0..100) with linear interpolation
// between closest ranks, the default method of numpy and pandas.
func Percentile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	return percentileSorted(sorted, q)
}

// Percentiles computes several percentiles with a single sort.
func Percentiles(xs []float64, qs ...float64) []float64 {
	out := make([]float64, len(qs))
	if len(xs) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	for i, q := range qs {
		out[i] = percentileSorted(sorted, q)
	}
	return out
}

func percentileSorted(sorted []float64, q float64) float64 {
	if q <= 0 {
		return sorted[0]
	}
	if q >= 100 {
		return sorted[len(sorted)-1]
	}
	pos := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Median is the 50th percentile.
func Median(xs []float64) float64 { return Percentile(xs, 50) }

// Round rounds half to even to the given number of decimals.
func Round(x float64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	f, _ := decimal.NewFromFloat(x).RoundBank(places).Float64()
	return f
}

// Pct returns part/total*100, or 0 when total is zero.
func Pct(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// Pearson returns the correlation coefficient of two aligned samples. ok is
// false when fewer than two pairs exist or either side is constant.
func Pearson(x, y []float64) (r float64, ok bool) {
	n := len(x)
	if n < 2 || n != len(y) {
		return 0, false
	}
	if lo, hi := MinMax(x); lo == hi {
		return 0, false
	}
	if lo, hi := MinMax(y); lo == hi {
		return 0, false
	}
	r = talib.Correl(x, y, n)[n-1]
	return math.Max(-1, math.Min(1, r)), true
}

// Slope returns the least-squares slope of ys against their index 0..n-1.
func Slope(ys []float64) (float64, bool) {
	n := len(ys)
	if n < 2 {
		return 0, false
	}
	return talib.LinearRegSlope(ys, n)[n-1], true
}
