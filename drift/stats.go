package drift

import (
	"math"
	"sort"
)

const epsilon = 1e-6

// PSI computes the Population Stability Index between an expected
// (baseline) and actual (recent) sample.
//
// The combined value range is partitioned into equal-width bins and
// PSI = sum((actual% - expected%) * ln(actual% / expected%)) over bins,
// with epsilon smoothing so empty bins never divide by zero.
//
// Interpretation: <0.1 no significant change, 0.1-0.25 moderate change,
// >=0.25 significant change.
func PSI(expected, actual []float64, bins int) float64 {
	if len(expected) == 0 || len(actual) == 0 {
		return 0
	}
	if bins <= 0 {
		bins = 10
	}

	minVal := math.Min(minOf(expected), minOf(actual))
	maxVal := math.Max(maxOf(expected), maxOf(actual))

	expectedCounts := histogram(expected, minVal, maxVal, bins)
	actualCounts := histogram(actual, minVal, maxVal, bins)

	expectedTotal := float64(len(expected))
	actualTotal := float64(len(actual))
	smoothing := float64(bins) * epsilon

	var psi float64
	for i := 0; i < bins; i++ {
		expectedPct := (float64(expectedCounts[i]) + epsilon) / (expectedTotal + smoothing)
		actualPct := (float64(actualCounts[i]) + epsilon) / (actualTotal + smoothing)
		psi += (actualPct - expectedPct) * math.Log(actualPct/expectedPct)
	}
	return psi
}

// KS computes the two-sample Kolmogorov-Smirnov statistic: the maximum
// absolute gap between the two empirical CDFs. 0 means identical
// distributions, 1 means disjoint.
func KS(expected, actual []float64) float64 {
	if len(expected) == 0 || len(actual) == 0 {
		return 0
	}

	a := append([]float64(nil), expected...)
	b := append([]float64(nil), actual...)
	sort.Float64s(a)
	sort.Float64s(b)

	na := float64(len(a))
	nb := float64(len(b))

	// Both CDFs must step past a shared value together, otherwise ties
	// produce a spurious gap and KS(A, A) comes out non-zero.
	var i, j int
	var maxGap float64
	for i < len(a) && j < len(b) {
		v := math.Min(a[i], b[j])
		for i < len(a) && a[i] == v {
			i++
		}
		for j < len(b) && b[j] == v {
			j++
		}
		gap := math.Abs(float64(i)/na - float64(j)/nb)
		if gap > maxGap {
			maxGap = gap
		}
	}
	return maxGap
}

func histogram(values []float64, minVal, maxVal float64, bins int) []int {
	counts := make([]int, bins)
	width := (maxVal - minVal) / float64(bins)

	for _, v := range values {
		var idx int
		if width == 0 {
			idx = 0
		} else {
			idx = int((v - minVal) / width)
			if idx >= bins {
				idx = bins - 1 // right edge is inclusive
			}
			if idx < 0 {
				idx = 0
			}
		}
		counts[idx]++
	}
	return counts
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
