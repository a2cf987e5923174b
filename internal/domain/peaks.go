package domain

import (
	"math"
	"sort"
)

// peakCriteria filters local maxima. Filters apply in order: height,
// distance, prominence.
type peakCriteria struct {
	height     float64
	distance   int
	prominence float64
}

// findPeaks returns the indices of accepted peaks in ascending order.
func findPeaks(x []float64, c peakCriteria) []int {
	peaks := localMaxima(x)

	kept := peaks[:0:0]
	for _, p := range peaks {
		if x[p] >= c.height {
			kept = append(kept, p)
		}
	}
	peaks = kept

	if c.distance > 1 {
		peaks = selectByDistance(x, peaks, c.distance)
	}

	kept = peaks[:0:0]
	for _, p := range peaks {
		if prominence(x, p) >= c.prominence {
			kept = append(kept, p)
		}
	}
	return kept
}

// localMaxima finds strict local maxima. A flat top counts once, at its
// middle index (rounded down). The first and last samples are never peaks.
func localMaxima(x []float64) []int {
	var peaks []int
	i := 1
	last := len(x) - 1
	for i < last {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < last && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				peaks = append(peaks, (i+ahead-1)/2)
				i = ahead
			}
		}
		i++
	}
	return peaks
}

// selectByDistance drops peaks closer than distance to a taller kept peak.
func selectByDistance(x []float64, peaks []int, distance int) []int {
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return x[peaks[order[a]]] > x[peaks[order[b]]] })

	keep := make([]bool, len(peaks))
	for i := range keep {
		keep[i] = true
	}
	for _, i := range order {
		if !keep[i] {
			continue
		}
		for j := i - 1; j >= 0 && peaks[i]-peaks[j] < distance; j-- {
			keep[j] = false
		}
		for j := i + 1; j < len(peaks) && peaks[j]-peaks[i] < distance; j++ {
			keep[j] = false
		}
	}

	out := peaks[:0:0]
	for i, p := range peaks {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

// prominence is the height of a peak above the higher of the two lowest
// points reachable on each side before meeting a taller sample.
func prominence(x []float64, peak int) float64 {
	leftMin := x[peak]
	for i := peak; i >= 0 && x[i] <= x[peak]; i-- {
		leftMin = math.Min(leftMin, x[i])
	}
	rightMin := x[peak]
	for i := peak; i < len(x) && x[i] <= x[peak]; i++ {
		rightMin = math.Min(rightMin, x[i])
	}
	return x[peak] - math.Max(leftMin, rightMin)
}
