// Package calc computes per-region mean time series from dense
// samples x timepoints matrices.
package calc

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/gonum/matrix/mat64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SeedColumn returns the first column of a seed matrix and the number of
// columns it had. Seeds are expected to carry a single map; callers warn
// when more are present.
func SeedColumn(seed *mat64.Dense) ([]float64, int) {
	rows, cols := seed.Dims()
	out := make([]float64, rows)
	mat64.Col(out, 0, seed)
	return out, cols
}

// RoundLabels converts seed values to integer region labels.
func RoundLabels(seed []float64) []int {
	labels := make([]int, len(seed))
	for i, v := range seed {
		labels[i] = int(math.Round(v))
	}
	return labels
}

// Rois returns the sorted distinct nonzero labels.
func Rois(labels []int) []int {
	seen := make(map[int]struct{})
	for _, l := range labels {
		if l != 0 {
			seen[l] = struct{}{}
		}
	}

	rois := make([]int, 0, len(seen))
	for l := range seen {
		rois = append(rois, l)
	}
	sort.Ints(rois)
	return rois
}

// ApplyMask zeroes seed values and labels outside the mask. It fails when
// the mask wipes out a region entirely, naming the lost labels.
func ApplyMask(seed []float64, labels []int, mask []float64) error {
	if len(mask) != len(seed) {
		return fmt.Errorf("mask has %d samples but seed has %d", len(mask), len(seed))
	}

	before := Rois(labels)
	for i, m := range mask {
		if m == 0 {
			seed[i] = 0
			labels[i] = 0
		}
	}
	after := Rois(labels)

	if len(after) < len(before) {
		kept := make(map[int]struct{}, len(after))
		for _, l := range after {
			kept[l] = struct{}{}
		}
		var lost []int
		for _, l := range before {
			if _, ok := kept[l]; !ok {
				lost = append(lost, l)
			}
		}
		return fmt.Errorf("mask removes every sample of label(s) %v", lost)
	}
	return nil
}

// MeanTimeSeries averages the functional rows of each region, returning
// one row per entry of rois, in order. Regions are averaged by a pool of
// workers fed from an order channel; each worker owns whole output rows,
// so the result is deterministic.
func MeanTimeSeries(funcMat *mat64.Dense, labels []int, rois []int) (*mat64.Dense, error) {
	rows, cols := funcMat.Dims()
	if rows != len(labels) {
		return nil, fmt.Errorf("func has %d samples but seed has %d", rows, len(labels))
	}
	if len(rois) == 0 {
		return nil, fmt.Errorf("seed contains no nonzero labels")
	}

	members := make(map[int][]int, len(rois))
	for i, l := range labels {
		if l != 0 {
			members[l] = append(members[l], i)
		}
	}
	for _, roi := range rois {
		if len(members[roi]) == 0 {
			return nil, fmt.Errorf("label %d not found in seed", roi)
		}
	}

	out := mat64.NewDense(len(rois), cols, nil)

	order := make(chan int, runtime.NumCPU())
	var wg sync.WaitGroup
	wg.Add(len(rois))

	for w := 0; w < runtime.NumCPU(); w++ {
		go func() {
			for idx := range order {
				roiMean(funcMat, members[rois[idx]], out, idx)
				wg.Done()
			}
		}()
	}
	for idx := range rois {
		order <- idx
	}

	wg.Wait()
	close(order)

	return out, nil
}

func roiMean(funcMat *mat64.Dense, rows []int, out *mat64.Dense, outRow int) {
	_, cols := funcMat.Dims()
	for t := 0; t < cols; t++ {
		acc := 0.0
		for _, r := range rows {
			acc += funcMat.At(r, t)
		}
		out.Set(outRow, t, acc/float64(len(rows)))
	}
}

// WeightedMeanTimeSeries collapses all samples to a single row, weighting
// each sample's contribution by its seed value.
func WeightedMeanTimeSeries(funcMat *mat64.Dense, weights []float64) (*mat64.Dense, error) {
	rows, cols := funcMat.Dims()
	if rows != len(weights) {
		return nil, fmt.Errorf("func has %d samples but seed has %d", rows, len(weights))
	}
	if floats.Sum(weights) == 0 {
		return nil, fmt.Errorf("seed weights sum to zero")
	}

	out := mat64.NewDense(1, cols, nil)
	col := make([]float64, rows)
	for t := 0; t < cols; t++ {
		mat64.Col(col, t, funcMat)
		out.Set(0, t, stat.Mean(col, weights))
	}
	return out, nil
}
