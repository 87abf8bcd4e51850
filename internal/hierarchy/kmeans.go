package hierarchy

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const maxLloydIterations = 100

// standardize returns column-wise z-scores using the population standard
// deviation. Constant columns map to zero.
func standardize(rows [][]float64) [][]float64 {
	if len(rows) == 0 {
		return nil
	}
	cols := len(rows[0])
	out := make([][]float64, len(rows))
	for i := range out {
		out[i] = make([]float64, cols)
	}
	col := make([]float64, len(rows))
	for j := 0; j < cols; j++ {
		for i := range rows {
			col[i] = rows[i][j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			continue
		}
		for i := range rows {
			out[i][j] = (rows[i][j] - mean) / std
		}
	}
	return out
}

// distinctRows counts unique feature vectors.
func distinctRows(rows [][]float64) int {
	n := 0
	for i := range rows {
		dup := false
		for j := 0; j < i; j++ {
			if floats.Equal(rows[i], rows[j]) {
				dup = true
				break
			}
		}
		if !dup {
			n++
		}
	}
	return n
}

// kmeans clusters points into k groups and returns one label per point.
// Seeding is k-means++ from a fixed-seed source so repeated runs agree.
func kmeans(points [][]float64, k int, seed uint64) []int {
	labels := make([]int, len(points))
	if k <= 1 || len(points) <= 1 {
		return labels
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	centers := seedCenters(points, k, rng)

	for i := range labels {
		labels[i] = -1
	}
	for iter := 0; iter < maxLloydIterations; iter++ {
		changed := false
		for i, p := range points {
			best := nearest(p, centers)
			if best != labels[i] {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		for c := range centers {
			var members int
			sum := make([]float64, len(points[0]))
			for i, p := range points {
				if labels[i] == c {
					floats.Add(sum, p)
					members++
				}
			}
			if members == 0 {
				continue // keep the previous center
			}
			floats.Scale(1/float64(members), sum)
			centers[c] = sum
		}
	}
	return labels
}

func seedCenters(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centers := [][]float64{clone(points[rng.IntN(len(points))])}
	d2 := make([]float64, len(points))
	for len(centers) < k {
		var total float64
		for i, p := range points {
			d := floats.Distance(p, centers[nearest(p, centers)], 2)
			d2[i] = d * d
			total += d2[i]
		}
		if total == 0 {
			break
		}
		target := rng.Float64() * total
		pick := len(points) - 1
		var acc float64
		for i, w := range d2 {
			acc += w
			if acc > target && w > 0 {
				pick = i
				break
			}
		}
		centers = append(centers, clone(points[pick]))
	}
	return centers
}

// nearest returns the index of the closest center; ties go to the lower index.
func nearest(p []float64, centers [][]float64) int {
	best, bestDist := 0, floats.Distance(p, centers[0], 2)
	for c := 1; c < len(centers); c++ {
		if d := floats.Distance(p, centers[c], 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}
