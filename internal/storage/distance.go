package storage

import (
	"fmt"
	"math"
)

// Metric selects how query distance is computed.
type Metric int

const (
	// MetricCosine is 1 - cosine similarity. A zero vector has similarity 0 with everything.
	MetricCosine Metric = iota
	// MetricEuclidean is the L2 distance.
	MetricEuclidean
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricEuclidean:
		return "euclidean"
	default:
		return fmt.Sprintf("Metric(%d)", int(m))
	}
}

// ParseMetric accepts "cosine" or "euclidean"; empty means cosine.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "", "cosine":
		return MetricCosine, nil
	case "euclidean", "l2":
		return MetricEuclidean, nil
	default:
		return 0, fmt.Errorf("unknown distance metric %q", s)
	}
}

func (m Metric) distance(a, b []float32) float64 {
	if m == MetricEuclidean {
		return euclideanDistance(a, b)
	}
	return cosineDistance(a, b)
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return max(0, 1-dot/(math.Sqrt(na)*math.Sqrt(nb)))
}

func euclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
