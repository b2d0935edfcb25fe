package calculator

import "math"

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation. Fewer than two points yield 0.
func stddev(xs []float64) float64 {
	return math.Sqrt(variance(xs))
}

func variance(xs []float64) float64 {
	return covariance(xs, xs)
}

// covariance is the sample covariance of two equally long slices.
func covariance(xs, ys []float64) float64 {
	n := len(xs)
	if n < 2 || len(ys) != n {
		return 0
	}
	mx, my := mean(xs), mean(ys)
	sum := 0.0
	for i := range xs {
		sum += (xs[i] - mx) * (ys[i] - my)
	}
	return sum / float64(n-1)
}
