package gfn

import "math"

const (
	// LogZero stands in for log(0) throughout the engine. Flows, edge
	// probabilities, and unreachable-state log probabilities all bottom
	// out here rather than at -Inf so that arithmetic stays finite.
	LogZero = -100.0

	// ClipFloor bounds log probabilities when computing metrics, so a
	// single unreachable terminal state cannot blow up a mean.
	ClipFloor = -10000.0
)

// LogAddExp returns log(exp(a) + exp(b)) without overflow.
func LogAddExp(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if math.IsInf(a, -1) {
		return a
	}
	return a + math.Log1p(math.Exp(b-a))
}

// LogSumExp returns log(sum(exp(xs))). An empty slice yields -Inf.
func LogSumExp(xs []float64) float64 {
	if len(xs) == 0 {
		return math.Inf(-1)
	}
	hi := xs[0]
	for _, x := range xs[1:] {
		if x > hi {
			hi = x
		}
	}
	if math.IsInf(hi, -1) {
		return hi
	}
	sum := 0.0
	for _, x := range xs {
		sum += math.Exp(x - hi)
	}
	return hi + math.Log(sum)
}

// Clip bounds x below by ClipFloor.
func Clip(x float64) float64 {
	if x < ClipFloor {
		return ClipFloor
	}
	return x
}
