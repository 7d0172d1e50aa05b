package scheduler

import "time"

// defaultJitterRatio is the symmetric perturbation applied to poll_interval
// per spec.md §4.4; it is a fixed constant, not a dynamic setting.
const defaultJitterRatio = 0.20

// RandSource is an injectable pseudo-random source returning a value in
// [0, 1). Production wiring uses math/rand; tests pin a fake sequence to
// make jitter deterministic, per spec.md §4.4.
type RandSource func() float64

// jitter returns a symmetric uniform perturbation in
// ±jitterRatio × pollInterval, drawn from rnd.
func jitter(pollInterval time.Duration, jitterRatio float64, rnd RandSource) time.Duration {
	// rnd() in [0,1) maps to [-1,1) via 2*r-1
	spread := 2*rnd() - 1
	return time.Duration(float64(pollInterval) * jitterRatio * spread)
}
