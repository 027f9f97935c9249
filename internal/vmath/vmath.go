// Package vmath provides the float32 vector kernels used by engine
// scoring paths.
package vmath

// Dot returns the dot product of a and b.
//
// Assumes len(a) == len(b); no bounds checks are performed.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 returns the squared Euclidean distance between a and b.
// It ranks identically to L2 and skips the sqrt.
//
// Assumes len(a) == len(b); no bounds checks are performed.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
