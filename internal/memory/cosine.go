// Package memory implements the merchant memory index and embedding drift
// detection. Similarity search is an exact linear scan over stored records;
// this is deliberately not an approximate-nearest-neighbor engine.
package memory

import "math"

// Cosine computes cosine similarity between two equal-length vectors.
// It returns 0 when either vector is empty, mismatched in length, or has
// zero norm, so callers never divide by zero.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}

	if na == 0 || nb == 0 {
		return 0
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
