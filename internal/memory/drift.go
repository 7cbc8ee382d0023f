package memory

import "sync"

// DriftStatus distinguishes "no signal" from "computation failed" so the
// two degraded paths stay observable even though both report no drift.
type DriftStatus int

const (
	// DriftSkipped means no vector was supplied; the call was a no-op.
	DriftSkipped DriftStatus = iota
	// DriftFailed means the vector was malformed relative to the window.
	DriftFailed
	// DriftMeasured means the vector was compared and recorded.
	DriftMeasured
)

// DriftObservation is the result of feeding one embedding to the detector.
type DriftObservation struct {
	Similarity float64
	Status     DriftStatus
	Drift      bool
}

// DriftDetector keeps a bounded sliding window of recent embeddings and
// their centroid. An incoming vector whose similarity to the centroid falls
// below the threshold is flagged as semantic drift. The window and centroid
// are always mutually consistent: the centroid is recomputed under the same
// lock as every insertion.
type DriftDetector struct {
	centroid  []float64
	window    [][]float64
	threshold float64
	capacity  int
	mu        sync.Mutex
}

// NewDriftDetector creates a detector with the given window capacity and
// similarity threshold. Non-positive arguments fall back to the defaults
// (window 200, threshold 0.65).
func NewDriftDetector(capacity int, threshold float64) *DriftDetector {
	if capacity <= 0 {
		capacity = 200
	}
	if threshold <= 0 {
		threshold = 0.65
	}
	return &DriftDetector{
		capacity:  capacity,
		threshold: threshold,
	}
}

// Observe compares the vector against the current centroid, then pushes it
// into the window (evicting the oldest entry when full) and recomputes the
// centroid. A nil vector is a no-op; a vector whose length disagrees with
// the window degrades to "no drift" without entering the window.
func (d *DriftDetector) Observe(vector []float64) DriftObservation {
	if len(vector) == 0 {
		return DriftObservation{Status: DriftSkipped}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.centroid != nil && len(vector) != len(d.centroid) {
		return DriftObservation{Status: DriftFailed}
	}

	obs := DriftObservation{Status: DriftMeasured}
	if d.centroid != nil {
		obs.Similarity = Cosine(vector, d.centroid)
		obs.Drift = obs.Similarity < d.threshold
	}

	if len(d.window) == d.capacity {
		d.window = d.window[1:]
	}
	d.window = append(d.window, vector)
	d.recomputeCentroid()

	return obs
}

// Reset discards the window and centroid together.
func (d *DriftDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.window = nil
	d.centroid = nil
}

// Size returns the number of vectors currently in the window.
func (d *DriftDetector) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.window)
}

func (d *DriftDetector) recomputeCentroid() {
	if len(d.window) == 0 {
		d.centroid = nil
		return
	}

	centroid := make([]float64, len(d.window[0]))
	for _, vec := range d.window {
		for i, v := range vec {
			centroid[i] += v
		}
	}
	n := float64(len(d.window))
	for i := range centroid {
		centroid[i] /= n
	}
	d.centroid = centroid
}
