package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDriftDetectorFirstObservation(t *testing.T) {
	d := NewDriftDetector(10, 0.65)

	// No centroid yet, so nothing to compare against.
	obs := d.Observe([]float64{1, 0})
	assert.Equal(t, DriftMeasured, obs.Status)
	assert.False(t, obs.Drift)
	assert.Equal(t, 1, d.Size())
}

func TestDriftDetectorFlagsDivergence(t *testing.T) {
	d := NewDriftDetector(10, 0.65)

	d.Observe([]float64{1, 0})
	d.Observe([]float64{1, 0.1})

	// Similar traffic does not drift.
	obs := d.Observe([]float64{1, 0.05})
	assert.Equal(t, DriftMeasured, obs.Status)
	assert.False(t, obs.Drift)

	// An orthogonal vector is well below the 0.65 threshold.
	obs = d.Observe([]float64{0, 1})
	assert.Equal(t, DriftMeasured, obs.Status)
	assert.True(t, obs.Drift)
	assert.Less(t, obs.Similarity, 0.65)
}

func TestDriftDetectorNoVectorIsNoOp(t *testing.T) {
	d := NewDriftDetector(10, 0.65)
	d.Observe([]float64{1, 0})

	obs := d.Observe(nil)
	assert.Equal(t, DriftSkipped, obs.Status)
	assert.False(t, obs.Drift)
	assert.Equal(t, 1, d.Size())
}

func TestDriftDetectorMalformedVector(t *testing.T) {
	d := NewDriftDetector(10, 0.65)
	d.Observe([]float64{1, 0})

	// Wrong dimensionality degrades to "no drift" and stays out of the window.
	obs := d.Observe([]float64{1, 0, 0})
	assert.Equal(t, DriftFailed, obs.Status)
	assert.False(t, obs.Drift)
	assert.Equal(t, 1, d.Size())
}

func TestDriftDetectorWindowEviction(t *testing.T) {
	d := NewDriftDetector(3, 0.65)

	for i := 0; i < 5; i++ {
		d.Observe([]float64{1, float64(i)})
	}

	assert.Equal(t, 3, d.Size())
}

func TestDriftDetectorReset(t *testing.T) {
	d := NewDriftDetector(10, 0.65)
	d.Observe([]float64{1, 0})
	d.Reset()

	assert.Equal(t, 0, d.Size())

	// After reset there is no centroid again, so no drift on re-seed.
	obs := d.Observe([]float64{0, 1})
	assert.Equal(t, DriftMeasured, obs.Status)
	assert.False(t, obs.Drift)
}
