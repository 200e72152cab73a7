package embeddings

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestNormalizeUnitNorm(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 1.0, norm(v), 1e-3)
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)
}

func TestNormalizeIdempotent(t *testing.T) {
	v := []float32{0.2, -0.7, 1.3}
	Normalize(v)
	first := append([]float32(nil), v...)
	Normalize(v)
	for i := range v {
		assert.InDelta(t, float64(first[i]), float64(v[i]), 1e-6)
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	Normalize(v)
	assert.Equal(t, []float32{0, 0, 0}, v)
}
