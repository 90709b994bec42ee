package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	var magnitude float64
	for _, val := range v {
		magnitude += float64(val) * float64(val)
	}
	assert.InDelta(t, 1.0, math.Sqrt(magnitude), 1e-6)
}

func TestNormalizeVector_ZeroVector(t *testing.T) {
	v := NormalizeVector([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, v)
}

func TestNormalizeVector_Empty(t *testing.T) {
	assert.Empty(t, NormalizeVector(nil))
}

func TestDotProduct(t *testing.T) {
	assert.InDelta(t, 11.0, DotProduct([]float32{1, 2, 3}, []float32{3, 1, 2}), 1e-6)
	assert.InDelta(t, 0.0, DotProduct([]float32{1, 0}, []float32{0, 1}), 1e-6)
}

func TestDotProduct_MismatchedLengths(t *testing.T) {
	// Shorter vector bounds the sum.
	assert.InDelta(t, 4.0, DotProduct([]float32{2, 5}, []float32{2}), 1e-6)
}
