package trial

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{359.9, 359.9},
		{360, 0},
		{361, 1},
		{-1, 359},
		{-360, 0},
		{720 + 45, 45},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, Normalize(c.in), 1e-9, "Normalize(%g)", c.in)
	}

	// Tiny negatives must not produce 360
	assert.Equal(t, 0.0, Normalize(-1e-17))

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 1000; i++ {
		v := Normalize((rng.Float64() - 0.5) * 1e5)
		assert.True(t, v >= 0 && v < 360, "got %g", v)
	}
}

func TestTruncateAngle(t *testing.T) {
	assert.Equal(t, 60.0, TruncateAngle(59.99999999, 0.1))
	assert.Equal(t, 12.3, TruncateAngle(12.39, 0.1))
	assert.Equal(t, 12.0, TruncateAngle(12.9, 1))
	assert.Equal(t, 0.0, TruncateAngle(359.99999999, 0.1))
	assert.Equal(t, 359.9, TruncateAngle(359.95, 0.1))
}

func TestTruncateDuration(t *testing.T) {
	assert.Equal(t, 666*time.Millisecond, TruncateDuration(666666666, time.Millisecond))
	assert.Equal(t, time.Duration(0), TruncateDuration(-time.Second, time.Millisecond))
	assert.Equal(t, 1234*time.Nanosecond, TruncateDuration(1234, 0))
}

func TestSignedDifference(t *testing.T) {
	assert.InDelta(t, -5, signedDifference(358, 3), 1e-9)
	assert.InDelta(t, 5, signedDifference(3, 358), 1e-9)
	assert.InDelta(t, 180, signedDifference(180, 0), 1e-9)
	assert.InDelta(t, 0, signedDifference(42, 42), 1e-9)
}
