package trial

import (
	"math"
	"time"
)

// Normalize wraps an angle into [0, 360).
func Normalize(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	// Mod of a tiny negative value plus 360 rounds up to 360
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// TruncateAngle cuts an angle down to a multiple of res degrees.
// res must divide one degree evenly.
// The small bias absorbs floating point error of accumulated steps,
// so that 59.99999999 at 0.1 degree resolution reads 60.0.
func TruncateAngle(deg, res float64) float64 {
	scale := math.Round(1 / res)
	if scale < 1 {
		scale = 1
	}
	return Normalize(math.Floor(deg*scale+1e-6) / scale)
}

// TruncateDuration cuts a duration down to a multiple of res.
// Negative values are clamped to zero.
func TruncateDuration(d, res time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if res <= 0 {
		return d
	}
	return d.Truncate(res)
}

// signedDifference returns a-b folded into (-180, 180].
func signedDifference(a, b float64) float64 {
	d := Normalize(a - b)
	if d > 180 {
		d -= 360
	}
	return d
}
