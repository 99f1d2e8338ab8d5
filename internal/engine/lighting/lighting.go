// Package lighting describes the light rig used by the preview renderer.
package lighting

import (
	gomath "math"

	"github.com/Faultbox/modelboard/pkg/math"
)

// SunDirection converts azimuth/elevation angles in degrees to a unit vector
// pointing towards the light. Azimuth rotates around Y starting at +Z;
// elevation is measured up from the horizon.
func SunDirection(azimuth, elevation float64) math.Vec3 {
	az := azimuth * gomath.Pi / 180
	el := elevation * gomath.Pi / 180
	return math.Vec3{
		X: gomath.Cos(el) * gomath.Sin(az),
		Y: gomath.Sin(el),
		Z: gomath.Cos(el) * gomath.Cos(az),
	}
}

// Rig is an ambient term plus one directional key light.
type Rig struct {
	Ambient float64
	// Key points towards the light; it need not be normalized.
	Key          math.Vec3
	KeyIntensity float64
}

// DefaultRig returns ambient 0.6 and a key light from (5, 10, 7.5)
// shining towards the origin.
func DefaultRig() Rig {
	return Rig{
		Ambient:      0.6,
		Key:          math.Vec3{X: 5, Y: 10, Z: 7.5},
		KeyIntensity: 1,
	}
}

// Intensity returns the light factor for a unit surface normal n.
func (r Rig) Intensity(n math.Vec3) float64 {
	key := r.Key
	if key.Length() == 0 {
		return r.Ambient
	}
	return r.Ambient + gomath.Max(0, n.Dot(key.Normalize()))*r.KeyIntensity
}
