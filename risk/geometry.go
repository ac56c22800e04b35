package risk

import (
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/r2"
)

// vec converts a Point to a gonum vector
func vec(p Point) r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// fromVec converts a gonum vector back to a Point
func fromVec(v r2.Vec) Point {
	return Point{X: v.X, Y: v.Y}
}

// orbPoint converts a Point to an orb.Point
func orbPoint(p Point) orb.Point {
	return orb.Point{p.X, p.Y}
}

// Distance calculates Euclidean distance between two points
func Distance(p1, p2 Point) float64 {
	return r2.Norm(r2.Sub(vec(p2), vec(p1)))
}

// NormalizeHeading normalizes an angle in radians to the range [0, 2π).
func NormalizeHeading(rad float64) float64 {
	rad = math.Mod(rad, 2*math.Pi)
	if rad < 0 {
		rad += 2 * math.Pi
	}
	return rad
}

// Polar returns the point at distance r along angle theta from the origin
func Polar(r, theta float64) Point {
	return Point{X: r * math.Cos(theta), Y: r * math.Sin(theta)}
}

// RotatePoint rotates p around the origin by theta radians (CCW)
func RotatePoint(p Point, theta float64) Point {
	return fromVec(r2.Rotate(vec(p), theta, r2.Vec{}))
}

// SensorPoint returns the sensor-frame position of reading i (heading not applied)
func SensorPoint(scan *ScanFrame, i int) Point {
	return Polar(scan.Ranges[i], scan.BearingAngle(i))
}

// WorldPoint projects reading i into world frame using the robot pose
func WorldPoint(scan *ScanFrame, i int, pose Pose) Point {
	rel := Polar(scan.Ranges[i], scan.BearingAngle(i)+NormalizeHeading(pose.Theta))
	return Point{X: pose.X + rel.X, Y: pose.Y + rel.Y}
}

// isFinite reports whether both coordinates are finite numbers
func isFinite(p Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}
