package risk

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultStaticMatchRadius is the distance within which a scan return is
// considered explained by the static map.
const DefaultStaticMatchRadius = 0.20

// Extraction is the output of one ClusterExtractor pass
type Extraction struct {
	// DynamicIndices are the bearing indices not explained by the static map, in scan order.
	DynamicIndices []int
	// Clusters holds the clusters whose center solve succeeded.
	Clusters []DynamicCluster
	// Dropped counts clusters excluded because their center was degenerate.
	Dropped int
}

// NoObstacles reports whether the scan contained no dynamic returns
func (e *Extraction) NoObstacles() bool {
	return len(e.DynamicIndices) == 0
}

// ClusterExtractor separates dynamic returns from the static map and groups
// them into angular clusters with an estimated world-frame center.
type ClusterExtractor struct {
	static *StaticIndex
	radius float64
}

// NewClusterExtractor creates an extractor backed by the given static index.
// A nil index classifies every in-range return as dynamic.
func NewClusterExtractor(static *StaticIndex, radius float64) *ClusterExtractor {
	if radius <= 0 {
		radius = DefaultStaticMatchRadius
	}
	return &ClusterExtractor{static: static, radius: radius}
}

// Extract classifies, clusters and localizes the dynamic returns of scan
func (e *ClusterExtractor) Extract(scan *ScanFrame, pose Pose) Extraction {
	var out Extraction
	out.DynamicIndices = e.dynamicIndices(scan, pose)
	if len(out.DynamicIndices) == 0 {
		return out
	}

	runs := splitRuns(scan, out.DynamicIndices)
	runs = mergeSeam(scan, out.DynamicIndices, runs)

	for _, c := range runs {
		center, ok := solveCenter(scan, c, pose)
		if !ok {
			out.Dropped++
			continue
		}
		c.Center = center
		out.Clusters = append(out.Clusters, c)
	}
	return out
}

// dynamicIndices returns the in-range bearings with no static point nearby
func (e *ClusterExtractor) dynamicIndices(scan *ScanFrame, pose Pose) []int {
	var idx []int
	for i := range scan.Ranges {
		if !scan.InRange(i) {
			continue
		}
		p := WorldPoint(scan, i, pose)
		if e.static.Explains(p, e.radius) {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

// splitRuns splits the ordered dynamic indices into maximal runs of
// consecutive integers. Min is the index of the smallest range in each run;
// ties keep the earliest index.
func splitRuns(scan *ScanFrame, dyn []int) []DynamicCluster {
	var runs []DynamicCluster
	cur := DynamicCluster{Start: dyn[0], Min: dyn[0], End: dyn[0]}
	for _, i := range dyn[1:] {
		if i-cur.End != 1 {
			runs = append(runs, cur)
			cur = DynamicCluster{Start: i, Min: i, End: i}
			continue
		}
		cur.End = i
		if scan.Ranges[i] < scan.Ranges[cur.Min] {
			cur.Min = i
		}
	}
	return append(runs, cur)
}

// mergeSeam joins the first and last runs when they touch both ends of the
// bearing array. The merged cluster keeps the last run's start and the first
// run's end, so Start > End marks it as wrapping. A single run covering every
// bearing is left alone.
func mergeSeam(scan *ScanFrame, dyn []int, runs []DynamicCluster) []DynamicCluster {
	if len(runs) < 2 || dyn[0] != 0 || dyn[len(dyn)-1] != scan.Len()-1 {
		return runs
	}
	first, last := runs[0], runs[len(runs)-1]
	merged := DynamicCluster{Start: last.Start, Min: first.Min, End: first.End}
	if scan.Ranges[last.Min] <= scan.Ranges[first.Min] {
		merged.Min = last.Min
	}
	runs[0] = merged
	return runs[:len(runs)-1]
}

// degenerateTolerance bounds the relative cross product below which the three
// edge samples are treated as collinear.
const degenerateTolerance = 1e-9

// solveCenter estimates the cluster center from the sensor-frame samples at
// Start (A), Min (C) and End (B). With CA = A-C, CB = B-C, a = |CA|², b = |CB|²
// and d = CA·CB the center is C + p·CA + q·CB where
//
//	p = (d·a/2 - d·b/2) / (d·(a-b))
//	q = (-b·a/2 + a·b/2) / (d·(a-b))
//
// The sensor-frame center is rotated by the robot heading and offset by the
// robot position. ok is false when the samples are collinear or the
// denominator vanishes; such clusters contribute nothing to the cycle.
func solveCenter(scan *ScanFrame, c DynamicCluster, pose Pose) (Point, bool) {
	A := vec(SensorPoint(scan, c.Start))
	C := vec(SensorPoint(scan, c.Min))
	B := vec(SensorPoint(scan, c.End))

	ca := r2.Sub(A, C)
	cb := r2.Sub(B, C)
	a := r2.Norm2(ca)
	b := r2.Norm2(cb)
	d := r2.Dot(ca, cb)

	if math.Abs(r2.Cross(ca, cb)) <= degenerateTolerance*math.Sqrt(a*b) {
		return Point{}, false
	}
	denom := d * (a - b)
	if math.Abs(denom) < 1e-12 {
		return Point{}, false
	}
	p := (d*a/2 - d*b/2) / denom
	q := (-b*a/2 + a*b/2) / denom

	local := r2.Add(C, r2.Add(r2.Scale(p, ca), r2.Scale(q, cb)))
	world := RotatePoint(fromVec(local), NormalizeHeading(pose.Theta))
	center := Point{X: pose.X + world.X, Y: pose.Y + world.Y}
	if !isFinite(center) {
		return Point{}, false
	}
	return center, true
}
