package risk

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature kinds written to the "kind" property
const (
	FeatureRobot   = "robot"
	FeatureCluster = "cluster"
	FeatureHeading = "approach"
	FeatureStatic  = "static"
)

// CycleToFeatureCollection exports a processed cycle as GeoJSON in world
// coordinates (meters): the robot pose, one point per cluster center with
// its bearing span and probability, and a line from the robot to each
// center. When static is non-nil its obstacle points are added as one
// MultiPoint feature.
func CycleToFeatureCollection(r *CycleResult, static *StaticIndex) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if r == nil {
		return fc
	}

	robot := orbPoint(r.Pose.Position())
	rf := geojson.NewFeature(robot)
	rf.Properties["kind"] = FeatureRobot
	rf.Properties["cycle"] = r.Cycle
	rf.Properties["theta"] = r.Pose.Theta
	minVal, minIdx := r.MinSafety()
	rf.Properties["minSafety"] = minVal
	rf.Properties["minBearing"] = minIdx
	rf.Properties["dropped"] = r.Dropped
	fc.Append(rf)

	for i, c := range r.Clusters {
		center := orbPoint(c.Cluster.Center)

		cf := geojson.NewFeature(center)
		cf.ID = fmt.Sprintf("cluster-%d", i)
		cf.Properties["kind"] = FeatureCluster
		cf.Properties["start"] = c.Cluster.Start
		cf.Properties["min"] = c.Cluster.Min
		cf.Properties["end"] = c.Cluster.End
		cf.Properties["wraps"] = c.Cluster.Wraps()
		cf.Properties["probability"] = c.Probability
		cf.Properties["defined"] = c.Defined
		if c.Defined {
			cf.Properties["ttc"] = c.TTC
		}
		if c.MatchedSlot >= 0 {
			cf.Properties["slot"] = c.MatchedSlot
		}
		fc.Append(cf)

		lf := geojson.NewFeature(orb.LineString{robot, center})
		lf.Properties["kind"] = FeatureHeading
		lf.Properties["cluster"] = i
		fc.Append(lf)
	}

	if static != nil && static.Len() > 0 {
		pts := static.Points()
		mp := make(orb.MultiPoint, len(pts))
		for i, p := range pts {
			mp[i] = orbPoint(p)
		}
		sf := geojson.NewFeature(mp)
		sf.Properties["kind"] = FeatureStatic
		sf.Properties["count"] = len(pts)
		fc.Append(sf)
	}

	return fc
}
