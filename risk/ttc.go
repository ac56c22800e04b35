package risk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Defaults for the TTC estimator
const (
	DefaultSlotCapacity     = 10
	DefaultSentinelDistance = 10000.0
	DefaultCollisionAlpha   = 0.8
	DefaultCollisionBeta    = 0.05
)

// Association strategies for matching current clusters to tracked slots
const (
	AssociationGreedy    = "greedy"
	AssociationHungarian = "hungarian"
)

// motionTolerance is the displacement magnitude below which motion is
// treated as absent when forming TTC.
const motionTolerance = 1e-9

// CollisionProbability maps a time-to-collision to a no-collision
// probability: 1 - alpha*exp(-(beta*ttc)²). It is 1-alpha at ttc = 0 and
// approaches 1 as |ttc| grows. Non-finite ttc yields 1.
func CollisionProbability(ttc, alpha, beta float64) float64 {
	if math.IsNaN(ttc) || math.IsInf(ttc, 0) {
		return 1.0
	}
	x := beta * ttc
	return 1 - alpha*math.Exp(-x*x)
}

// trackedSlot is one entry of the fixed-capacity previous-position buffer
type trackedSlot struct {
	pos      Point
	occupied bool
}

// TTCEstimator associates current cluster centers with the centers seen on
// the previous processed cycle and turns the closing geometry into a
// per-cluster no-collision probability. There is no persistent obstacle
// identity; association is redone from positions alone every cycle.
type TTCEstimator struct {
	slots       []trackedSlot
	sentinel    float64
	alpha, beta float64
	association string

	prevPose    Pose
	hasPrevPose bool
}

// TTCOption configures a TTCEstimator
type TTCOption func(*TTCEstimator)

// WithSlotCapacity sets the number of tracked slots
func WithSlotCapacity(n int) TTCOption {
	return func(e *TTCEstimator) {
		if n > 0 {
			e.slots = make([]trackedSlot, n)
		}
	}
}

// WithSentinelDistance sets the coordinate stored in unoccupied slots
func WithSentinelDistance(d float64) TTCOption {
	return func(e *TTCEstimator) {
		e.sentinel = d
	}
}

// WithCollisionModel sets alpha and beta of the probability model
func WithCollisionModel(alpha, beta float64) TTCOption {
	return func(e *TTCEstimator) {
		e.alpha = alpha
		e.beta = beta
	}
}

// WithAssociation selects greedy or hungarian matching
func WithAssociation(name string) TTCOption {
	return func(e *TTCEstimator) {
		e.association = name
	}
}

// NewTTCEstimator creates an estimator with all slots empty and no previous pose
func NewTTCEstimator(opts ...TTCOption) (*TTCEstimator, error) {
	e := &TTCEstimator{
		slots:       make([]trackedSlot, DefaultSlotCapacity),
		sentinel:    DefaultSentinelDistance,
		alpha:       DefaultCollisionAlpha,
		beta:        DefaultCollisionBeta,
		association: AssociationGreedy,
	}
	for _, opt := range opts {
		opt(e)
	}
	switch e.association {
	case AssociationGreedy, AssociationHungarian:
	default:
		return nil, fmt.Errorf("unknown association %q", e.association)
	}
	e.Reset()
	return e, nil
}

// Reset empties every slot and forgets the previous pose
func (e *TTCEstimator) Reset() {
	for i := range e.slots {
		e.slots[i] = trackedSlot{pos: Point{X: e.sentinel, Y: e.sentinel}}
	}
	e.prevPose = Pose{}
	e.hasPrevPose = false
}

// Capacity returns the number of tracked slots
func (e *TTCEstimator) Capacity() int {
	return len(e.slots)
}

// SlotPositions returns the stored position of every slot, sentinel included
func (e *TTCEstimator) SlotPositions() []Point {
	out := make([]Point, len(e.slots))
	for i, s := range e.slots {
		out[i] = s.pos
	}
	return out
}

// PreviousPose returns the pose stored on the last TTC cycle
func (e *TTCEstimator) PreviousPose() (Pose, bool) {
	return e.prevPose, e.hasPrevPose
}

// Estimate computes one ClusterRisk per cluster, then overwrites the slot
// buffer with this cycle's centers and stores pose as the previous pose.
func (e *TTCEstimator) Estimate(clusters []DynamicCluster, pose Pose) []ClusterRisk {
	matches := e.associate(clusters)

	robotDisp := r2.Vec{}
	if e.hasPrevPose {
		robotDisp = r2.Sub(vec(pose.Position()), vec(e.prevPose.Position()))
	}

	risks := make([]ClusterRisk, len(clusters))
	for i, c := range clusters {
		r := ClusterRisk{Cluster: c, TTC: math.NaN(), Probability: 1.0, MatchedSlot: matches[i]}
		if e.hasPrevPose && matches[i] >= 0 {
			prev := e.slots[matches[i]].pos
			if ttc, ok := timeToCollision(robotDisp, r2.Sub(vec(c.Center), vec(prev)), c.Center, pose); ok {
				r.TTC = ttc
				r.Defined = true
				r.Probability = CollisionProbability(ttc, e.alpha, e.beta)
			}
		}
		risks[i] = r
	}

	e.store(clusters)
	e.prevPose = pose
	e.hasPrevPose = true
	return risks
}

// timeToCollision forms relativeDistance / (|vRel|·cosθ) where vRel is the
// robot displacement minus the obstacle displacement and θ the angle between
// them. ok is false whenever any factor is undefined: no robot or obstacle
// motion, no relative motion, or perpendicular displacements.
func timeToCollision(robotDisp, obsDisp r2.Vec, center Point, pose Pose) (float64, bool) {
	robotSpeed := r2.Norm(robotDisp)
	obsSpeed := r2.Norm(obsDisp)
	if robotSpeed < motionTolerance || obsSpeed < motionTolerance {
		return math.NaN(), false
	}
	relSpeed := r2.Norm(r2.Sub(robotDisp, obsDisp))
	if relSpeed < motionTolerance {
		return math.NaN(), false
	}
	cosTheta := r2.Dot(robotDisp, obsDisp) / (robotSpeed * obsSpeed)
	if math.Abs(cosTheta) < motionTolerance {
		return math.NaN(), false
	}
	ttc := Distance(center, pose.Position()) / (relSpeed * cosTheta)
	if math.IsNaN(ttc) || math.IsInf(ttc, 0) {
		return math.NaN(), false
	}
	return ttc, true
}

// associate returns, per cluster, the index of its matched slot or -1
func (e *TTCEstimator) associate(clusters []DynamicCluster) []int {
	if e.association == AssociationHungarian {
		return e.associateHungarian(clusters)
	}
	return e.associateGreedy(clusters)
}

// associateGreedy picks the nearest occupied slot for each cluster
// independently; several clusters may claim the same slot.
func (e *TTCEstimator) associateGreedy(clusters []DynamicCluster) []int {
	out := make([]int, len(clusters))
	for i, c := range clusters {
		out[i] = -1
		best := math.MaxFloat64
		for j, s := range e.slots {
			if !s.occupied {
				continue
			}
			if d := Distance(c.Center, s.pos); d < best {
				best = d
				out[i] = j
			}
		}
	}
	return out
}

// associateHungarian solves a one-to-one assignment between clusters and
// occupied slots minimizing total distance.
func (e *TTCEstimator) associateHungarian(clusters []DynamicCluster) []int {
	var cols []int
	for j, s := range e.slots {
		if s.occupied {
			cols = append(cols, j)
		}
	}
	out := make([]int, len(clusters))
	for i := range out {
		out[i] = -1
	}
	if len(clusters) == 0 || len(cols) == 0 {
		return out
	}

	cost := make([][]float64, len(clusters))
	for i, c := range clusters {
		cost[i] = make([]float64, len(cols))
		for k, j := range cols {
			cost[i][k] = Distance(c.Center, e.slots[j].pos)
		}
	}
	for i, k := range HungarianAssign(cost) {
		if k >= 0 {
			out[i] = cols[k]
		}
	}
	return out
}

// store writes the first Capacity() centers into the slots and resets the rest
func (e *TTCEstimator) store(clusters []DynamicCluster) {
	for i := range e.slots {
		if i < len(clusters) {
			e.slots[i] = trackedSlot{pos: clusters[i].Center, occupied: true}
		} else {
			e.slots[i] = trackedSlot{pos: Point{X: e.sentinel, Y: e.sentinel}}
		}
	}
}
