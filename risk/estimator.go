package risk

import (
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/floats"
)

// CycleResult is everything one processed cycle produced
type CycleResult struct {
	Cycle     uint64    `json:"cycle"`
	Timestamp time.Time `json:"timestamp"`
	Pose      Pose      `json:"pose"`
	// Bearing geometry of the scan the field was built from.
	AngleMin       float64       `json:"angleMin"`
	AngleIncrement float64       `json:"angleIncrement"`
	Clusters       []ClusterRisk `json:"clusters"`
	Dropped        int           `json:"dropped"`
	Dynamic        int           `json:"dynamic"`
	Field          SafetyField   `json:"field"`
	Corrected      bool          `json:"corrected"`
}

// BearingAngle returns the sensor-frame angle of field index i
func (r *CycleResult) BearingAngle(i int) float64 {
	return r.AngleMin + r.AngleIncrement*float64(i)
}

// MinSafety returns the least safe bearing value and its index, or (1, -1)
// for an empty field
func (r *CycleResult) MinSafety() (float64, int) {
	if len(r.Field) == 0 {
		return 1, -1
	}
	idx := floats.MinIdx(r.Field)
	return r.Field[idx], idx
}

// RiskEstimator runs the obstacle-risk pipeline once per control cycle. All
// of its state (tracked slots, previous pose, cadence counter, last field)
// belongs to the instance; it is not safe for concurrent use.
type RiskEstimator struct {
	cfg       PlannerConfig
	static    *StaticIndex
	extractor *ClusterExtractor
	ttc       *TTCEstimator
	spreader  Spreader
	sink      ProbabilitySink
	logger    *slog.Logger

	invocations uint64
	processed   uint64
	last        SafetyField
}

// EstimatorOption configures a RiskEstimator
type EstimatorOption func(*RiskEstimator)

// WithSink sets where processed fields are pushed
func WithSink(sink ProbabilitySink) EstimatorOption {
	return func(e *RiskEstimator) {
		e.sink = sink
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) EstimatorOption {
	return func(e *RiskEstimator) {
		e.logger = logger
	}
}

// NewRiskEstimator creates an estimator from planner settings. Zero-valued
// settings take their defaults. The static map must be installed with
// SetStaticMap before the first cycle.
func NewRiskEstimator(cfg PlannerConfig, opts ...EstimatorOption) (*RiskEstimator, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ttc, err := NewTTCEstimator(
		WithSlotCapacity(cfg.SlotCapacity),
		WithSentinelDistance(cfg.SentinelDistance),
		WithCollisionModel(cfg.CollisionAlpha, cfg.CollisionBeta),
		WithAssociation(cfg.Association),
	)
	if err != nil {
		return nil, fmt.Errorf("creating TTC estimator: %w", err)
	}

	e := &RiskEstimator{
		cfg:      cfg,
		ttc:      ttc,
		spreader: Spreader{Sigma: cfg.Sigma, Gamma: cfg.GaussGamma},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e, nil
}

// SetStaticMap rebuilds the static index from g and resets all tracking state
func (e *RiskEstimator) SetStaticMap(g *OccupancyGrid) error {
	idx, err := NewStaticIndex(g, e.cfg.OccupiedValue)
	if err != nil {
		return fmt.Errorf("building static index: %w", err)
	}
	e.static = idx
	e.extractor = NewClusterExtractor(idx, e.cfg.StaticMatchRadius)
	e.Reset()
	e.logger.Info("static map installed", "static_points", idx.Len())
	return nil
}

// StaticPoints returns the number of indexed static obstacle points
func (e *RiskEstimator) StaticPoints() int {
	return e.static.Len()
}

// Static returns the installed static index, or nil before SetStaticMap
func (e *RiskEstimator) Static() *StaticIndex {
	return e.static
}

// Reset clears the tracked slots, previous pose, cadence counter and last
// field. Call it whenever the scan or map source changes.
func (e *RiskEstimator) Reset() {
	e.ttc.Reset()
	e.invocations = 0
	e.last = nil
}

// LastField returns a copy of the field from the last processed cycle. It
// stays the operative risk view through skipped cycles.
func (e *RiskEstimator) LastField() SafetyField {
	return e.last.Clone()
}

// Processed returns the number of cycles that ran the pipeline
func (e *RiskEstimator) Processed() uint64 {
	return e.processed
}

// Cycle is called once per control cycle. Only every ProcessEvery-th call
// (starting with the first) runs the pipeline; the others return false and
// emit no field.
func (e *RiskEstimator) Cycle(pose Pose, scan *ScanFrame) (*CycleResult, bool, error) {
	if e.extractor == nil {
		return nil, false, ErrNoStaticMap
	}
	if scan == nil || scan.Len() == 0 {
		return nil, false, ErrEmptyScan
	}

	n := e.invocations
	e.invocations++
	if n%uint64(e.cfg.ProcessEvery) != 0 {
		return nil, false, nil
	}

	res := e.process(pose, scan)
	e.processed++
	e.last = res.Field.Clone()
	if e.sink != nil {
		e.sink.SetProbability(res.Field.Clone())
	}

	minVal, minIdx := res.MinSafety()
	e.logger.Debug("cycle processed",
		"cycle", res.Cycle,
		"dynamic", res.Dynamic,
		"clusters", len(res.Clusters),
		"dropped", res.Dropped,
		"min_safety", minVal,
		"min_bearing", minIdx,
		"corrected", res.Corrected)
	return res, true, nil
}

// process runs extraction, TTC, spreading and seam correction
func (e *RiskEstimator) process(pose Pose, scan *ScanFrame) *CycleResult {
	res := &CycleResult{
		Cycle:     e.processed + 1,
		Timestamp: time.Now(),
		Pose:      pose,

		AngleMin:       scan.AngleMin,
		AngleIncrement: scan.AngleIncrement,
	}

	ex := e.extractor.Extract(scan, pose)
	res.Dynamic = len(ex.DynamicIndices)
	res.Dropped = ex.Dropped
	if ex.NoObstacles() {
		res.Field = NewSafeField(scan.Len())
		return res
	}

	res.Clusters = e.ttc.Estimate(ex.Clusters, pose)
	res.Field = e.spreader.Spread(scan.Len(), res.Clusters)
	res.Corrected = CorrectWraparound(res.Field, e.cfg.Epsilon)
	return res
}
