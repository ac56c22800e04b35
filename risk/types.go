package risk

import "errors"

var (
	// ErrEmptyScan is returned when a scan carries no range readings.
	ErrEmptyScan = errors.New("scan has no range readings")
	// ErrNoStaticMap is returned when a cycle runs before a static map was installed.
	ErrNoStaticMap = errors.New("static map not loaded")
	// ErrInvalidGrid is returned for occupancy grids whose header and data disagree.
	ErrInvalidGrid = errors.New("invalid occupancy grid")
)

// Point represents a 2D world-frame coordinate
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pose is the robot position and heading (radians, CCW from +X) in world frame
type Pose struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// Position returns the translational part of the pose
func (p Pose) Position() Point {
	return Point{X: p.X, Y: p.Y}
}

// ScanFrame is one sweep of the rotating range sensor. Index 0 corresponds to
// AngleMin and each following reading is AngleIncrement further around.
type ScanFrame struct {
	AngleMin       float64   `json:"angle_min"`
	AngleIncrement float64   `json:"angle_increment"`
	RangeMin       float64   `json:"range_min"`
	RangeMax       float64   `json:"range_max"`
	Ranges         []float64 `json:"ranges"`
}

// Len returns the number of bearings in the scan
func (s *ScanFrame) Len() int {
	return len(s.Ranges)
}

// BearingAngle returns the sensor-frame angle of bearing index i
func (s *ScanFrame) BearingAngle(i int) float64 {
	return s.AngleMin + s.AngleIncrement*float64(i)
}

// InRange reports whether reading i is a usable return
func (s *ScanFrame) InRange(i int) bool {
	r := s.Ranges[i]
	return r < s.RangeMax && r >= s.RangeMin
}

// GridOrigin is the world pose of cell (0,0)
type GridOrigin struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// GridInfo holds occupancy grid metadata
type GridInfo struct {
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Resolution float64    `json:"resolution"`
	Origin     GridOrigin `json:"origin"`
}

// OccupancyGrid is a row-major occupancy map: Data[j*Width+i] holds cell (i,j).
// Values follow the usual convention: -1 unknown, 0 free, 100 occupied.
type OccupancyGrid struct {
	Info GridInfo `json:"info"`
	Data []int8   `json:"data"`
}

// Occupancy cell values
const (
	CellUnknown  int8 = -1
	CellFree     int8 = 0
	CellOccupied int8 = 100
)

// DynamicCluster is one maximal run of dynamic bearings in the current scan.
// Start <= Min <= End except for a cluster merged across the seam, whose Start
// is numerically greater than End.
type DynamicCluster struct {
	Start  int   `json:"start"`
	Min    int   `json:"min"`
	End    int   `json:"end"`
	Center Point `json:"center"`
}

// Wraps reports whether the cluster spans the index 0 / N-1 seam
func (c DynamicCluster) Wraps() bool {
	return c.Start > c.End
}

// Direction is the bearing index the cluster's risk is centered on
func (c DynamicCluster) Direction() int {
	return c.Min
}

// ClusterRisk is the TTC outcome for one cluster in one processed cycle
type ClusterRisk struct {
	Cluster DynamicCluster `json:"cluster"`
	// TTC is NaN when no finite time-to-collision could be formed.
	TTC         float64 `json:"-"`
	Defined     bool    `json:"defined"`
	Probability float64 `json:"probability"`
	MatchedSlot int     `json:"matchedSlot"`
}

// SafetyField holds one no-collision probability per bearing index.
// 1.0 means no observed risk.
type SafetyField []float64

// NewSafeField returns a field of n bearings, all 1.0
func NewSafeField(n int) SafetyField {
	f := make(SafetyField, n)
	for i := range f {
		f[i] = 1.0
	}
	return f
}

// IsSafe reports whether bearing i is within eps of 1.0
func (f SafetyField) IsSafe(i int, eps float64) bool {
	return 1-f[i] < eps
}

// Clone returns an independent copy of the field
func (f SafetyField) Clone() SafetyField {
	if f == nil {
		return nil
	}
	out := make(SafetyField, len(f))
	copy(out, f)
	return out
}

// ProbabilitySink consumes the safety field produced by a processed cycle.
// It stands in for the trajectory-cost evaluator.
type ProbabilitySink interface {
	SetProbability(field SafetyField)
}

// ProbabilitySinkFunc adapts a function to ProbabilitySink
type ProbabilitySinkFunc func(field SafetyField)

// SetProbability calls f(field)
func (f ProbabilitySinkFunc) SetProbability(field SafetyField) {
	f(field)
}

// PlannerConfig holds the tunables of the risk pipeline
type PlannerConfig struct {
	StaticMatchRadius float64 `yaml:"staticMatchRadius" json:"staticMatchRadius"`
	SlotCapacity      int     `yaml:"slotCapacity" json:"slotCapacity"`
	SentinelDistance  float64 `yaml:"sentinelDistance" json:"sentinelDistance"`
	ProcessEvery      int     `yaml:"processEvery" json:"processEvery"`
	Association       string  `yaml:"association" json:"association"` // "greedy" or "hungarian"
	CollisionAlpha    float64 `yaml:"collisionAlpha" json:"collisionAlpha"`
	CollisionBeta     float64 `yaml:"collisionBeta" json:"collisionBeta"`
	Sigma             float64 `yaml:"sigma" json:"sigma"`
	GaussGamma        float64 `yaml:"gaussGamma" json:"gaussGamma"`
	Epsilon           float64 `yaml:"epsilon" json:"epsilon"`
	OccupiedValue     int8    `yaml:"occupiedValue" json:"occupiedValue"`
	ControlInterval   string  `yaml:"controlInterval" json:"controlInterval"` // Go duration, e.g. "100ms"
}

// MapConfig describes where the static occupancy grid comes from
type MapConfig struct {
	File          string `yaml:"file,omitempty" json:"file,omitempty"`
	URL           string `yaml:"url,omitempty" json:"url,omitempty"`
	RetryInterval string `yaml:"retryInterval,omitempty" json:"retryInterval,omitempty"`
	FetchTimeout  string `yaml:"fetchTimeout,omitempty" json:"fetchTimeout,omitempty"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker       string `yaml:"broker" json:"broker"`
	ClientID     string `yaml:"clientId" json:"clientId"`
	Username     string `yaml:"username,omitempty" json:"username,omitempty"`
	Password     string `yaml:"password,omitempty" json:"password,omitempty"`
	ScanTopic    string `yaml:"scanTopic" json:"scanTopic"`
	PoseTopic    string `yaml:"poseTopic" json:"poseTopic"`
	PublishTopic string `yaml:"publishTopic" json:"publishTopic"`
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	Port int `yaml:"port" json:"port"`
}

// RecorderConfig controls per-cycle CSV recording
type RecorderConfig struct {
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`
}

// Config represents the full configuration file
type Config struct {
	Planner  PlannerConfig  `yaml:"planner" json:"planner"`
	Map      MapConfig      `yaml:"map" json:"map"`
	MQTT     MQTTConfig     `yaml:"mqtt" json:"mqtt"`
	HTTP     HTTPConfig     `yaml:"http" json:"http"`
	Recorder RecorderConfig `yaml:"recorder,omitempty" json:"recorder,omitempty"`
}
