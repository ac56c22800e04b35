package risk

import (
	"sync"
	"time"
)

// StateTracker holds the latest sensor inputs delivered by subscriptions and
// the latest processed cycle for HTTP endpoints. Subscriptions write to it
// from their own goroutines; the control loop reads a consistent snapshot.
type StateTracker struct {
	mu         sync.RWMutex
	scan       *ScanFrame
	scanAt     time.Time
	pose       Pose
	poseAt     time.Time
	hasPose    bool
	last       *CycleResult
	mapLoaded  bool
	staticSize int
}

// NewStateTracker creates a new state tracker
func NewStateTracker() *StateTracker {
	return &StateTracker{}
}

// UpdateScan replaces the latest scan wholesale
func (st *StateTracker) UpdateScan(scan *ScanFrame) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.scan = scan
	st.scanAt = time.Now()
}

// UpdatePose stores the latest robot pose
func (st *StateTracker) UpdatePose(p Pose) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.pose = p
	st.poseAt = time.Now()
	st.hasPose = true
}

// Inputs returns the latest pose and scan. ok is false until both arrived.
func (st *StateTracker) Inputs() (Pose, *ScanFrame, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if !st.hasPose || st.scan == nil {
		return Pose{}, nil, false
	}
	return st.pose, st.scan, true
}

// SetMapLoaded records that a static map with n obstacle points is installed
func (st *StateTracker) SetMapLoaded(n int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.mapLoaded = true
	st.staticSize = n
}

// MapLoaded reports whether a static map is installed and its point count
func (st *StateTracker) MapLoaded() (bool, int) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.mapLoaded, st.staticSize
}

// UpdateResult stores the latest processed cycle
func (st *StateTracker) UpdateResult(r *CycleResult) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.last = r
}

// LastResult returns a copy of the latest processed cycle, or nil
func (st *StateTracker) LastResult() *CycleResult {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.last == nil {
		return nil
	}
	cp := *st.last
	cp.Field = st.last.Field.Clone()
	cp.Clusters = append([]ClusterRisk(nil), st.last.Clusters...)
	return &cp
}

// Ages returns how long ago the latest scan and pose arrived (zero if never)
func (st *StateTracker) Ages() (scanAge, poseAge time.Duration) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	now := time.Now()
	if !st.scanAt.IsZero() {
		scanAge = now.Sub(st.scanAt)
	}
	if !st.poseAt.IsZero() {
		poseAge = now.Sub(st.poseAt)
	}
	return scanAge, poseAge
}
