package risk

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
)

// CycleRecordFile is the name of the per-cycle CSV inside the recorder dir
const CycleRecordFile = "cycles.csv"

// CycleRecord is one row of cycles.csv
type CycleRecord struct {
	Cycle      uint64  `csv:"cycle"`
	Timestamp  string  `csv:"timestamp"`
	PoseX      float64 `csv:"pose_x"`
	PoseY      float64 `csv:"pose_y"`
	PoseTheta  float64 `csv:"pose_theta"`
	Dynamic    int     `csv:"dynamic_bearings"`
	Clusters   int     `csv:"clusters"`
	Dropped    int     `csv:"dropped"`
	Defined    int     `csv:"defined_ttc"`
	MinSafety  float64 `csv:"min_safety"`
	MinBearing int     `csv:"min_bearing"`
	Corrected  bool    `csv:"wrap_corrected"`
}

// NewCycleRecord summarizes a processed cycle as a CSV row
func NewCycleRecord(r *CycleResult) CycleRecord {
	minVal, minIdx := r.MinSafety()
	defined := 0
	for _, c := range r.Clusters {
		if c.Defined {
			defined++
		}
	}
	return CycleRecord{
		Cycle:      r.Cycle,
		Timestamp:  r.Timestamp.UTC().Format(time.RFC3339Nano),
		PoseX:      r.Pose.X,
		PoseY:      r.Pose.Y,
		PoseTheta:  r.Pose.Theta,
		Dynamic:    r.Dynamic,
		Clusters:   len(r.Clusters),
		Dropped:    r.Dropped,
		Defined:    defined,
		MinSafety:  minVal,
		MinBearing: minIdx,
		Corrected:  r.Corrected,
	}
}

// CycleRecorder appends one CSV row per processed cycle
type CycleRecorder struct {
	dir           string
	file          *os.File
	headerWritten bool
}

// NewCycleRecorder creates dir and opens cycles.csv inside it.
// Returns nil if dir is empty (recording disabled).
func NewCycleRecorder(dir string) (*CycleRecorder, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating recorder directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, CycleRecordFile))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", CycleRecordFile, err)
	}
	return &CycleRecorder{dir: dir, file: f}, nil
}

// Record writes r as the next row. A nil recorder does nothing.
func (cr *CycleRecorder) Record(r *CycleResult) error {
	if cr == nil {
		return nil
	}
	records := []CycleRecord{NewCycleRecord(r)}

	if !cr.headerWritten {
		if err := gocsv.Marshal(records, cr.file); err != nil {
			return fmt.Errorf("writing cycle record: %w", err)
		}
		cr.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, cr.file); err != nil {
		return fmt.Errorf("writing cycle record: %w", err)
	}
	return nil
}

// Path returns the CSV file path
func (cr *CycleRecorder) Path() string {
	if cr == nil {
		return ""
	}
	return filepath.Join(cr.dir, CycleRecordFile)
}

// Close flushes and closes the CSV file
func (cr *CycleRecorder) Close() error {
	if cr == nil {
		return nil
	}
	if err := cr.file.Sync(); err != nil {
		cr.file.Close()
		return fmt.Errorf("syncing %s: %w", CycleRecordFile, err)
	}
	return cr.file.Close()
}

// ReadCycleRecords loads a cycles.csv written by CycleRecorder
func ReadCycleRecords(path string) ([]CycleRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cycle records: %w", err)
	}
	defer f.Close()

	var records []CycleRecord
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, fmt.Errorf("parsing cycle records: %w", err)
	}
	return records, nil
}
