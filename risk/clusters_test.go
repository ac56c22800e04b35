package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outOfRange is a reading past every test scan's RangeMax
const outOfRange = 20.0

// fullScan returns an n-bearing 360° scan with every reading out of range
// except those given in dyn.
func fullScan(n int, dyn map[int]float64) *ScanFrame {
	scan := &ScanFrame{
		AngleMin:       0,
		AngleIncrement: 2 * math.Pi / float64(n),
		RangeMin:       0.05,
		RangeMax:       10,
		Ranges:         make([]float64, n),
	}
	for i := range scan.Ranges {
		scan.Ranges[i] = outOfRange
	}
	for i, r := range dyn {
		scan.Ranges[i] = r
	}
	return scan
}

func TestExtract_EmptyStaticMapMakesEveryReturnDynamic(t *testing.T) {
	g := testGrid(6, 6, 0.5, GridOrigin{})
	g.Data[3] = CellUnknown
	idx, err := NewStaticIndex(g, CellOccupied)
	require.NoError(t, err)
	require.Equal(t, 0, idx.Len())

	scan := fullScan(8, map[int]float64{0: 1, 1: 2, 3: 3, 4: 10, 6: 0.01})
	ex := NewClusterExtractor(idx, DefaultStaticMatchRadius).Extract(scan, Pose{X: 1, Y: 1})

	// 4 is at RangeMax and 6 below RangeMin
	assert.Equal(t, []int{0, 1, 3}, ex.DynamicIndices)
	assert.False(t, ex.NoObstacles())
}

func TestExtract_StaticMapExplainsReturns(t *testing.T) {
	// 7×7 grid, 0.5 m cells, origin at (-1.5,-1.5): the cells one meter
	// from the center along each axis are walls.
	g := testGrid(7, 7, 0.5, GridOrigin{X: -1.5, Y: -1.5},
		[2]int{5, 3}, [2]int{3, 5}, [2]int{1, 3}, [2]int{3, 1})
	idx, err := NewStaticIndex(g, CellOccupied)
	require.NoError(t, err)
	require.Equal(t, 4, idx.Len())

	scan := fullScan(4, map[int]float64{0: 1, 1: 1, 2: 1, 3: 1})
	ex := NewClusterExtractor(idx, DefaultStaticMatchRadius).Extract(scan, Pose{})
	assert.True(t, ex.NoObstacles())
	assert.Empty(t, ex.Clusters)

	// The same walls seen after a quarter turn in place are still explained
	ex = NewClusterExtractor(idx, DefaultStaticMatchRadius).Extract(scan, Pose{Theta: math.Pi / 2})
	assert.True(t, ex.NoObstacles())

	// Moving the robot half a meter makes every return unexplained
	ex = NewClusterExtractor(idx, DefaultStaticMatchRadius).Extract(scan, Pose{X: 0.5})
	assert.Equal(t, []int{0, 1, 2, 3}, ex.DynamicIndices)
}

func TestExtract_SingleInteriorRun(t *testing.T) {
	scan := fullScan(12, map[int]float64{1: 2, 2: 1.5, 3: 2.5})
	ex := NewClusterExtractor(nil, 0).Extract(scan, Pose{})

	require.Len(t, ex.Clusters, 1)
	c := ex.Clusters[0]
	assert.Equal(t, 1, c.Start)
	assert.Equal(t, 2, c.Min)
	assert.Equal(t, 3, c.End)
	assert.False(t, c.Wraps())
	assert.LessOrEqual(t, c.Start, c.Min)
	assert.LessOrEqual(t, c.Min, c.End)
	assert.Equal(t, 0, ex.Dropped)
	assert.True(t, isFinite(c.Center))
}

func TestExtract_SplitsRuns(t *testing.T) {
	scan := fullScan(12, map[int]float64{
		1: 2, 2: 1.5, 3: 2.5,
		6: 3, 7: 2, 8: 2.6,
	})
	ex := NewClusterExtractor(nil, 0).Extract(scan, Pose{})

	require.Len(t, ex.Clusters, 2)
	assert.Equal(t, DynamicCluster{Start: 1, Min: 2, End: 3}, withoutCenter(ex.Clusters[0]))
	assert.Equal(t, DynamicCluster{Start: 6, Min: 7, End: 8}, withoutCenter(ex.Clusters[1]))
}

func TestExtract_MinTieKeepsEarliestIndex(t *testing.T) {
	runs := splitRuns(fullScan(10, map[int]float64{4: 1, 5: 1, 6: 2}), []int{4, 5, 6})
	require.Len(t, runs, 1)
	assert.Equal(t, 4, runs[0].Min)
}

func TestExtract_SeamMerge(t *testing.T) {
	// Dynamic indices {0,1,2, N-3,N-2,N-1} are one object across the seam
	scan := fullScan(12, map[int]float64{
		0: 1.5, 1: 2, 2: 2.5,
		9: 2.2, 10: 1.8, 11: 2,
	})
	ex := NewClusterExtractor(nil, 0).Extract(scan, Pose{})

	require.Len(t, ex.Clusters, 1)
	c := ex.Clusters[0]
	assert.Equal(t, 9, c.Start)
	assert.Equal(t, 2, c.End)
	assert.Equal(t, 0, c.Min, "min keeps the smaller of the two runs' minima")
	assert.True(t, c.Wraps())
}

func TestExtract_SeamMergeKeepsLastRunMinimum(t *testing.T) {
	scan := fullScan(12, map[int]float64{
		0: 2.1, 1: 2, 2: 2.5,
		9: 2.2, 10: 1.2, 11: 2,
	})
	ex := NewClusterExtractor(nil, 0).Extract(scan, Pose{})

	require.Len(t, ex.Clusters, 1)
	assert.Equal(t, 10, ex.Clusters[0].Min)
}

func TestExtract_SingleRunCoveringAllBearingsIsNotMerged(t *testing.T) {
	dyn := make(map[int]float64)
	for i := 0; i < 8; i++ {
		dyn[i] = 1 + 0.1*float64(i)
	}
	runs := splitRuns(fullScan(8, dyn), []int{0, 1, 2, 3, 4, 5, 6, 7})
	merged := mergeSeam(fullScan(8, dyn), []int{0, 1, 2, 3, 4, 5, 6, 7}, runs)
	require.Len(t, merged, 1)
	assert.Equal(t, 0, merged[0].Start)
	assert.Equal(t, 7, merged[0].End)
}

func TestExtract_CollinearClusterIsDropped(t *testing.T) {
	// Returns from a straight wall at distance 1 whose normal points at 42°:
	// r(θ) = 1/cos(θ-φ). All samples are collinear.
	n := 36
	phi := 42 * math.Pi / 180
	dyn := make(map[int]float64)
	for i := 2; i <= 6; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		dyn[i] = 1 / math.Cos(theta-phi)
	}
	scan := fullScan(n, dyn)

	ex := NewClusterExtractor(nil, 0).Extract(scan, Pose{})
	assert.Equal(t, []int{2, 3, 4, 5, 6}, ex.DynamicIndices)
	assert.Empty(t, ex.Clusters)
	assert.Equal(t, 1, ex.Dropped)
}

func TestExtract_TwoSampleClusterIsDropped(t *testing.T) {
	// With only two samples the minimum coincides with an edge sample
	scan := fullScan(12, map[int]float64{4: 2, 5: 3})
	ex := NewClusterExtractor(nil, 0).Extract(scan, Pose{})
	assert.Empty(t, ex.Clusters)
	assert.Equal(t, 1, ex.Dropped)
}

func TestSolveCenter_WorldFrame(t *testing.T) {
	scan := fullScan(12, map[int]float64{1: 2, 2: 1.5, 3: 2.5})
	cl := DynamicCluster{Start: 1, Min: 2, End: 3}

	// The solve places the center halfway between the start and min samples
	a := SensorPoint(scan, 1)
	c := SensorPoint(scan, 2)
	local := Point{X: (a.X + c.X) / 2, Y: (a.Y + c.Y) / 2}

	tests := []struct {
		name string
		pose Pose
	}{
		{"origin", Pose{}},
		{"translated", Pose{X: 3, Y: -2}},
		{"rotated", Pose{X: 1, Y: 2, Theta: math.Pi / 2}},
		{"rotated negative", Pose{X: -1, Y: 0.5, Theta: -2.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := solveCenter(scan, cl, tt.pose)
			require.True(t, ok)
			r := RotatePoint(local, tt.pose.Theta)
			want := Point{X: tt.pose.X + r.X, Y: tt.pose.Y + r.Y}
			assert.InDelta(t, want.X, got.X, 1e-9)
			assert.InDelta(t, want.Y, got.Y, 1e-9)
		})
	}
}

func withoutCenter(c DynamicCluster) DynamicCluster {
	c.Center = Point{}
	return c
}
