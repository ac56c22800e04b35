package risk

import (
	"math"
	"testing"
)

func TestNormalizeHeading(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"quarter", math.Pi / 2, math.Pi / 2},
		{"negative quarter", -math.Pi / 2, 3 * math.Pi / 2},
		{"full turn", 2 * math.Pi, 0},
		{"over one turn", 5 * math.Pi / 2, math.Pi / 2},
		{"two turns negative", -4*math.Pi - math.Pi/4, 7 * math.Pi / 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeHeading(tt.in)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("NormalizeHeading(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if got < 0 || got >= 2*math.Pi {
				t.Errorf("NormalizeHeading(%v) = %v, outside [0, 2π)", tt.in, got)
			}
		})
	}
}

func TestRotatePoint(t *testing.T) {
	got := RotatePoint(Point{X: 1, Y: 0}, math.Pi/2)
	if math.Abs(got.X) > 1e-12 || math.Abs(got.Y-1) > 1e-12 {
		t.Errorf("RotatePoint((1,0), π/2) = %v, want (0,1)", got)
	}

	got = RotatePoint(Point{X: 2, Y: 3}, 0)
	if got.X != 2 || got.Y != 3 {
		t.Errorf("RotatePoint by 0 = %v, want (2,3)", got)
	}
}

func TestDistance(t *testing.T) {
	if d := Distance(Point{X: 0, Y: 0}, Point{X: 3, Y: 4}); math.Abs(d-5) > 1e-12 {
		t.Errorf("Distance = %v, want 5", d)
	}
}

func TestWorldPoint(t *testing.T) {
	scan := &ScanFrame{
		AngleMin:       0,
		AngleIncrement: math.Pi / 2,
		RangeMax:       10,
		Ranges:         []float64{1, 2, 3, 4},
	}

	tests := []struct {
		name string
		i    int
		pose Pose
		want Point
	}{
		{"forward at origin", 0, Pose{}, Point{X: 1, Y: 0}},
		{"left at origin", 1, Pose{}, Point{X: 0, Y: 2}},
		{"forward with heading", 0, Pose{Theta: math.Pi / 2}, Point{X: 0, Y: 1}},
		{"offset pose", 2, Pose{X: 5, Y: -1}, Point{X: 2, Y: -1}},
		{"negative heading", 0, Pose{X: 1, Y: 1, Theta: -math.Pi / 2}, Point{X: 1, Y: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WorldPoint(scan, tt.i, tt.pose)
			if Distance(got, tt.want) > 1e-9 {
				t.Errorf("WorldPoint(%d, %+v) = %v, want %v", tt.i, tt.pose, got, tt.want)
			}
		})
	}
}

func TestScanFrame_InRange(t *testing.T) {
	scan := &ScanFrame{
		RangeMin: 0.1,
		RangeMax: 5,
		Ranges:   []float64{0.05, 0.1, 4.99, 5, math.Inf(1), math.NaN()},
	}
	want := []bool{false, true, true, false, false, false}
	for i, w := range want {
		if got := scan.InRange(i); got != w {
			t.Errorf("InRange(%d) with range %v = %v, want %v", i, scan.Ranges[i], got, w)
		}
	}
}
