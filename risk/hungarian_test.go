package risk

import (
	"testing"
)

func TestHungarianAssign(t *testing.T) {
	tests := []struct {
		name string
		cost [][]float64
		want []int
	}{
		{
			name: "empty",
			cost: nil,
			want: nil,
		},
		{
			name: "single",
			cost: [][]float64{{3}},
			want: []int{0},
		},
		{
			name: "square",
			cost: [][]float64{
				{4, 1, 3},
				{2, 0, 5},
				{3, 2, 2},
			},
			want: []int{1, 0, 2},
		},
		{
			name: "greedy would be wrong",
			cost: [][]float64{
				{1, 2},
				{1, 10},
			},
			want: []int{1, 0},
		},
		{
			name: "more columns than rows",
			cost: [][]float64{
				{9, 1, 9},
				{9, 9, 2},
			},
			want: []int{1, 2},
		},
		{
			name: "more rows than columns",
			cost: [][]float64{
				{5},
				{1},
				{3},
			},
			want: []int{-1, 0, -1},
		},
		{
			name: "forbidden entry",
			cost: [][]float64{
				{forbiddenCost},
				{1},
			},
			want: []int{-1, 0},
		},
		{
			name: "only forbidden",
			cost: [][]float64{{forbiddenCost}},
			want: []int{-1},
		},
		{
			name: "no columns",
			cost: [][]float64{{}, {}},
			want: []int{-1, -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HungarianAssign(tt.cost)
			if len(got) != len(tt.want) {
				t.Fatalf("HungarianAssign() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("HungarianAssign() = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}
