package graph

import "testing"

var edges = map[int][]int{
	0:  {1, 8},
	1:  {4, 5, 2},
	2:  {6, 3, 9},
	3:  {2, 7},
	4:  {0, 5},
	5:  {6},
	6:  {5},
	7:  {3, 6},
	8:  {},
	9:  {10, 11},
	10: {12, 13},
	11: {12, 13},
	12: {},
	13: {},
}
var _sampleGraph = OfHashable(func(i int) []int {
	return edges[i]
})

func TestReachable(t *testing.T) {
	tests := []struct {
		start, expected int
	}{
		{0, 14},
		{9, 5},
		{5, 2},
		{8, 1},
	}

	for _, test := range tests {
		if got := len(_sampleGraph.Reachable(test.start)); got != test.expected {
			t.Errorf("%d reaches %d nodes, expected %d", test.start, got, test.expected)
		}
	}
}

func TestCanReach(t *testing.T) {
	eq := func(a, b int) bool { return a == b }
	tests := []struct {
		src, dst int
		expected bool
	}{
		{0, 13, true},
		{5, 0, false},
		{3, 2, true},
		{12, 13, false},
	}

	for _, test := range tests {
		if got := _sampleGraph.CanReach(test.src, test.dst, eq); got != test.expected {
			t.Errorf("CanReach(%d, %d) = %v, expected %v", test.src, test.dst, got, test.expected)
		}
	}
}
