package worklist

import "testing"

func TestWorklistOrder(t *testing.T) {
	var order []int
	StartV([]int{1, 2}, func(next int, add func(int)) {
		order = append(order, next)
		if next < 3 {
			add(next + 2)
		}
	})

	expected := []int{1, 2, 3, 4}
	if len(order) != len(expected) {
		t.Fatalf("Visited %v, expected %v", order, expected)
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Errorf("Visited %v, expected %v", order, expected)
		}
	}
}

func TestStackOrder(t *testing.T) {
	S := EmptyStack[int]()
	S.Add(1)
	S.Add(2)
	S.Add(3)

	tests := []int{3, 2, 1}
	for _, expected := range tests {
		if got := S.GetNext(); got != expected {
			t.Errorf("Popped %d, expected %d", got, expected)
		}
	}

	if !S.IsEmpty() {
		t.Error("Stack should be empty")
	}
	if got := S.GetNext(); got != 0 {
		t.Errorf("Popping an empty stack returned %d", got)
	}
}
