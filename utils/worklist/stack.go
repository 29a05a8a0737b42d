package worklist

// Stack is a last-in first-out worklist. Exploring with a stack yields a
// depth-first traversal order.
type Stack[T any] struct {
	list []T
}

func EmptyStack[T any]() Stack[T] {
	return Stack[T]{}
}

// GetNext pops the most recently added element. The zero value is returned
// if the stack is empty.
func (s *Stack[T]) GetNext() (ret T) {
	n := len(s.list)
	if n == 0 {
		return
	}
	ret = s.list[n-1]
	var zero T
	s.list[n-1] = zero
	s.list = s.list[:n-1]
	return
}

func (s *Stack[T]) IsEmpty() bool {
	return len(s.list) == 0
}

func (s *Stack[T]) Len() int {
	return len(s.list)
}

func (s *Stack[T]) Add(el T) {
	s.list = append(s.list, el)
}

// Process pops elements until the stack is empty.
func (s *Stack[T]) Process(do func(next T, add func(el T))) {
	for !s.IsEmpty() {
		do(s.GetNext(), s.Add)
	}
}
