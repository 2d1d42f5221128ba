package fn

// Match is the outcome of overload resolution.
//
// This is a sealed interface - only *Static and *Dynamic implement it.
type Match interface {
	match() // Marker method - seals interface to this package
}

// Static is a call resolved at compile time.
type Static struct {
	Fn *Function

	// Coercions has one entry per argument. A nil entry means the
	// argument is passed as is.
	Coercions []*Coercion
}

// Dynamic is a call whose routine depends on runtime argument kinds.
// Candidates share one arity and are kept in registration order.
type Dynamic struct {
	Candidates []*Function
}

func (*Static) match()  {}
func (*Dynamic) match() {}

// CoercionCount returns the number of coerced positions.
func (s *Static) CoercionCount() int {
	n := 0
	for _, c := range s.Coercions {
		if c != nil {
			n++
		}
	}
	return n
}
