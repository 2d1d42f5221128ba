package plan

// Statement is the root of a plan.
//
// This is a sealed interface - only types in this package implement it.
type Statement interface {
	statementNode() // Marker method - seals interface to this package
}

// Query evaluates Root and returns its value.
type Query struct {
	Root Rex
}

// Insert evaluates Source, which must be a collection, and inserts its
// elements into the global Target.
type Insert struct {
	Target Rex
	Source Rex
}

// Delete removes the elements of the global Target for which Where is
// true. Each element is bound to As while Where is evaluated. A nil Where
// deletes every element.
type Delete struct {
	Target Rex
	As     string
	AsSlot int
	Where  Rex
}

func (*Query) statementNode()  {}
func (*Insert) statementNode() {}
func (*Delete) statementNode() {}
