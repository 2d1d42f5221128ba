package eval

// Cursor is one open iteration over a relational input. Next loads the
// next row into the State the cursor was opened with and reports whether
// there was one.
type Cursor interface {
	Next() (bool, error)
	Close() error
}

// Rows is a compiled relational operator. Open may be called any number of
// times, including concurrently with different States.
type Rows interface {
	Open(st *State) (Cursor, error)
}
