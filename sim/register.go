package sim

// A Register holds a clocked value. Reads always return the value committed at
// the end of the previous cycle; writes are staged and only become visible
// after Commit. This is what lets every component compute its next state from
// one consistent snapshot.
type Register[T any] struct {
	cur    T
	next   T
	staged bool
}

// NewRegister creates a register holding the initial value.
func NewRegister[T any](initial T) *Register[T] {
	return &Register[T]{cur: initial}
}

// Get returns the committed value.
func (r *Register[T]) Get() T {
	return r.cur
}

// Set stages the value to be committed at the end of the cycle. Setting twice
// in the same cycle keeps the last value.
func (r *Register[T]) Set(v T) {
	r.next = v
	r.staged = true
}

// Next returns the staged value if there is one, or the committed value.
func (r *Register[T]) Next() T {
	if r.staged {
		return r.next
	}

	return r.cur
}

// IsStaged returns true if a value has been staged in this cycle.
func (r *Register[T]) IsStaged() bool {
	return r.staged
}

// Commit publishes the staged value.
func (r *Register[T]) Commit() {
	if !r.staged {
		return
	}

	r.cur = r.next
	r.staged = false

	var zero T
	r.next = zero
}

// A CommitGroup commits a set of state holders together.
type CommitGroup []Committer

// Commit commits every member of the group.
func (g CommitGroup) Commit() {
	for _, c := range g {
		c.Commit()
	}
}
