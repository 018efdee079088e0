package domain

// Optional marks whether a field of an Update was returned by a node.
// The zero value is "absent".
type Optional[T any] struct {
	value T
	set   bool
}

// Some wraps a value that is present.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// None returns an absent value.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether the value is present.
func (o Optional[T]) IsSet() bool {
	return o.set
}
