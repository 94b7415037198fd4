package maybe

import "encoding/json"

type Maybe[T any] struct {
	value T
	valid bool
}

func Some[T any](value T) Maybe[T] {
	return Maybe[T]{
		value: value,
		valid: true,
	}
}

func None[T any]() Maybe[T] {
	return Maybe[T]{
		valid: false,
	}
}

func (m Maybe[T]) IsValid() bool {
	return m.valid
}

func (m Maybe[T]) Value() T {
	return m.value
}

func (m Maybe[T]) ValueOrDefault(defaultValue T) T {
	if m.valid {
		return m.value
	}
	return defaultValue
}

// Ptr returns a pointer to the value, or nil when absent. Handy for
// JSON payloads where absent must serialize as null.
func (m Maybe[T]) Ptr() *T {
	if !m.valid {
		return nil
	}
	v := m.value
	return &v
}

func (m Maybe[T]) MarshalJSON() ([]byte, error) {
	if !m.valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

// Map applies fn to the value when present.
func Map[T any, U any](m Maybe[T], fn func(T) U) Maybe[U] {
	if !m.valid {
		return None[U]()
	}
	return Some(fn(m.value))
}
