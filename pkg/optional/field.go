// Package optional provides a JSON field that distinguishes an absent key from
// an explicit null. Partial updates depend on the difference: absent leaves a
// value untouched, null clears it.
package optional

import (
	"bytes"
	"encoding/json"
)

// Field is absent, null, or holds a value.
type Field[T any] struct {
	set   bool
	null  bool
	value T
}

// Of returns a Field holding v.
func Of[T any](v T) Field[T] {
	return Field[T]{set: true, value: v}
}

// Null returns a present Field with an explicit null.
func Null[T any]() Field[T] {
	return Field[T]{set: true, null: true}
}

// Present reports whether the key appeared in the payload, null or not.
func (f Field[T]) Present() bool { return f.set }

// IsNull reports whether the key appeared with an explicit null.
func (f Field[T]) IsNull() bool { return f.set && f.null }

// HasValue reports whether the key appeared with a non-null value.
func (f Field[T]) HasValue() bool { return f.set && !f.null }

// Value returns the held value and whether one is present.
func (f Field[T]) Value() (T, bool) {
	return f.value, f.HasValue()
}

// ValueOr returns the held value or def.
func (f Field[T]) ValueOr(def T) T {
	if f.HasValue() {
		return f.value
	}
	return def
}

// Ptr returns a pointer to the value, nil for null or absent.
func (f Field[T]) Ptr() *T {
	if !f.HasValue() {
		return nil
	}
	v := f.value
	return &v
}

// UnmarshalJSON is only invoked when the key is present.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.null = true
		var zero T
		f.value = zero
		return nil
	}
	f.null = false
	return json.Unmarshal(data, &f.value)
}

// MarshalJSON writes null for absent or null fields. Use omitzero on the
// struct tag to drop absent keys.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.HasValue() {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// IsZero lets encoding/json omit absent fields tagged omitzero.
func (f Field[T]) IsZero() bool { return !f.set }
