// Package envelope defines the uniform JSON wrapper of every API response.
package envelope

// Envelope is {"success":true,"data":...} on success and
// {"success":false,"error":"..."} on failure.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK wraps a successful result. Data is always present, even for zero values.
func OK[T any](data T) Envelope[T] {
	return Envelope[T]{Success: true, Data: &data}
}

// Fail wraps an error message without data.
func Fail(message string) Envelope[struct{}] {
	return Envelope[struct{}]{Error: message}
}

// From wraps data or, when err is non-nil, its message.
func From[T any](data T, err error) Envelope[T] {
	if err != nil {
		return Envelope[T]{Error: err.Error()}
	}
	return OK(data)
}
