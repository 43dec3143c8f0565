package utils

// Ptr returns a pointer to v. Optional generation parameters are modelled as
// pointers, so this keeps literals inline:
//
//	cfg := ai.GenerationConfig{Temperature: utils.Ptr(0.2)}
func Ptr[T any](v T) *T {
	return &v
}

// Deref returns the value p points to, or fallback when p is nil.
func Deref[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}

// FirstNonEmpty returns the first argument that is not the empty string.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
