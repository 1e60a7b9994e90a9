package utils

func Ptr[T any](v T) *T { return &v }

// ValueOr dereferences p, falling back to fallback when p is nil.
func ValueOr[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
