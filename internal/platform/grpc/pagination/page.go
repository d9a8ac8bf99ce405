// Package pagination normalizes list sizes requested over gRPC.
package pagination

// LimitConfig bounds how many items a list call may return.
type LimitConfig struct {
	Default int
	Max     int
}

// ClampLimit applies cfg to a requested limit: non-positive values fall back
// to the default and large values are capped at Max. The result is at least 1.
func ClampLimit(value int, cfg LimitConfig) int {
	limit := value
	if limit <= 0 {
		limit = cfg.Default
	}
	if cfg.Max > 0 && limit > cfg.Max {
		limit = cfg.Max
	}
	if limit <= 0 {
		limit = 1
	}
	return limit
}
