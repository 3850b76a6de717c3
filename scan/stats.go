package scan

import "sync/atomic"

// Stats counts what happened to the rows of one or more scans.
type Stats struct {
	Read       atomic.Int64
	Emitted    atomic.Int64
	Filtered   atomic.Int64
	Projected  atomic.Int64
	Subsampled atomic.Int64
	Unknown    atomic.Int64
	Skipped    atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Read       int64 `json:"read"`
	Emitted    int64 `json:"emitted"`
	Filtered   int64 `json:"filtered"`
	Projected  int64 `json:"projected"`
	Subsampled int64 `json:"subsampled"`
	Unknown    int64 `json:"unknown"`
	Skipped    int64 `json:"skipped"`
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Read:       s.Read.Load(),
		Emitted:    s.Emitted.Load(),
		Filtered:   s.Filtered.Load(),
		Projected:  s.Projected.Load(),
		Subsampled: s.Subsampled.Load(),
		Unknown:    s.Unknown.Load(),
		Skipped:    s.Skipped.Load(),
	}
}
