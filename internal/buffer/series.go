package buffer

import "time"

// Timed is implemented by samples that carry their capture time
type Timed interface {
	Timestamp() time.Time
}

// Series is a ring of timestamped samples that can be pruned by age
type Series[T Timed] struct {
	*Ring[T]
	now func() time.Time
}

// NewSeries creates a Series of the given capacity using the wall clock
func NewSeries[T Timed](capacity int) *Series[T] {
	return NewSeriesWithClock[T](capacity, time.Now)
}

// NewSeriesWithClock creates a Series whose RemoveOlderThan is measured against now()
func NewSeriesWithClock[T Timed](capacity int, now func() time.Time) *Series[T] {
	if now == nil {
		now = time.Now
	}
	return &Series[T]{Ring: NewRing[T](capacity), now: now}
}

// RemoveBefore drops samples captured strictly before t and returns the count removed
func (s *Series[T]) RemoveBefore(t time.Time) int {
	return s.RemoveFunc(func(v T) bool {
		return v.Timestamp().Before(t)
	})
}

// RemoveOlderThan drops samples older than age relative to the series clock
func (s *Series[T]) RemoveOlderThan(age time.Duration) int {
	return s.RemoveBefore(s.now().Add(-age))
}

// Between returns the samples with from <= timestamp <= to, in arrival order
func (s *Series[T]) Between(from, to time.Time) []T {
	var out []T
	for _, v := range s.All() {
		ts := v.Timestamp()
		if !ts.Before(from) && !ts.After(to) {
			out = append(out, v)
		}
	}
	return out
}
