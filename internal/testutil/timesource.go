package testutil

import (
	"sync"
	"time"

	"github.com/roach88/bindery/internal/record"
)

// TimeSource provides a deterministic sequence of timestamps for
// record time fields.
//
// Unlike time.Now, a TimeSource can be reset for test reuse: the same
// test produces identical join dates on every run, which keeps sorted
// query results and golden traces stable.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex.
type TimeSource struct {
	mu      sync.Mutex
	start   int64
	step    int64
	current int64
}

// NewTimeSource creates a time source. The first call to Next returns
// start; each subsequent call advances by step.
func NewTimeSource(start time.Time, step time.Duration) *TimeSource {
	return &TimeSource{
		start:   start.Unix(),
		step:    int64(step / time.Second),
		current: start.Unix(),
	}
}

// Next returns the current timestamp as a record value and advances
// the source.
func (s *TimeSource) Next() record.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := record.Time(s.current)
	s.current += s.step
	return t
}

// Current returns the timestamp Next would return, without advancing.
func (s *TimeSource) Current() record.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return record.Time(s.current)
}

// Reset rewinds the source to its start. After Reset, Next returns
// the start timestamp again.
func (s *TimeSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = s.start
}
