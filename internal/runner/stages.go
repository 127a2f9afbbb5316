package runner

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Stage ramps the target VU count to Target over Duration.
type Stage struct {
	Duration time.Duration
	Target   int
}

// Schedule maps elapsed run time to a target VU count. It is immutable and
// safe for concurrent use.
type Schedule struct {
	segments []segment
	duration time.Duration
	maxVUs   int
}

type segment struct {
	start    time.Duration
	duration time.Duration
	from     int
	to       int
}

// NewSchedule compiles stages into a Schedule.
func NewSchedule(stages []Stage) (*Schedule, error) {
	if len(stages) == 0 {
		return nil, errors.New("at least one stage is required")
	}
	s := &Schedule{}
	var (
		offset time.Duration
		prev   int
	)
	for i, st := range stages {
		if st.Duration < 0 {
			return nil, fmt.Errorf("stage %d: duration must be non-negative", i)
		}
		if st.Target < 0 {
			return nil, fmt.Errorf("stage %d: target must be non-negative", i)
		}
		s.segments = append(s.segments, segment{
			start:    offset,
			duration: st.Duration,
			from:     prev,
			to:       st.Target,
		})
		s.maxVUs = max(s.maxVUs, st.Target)
		offset += st.Duration
		prev = st.Target
	}
	if offset <= 0 {
		return nil, errors.New("total stage duration must be positive")
	}
	s.duration = offset
	return s, nil
}

// Target returns the number of VUs that should be active at elapsed. ok is
// false once the schedule is over, in which case the target is 0.
func (s *Schedule) Target(elapsed time.Duration) (target int, ok bool) {
	if s == nil || elapsed >= s.duration {
		return 0, false
	}
	if elapsed < 0 {
		elapsed = 0
	}
	for _, seg := range s.segments {
		// Zero-length segments only move the baseline, which the next
		// segment already carries in from.
		if seg.duration == 0 || elapsed >= seg.start+seg.duration {
			continue
		}
		return seg.at(elapsed - seg.start), true
	}
	return 0, false
}

func (seg segment) at(offset time.Duration) int {
	if seg.from == seg.to {
		return seg.to
	}
	progress := float64(offset) / float64(seg.duration)
	v := int(math.Round(float64(seg.from) + float64(seg.to-seg.from)*progress))
	return min(max(v, 0), max(seg.from, seg.to))
}

// TotalDuration is the sum of all stage durations.
func (s *Schedule) TotalDuration() time.Duration {
	if s == nil {
		return 0
	}
	return s.duration
}

// MaxTarget is the highest target of any stage.
func (s *Schedule) MaxTarget() int {
	if s == nil {
		return 0
	}
	return s.maxVUs
}
