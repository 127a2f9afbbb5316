package runner

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// ThinkTime is the pause between a VU's iterations. A zero Max means a fixed
// pause of Min; otherwise the pause is drawn uniformly from [Min, Max].
type ThinkTime struct {
	Min time.Duration
	Max time.Duration
}

func (t ThinkTime) validate() error {
	if t.Min < 0 || t.Max < 0 {
		return fmt.Errorf("think time must be non-negative")
	}
	if t.Max > 0 && t.Max < t.Min {
		return fmt.Errorf("think time max %s is below min %s", t.Max, t.Min)
	}
	return nil
}

// IsZero reports whether VUs iterate back to back.
func (t ThinkTime) IsZero() bool {
	return t.Min == 0 && t.Max == 0
}

// pacer draws think times for one VU. It is not safe for concurrent use;
// every VU owns its own.
type pacer struct {
	think ThinkTime
	rng   *rand.Rand
}

func newPacer(think ThinkTime, seed, vu uint64) *pacer {
	return &pacer{think: think, rng: rand.New(rand.NewPCG(seed, vu))}
}

func (p *pacer) next() time.Duration {
	if p.think.Max <= p.think.Min {
		return p.think.Min
	}
	span := int64(p.think.Max - p.think.Min)
	return p.think.Min + time.Duration(p.rng.Int64N(span+1))
}

// sleep pauses for the next think time. It returns false if stop or ctx
// fired first.
func (p *pacer) sleep(ctx context.Context, stop <-chan struct{}) bool {
	d := p.next()
	if d <= 0 {
		select {
		case <-stop:
			return false
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stop:
		return false
	case <-ctx.Done():
		return false
	}
}
