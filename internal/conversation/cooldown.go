package conversation

import "time"

// Cooldown is the handle for a pending re-enable after a hard rate limit.
// Only the most recently armed handle can expire; arming again replaces
// whatever was pending.
type Cooldown struct {
	Token    uint64
	Duration time.Duration
	Deadline time.Time
}

// Remaining reports how long until the cooldown ends, never negative.
func (c Cooldown) Remaining(now time.Time) time.Duration {
	if d := c.Deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}
