package midimsg

// DeltaClock turns a driver's running millisecond stamps into per-message
// deltas in seconds. The first stamp yields 0, and so does a stamp older
// than its predecessor.
type DeltaClock struct {
	started bool
	last    int64
}

// Next returns the seconds elapsed since the previous stamp.
func (c *DeltaClock) Next(ms int64) float64 {
	if !c.started {
		c.started = true
		c.last = ms
		return 0
	}
	d := ms - c.last
	c.last = ms
	if d < 0 {
		return 0
	}
	return float64(d) / 1000
}
