package util

import "time"

// AlignDown returns the start of the width-sized bucket containing ts.
// Buckets are anchored at the Unix epoch; negative timestamps floor.
func AlignDown(ts, width int64) int64 {
	r := ts % width
	if r < 0 {
		r += width
	}
	return ts - r
}

// AlignUp returns ts when it sits on a bucket boundary, else the next boundary.
func AlignUp(ts, width int64) int64 {
	d := AlignDown(ts, width)
	if d == ts {
		return ts
	}
	return d + width
}

// UnixUTC converts epoch seconds to a UTC time, for logging bucket bounds.
func UnixUTC(ts int64) time.Time {
	return time.Unix(ts, 0).UTC()
}
