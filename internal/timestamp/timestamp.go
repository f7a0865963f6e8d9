package timestamp

import (
	"math"
	"time"
)

// PicosPerSecond is the number of picoseconds in one second.
const PicosPerSecond = 1_000_000_000_000

// Timestamp is a time value split into whole seconds and a picosecond
// fraction. Picoseconds is always in [0, PicosPerSecond).
type Timestamp struct {
	Seconds     int64
	Picoseconds int64
}

// Encode converts floating-point seconds to a Timestamp. Both parts are
// truncated, never rounded, so peers using the same rule agree bit for bit.
// Negative values borrow one second so the fraction stays non-negative.
func Encode(seconds float64) Timestamp {
	whole := math.Trunc(seconds)
	frac := seconds - whole
	if frac < 0 {
		whole--
		frac++
	}
	ps := int64(math.Trunc(frac * PicosPerSecond))
	if ps >= PicosPerSecond {
		ps = PicosPerSecond - 1
	}
	return Timestamp{Seconds: int64(whole), Picoseconds: ps}
}

// Decode converts t back to floating-point seconds.
func Decode(t Timestamp) float64 {
	return float64(t.Seconds) + float64(t.Picoseconds)*1e-12
}

// Float returns t as floating-point seconds.
func (t Timestamp) Float() float64 {
	return Decode(t)
}

// FromTime converts a wall-clock time at nanosecond resolution.
func FromTime(tm time.Time) Timestamp {
	return Timestamp{
		Seconds:     tm.Unix(),
		Picoseconds: int64(tm.Nanosecond()) * 1000,
	}
}

// Time converts t to a time.Time, dropping sub-nanosecond precision.
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Seconds, t.Picoseconds/1000).UTC()
}

// IsZero reports whether t is the zero timestamp.
func (t Timestamp) IsZero() bool {
	return t.Seconds == 0 && t.Picoseconds == 0
}

// Valid reports whether the picosecond fraction is in range.
func (t Timestamp) Valid() bool {
	return t.Picoseconds >= 0 && t.Picoseconds < PicosPerSecond
}
