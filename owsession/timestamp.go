// Package owsession defines the data model read from a completed OWAMP or
// TWAMP session file: the session header, the 64-bit fixed-point timestamp
// format, and the tagged record types produced by the session's send and
// receive streams.
package owsession

import "time"

// owpJan1970 is the number of seconds between the NTP epoch (1900-01-01) and
// the Unix epoch (1970-01-01), used to convert session timestamps to time.Time.
const owpJan1970 = 2208988800

// Timestamp is a 64-bit fixed-point timestamp: the high 32 bits are seconds
// since 1900-01-01 UTC, the low 32 bits are a binary fraction of a second.
// A zero Timestamp is the sentinel value carried by lost records.
type Timestamp uint64

// IsLost reports whether t is the sentinel value a session file writer uses
// in place of a receive timestamp for a packet it never observed.
func (t Timestamp) IsLost() bool {
	return t == 0
}

// Seconds returns t as a floating point number of seconds since 1900-01-01.
func (t Timestamp) Seconds() float64 {
	sec := uint32(t >> 32)
	frac := uint32(t)
	return float64(sec) + float64(frac)/4294967296.0
}

// Time converts t to a UTC time.Time.
func (t Timestamp) Time() time.Time {
	sec := int64(uint32(t>>32)) - owpJan1970
	frac := uint32(t)
	nsec := int64(float64(frac) / 4294967296.0 * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// NewTimestamp builds a fixed-point Timestamp from a time.Time.
func NewTimestamp(t time.Time) Timestamp {
	t = t.UTC()
	sec := uint64(t.Unix() + owpJan1970)
	frac := uint64(float64(t.Nanosecond()) / 1e9 * 4294967296.0)
	return Timestamp(sec<<32 | frac)
}

// Sub returns a-b in seconds, signed: a delay can be negative when the two
// endpoint clocks disagree.
func (t Timestamp) Sub(o Timestamp) float64 {
	return t.Seconds() - o.Seconds()
}

// Add returns t shifted by d seconds.
func (t Timestamp) Add(d float64) Timestamp {
	return NewTimestamp(t.Time().Add(time.Duration(d * float64(time.Second))))
}

// ErrorEstimate is the endpoint's estimate of its own clock error at the
// moment it stamped a packet. Sync reports whether the endpoint clock was
// synchronized (e.g. to NTP/PTP) when the sample was taken; Multiplier is an
// implementation-defined magnitude indicator. The full RFC 4656 error
// estimate bitfield (scale, truncation) is out of scope: this engine only
// ever sums and max-reduces error estimates, never decodes their internal
// structure, so a single magnitude byte suffices.
type ErrorEstimate struct {
	Sync       bool
	Multiplier uint8
}

// Value returns a nominal error magnitude in seconds, used by Stats
// Accumulator's maxerr tracking.
func (e ErrorEstimate) Value() float64 {
	return float64(e.Multiplier) * 1e-6
}

func (e ErrorEstimate) encode() byte {
	b := e.Multiplier & 0x7f
	if e.Sync {
		b |= 0x80
	}
	return b
}

func decodeErrorEstimate(b byte) ErrorEstimate {
	return ErrorEstimate{Sync: b&0x80 != 0, Multiplier: b & 0x7f}
}
