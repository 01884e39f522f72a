// Package accum implements the Stats Accumulator of spec.md §4.4: the scalar
// counters (sent/lost/dups, min/max delay, sync, maxerr, ttl distribution)
// that the Session Driver updates one record at a time.
package accum

import "github.com/m-lab/owstats/owsession"

// Accumulator holds the scalar statistics described in spec.md §4.4. Lost
// and Dups are incremented at flush time (via RecordFlush), mirroring how
// the Packet Window's flush_begin is the only place that observes a node's
// final lost/seen_count classification; everything else is incremented as
// each record streams past.
type Accumulator struct {
	Sent, Lost, Dups uint32

	MinDelay, MaxDelay         float64
	MinProcDelay, MaxProcDelay float64

	Sync   bool
	MaxErr float64

	TTLCount [256]uint64

	lossTimeout float64
}

// New constructs an Accumulator whose min/max delay scalars start at
// ±(loss_timeout+1), the "inf_delay" sentinel spec.md §4.4 specifies.
func New(lossTimeout float64) *Accumulator {
	a := &Accumulator{lossTimeout: lossTimeout}
	a.Reset()
	return a
}

// Reset returns all scalars to their initial values (counters and ttl
// distribution zeroed, min/max at ±inf_delay, Sync true), ready for a new
// parse() window.
func (a *Accumulator) Reset() {
	inf := a.lossTimeout + 1
	a.Sent, a.Lost, a.Dups = 0, 0, 0
	a.MinDelay, a.MinProcDelay = inf, inf
	a.MaxDelay, a.MaxProcDelay = -inf, -inf
	a.Sync = true
	a.MaxErr = 0
	for i := range a.TTLCount {
		a.TTLCount[i] = 0
	}
}

func (a *Accumulator) updateErr(sum float64) {
	if sum > a.MaxErr {
		a.MaxErr = sum
	}
}

// MarkLost records a loss marker, one-way or two-way. The caller is
// responsible for having already confirmed the window node had
// seen_count==0 and for setting node.lost=true before calling this. err is
// the only error estimate a lost record carries (its receive side has no
// timestamp to sample an error estimate from, by construction of the Lost
// record variants).
func (a *Accumulator) MarkLost(err owsession.ErrorEstimate) {
	a.Sent++
	if !err.Sync {
		a.Sync = false
	}
	a.updateErr(err.Value())
}

// OneWayReceived records a one-way received record. seenCountBefore is the
// window node's seen_count prior to this observation. Returns true if this
// was the first observation of this sequence number, in which case the
// caller should also increment the Bucket Histogram (the ttl distribution
// is already updated here; the delay sample itself belongs to the Histogram).
func (a *Accumulator) OneWayReceived(seenCountBefore uint32, d float64, sendErr, recvErr owsession.ErrorEstimate, ttl uint8) bool {
	if seenCountBefore == 0 {
		a.Sent++
	}
	if !sendErr.Sync || !recvErr.Sync {
		a.Sync = false
	}
	a.updateErr(sendErr.Value() + recvErr.Value())
	if d < a.MinDelay {
		a.MinDelay = d
	}
	if d > a.MaxDelay {
		a.MaxDelay = d
	}
	first := seenCountBefore == 0
	if first {
		a.TTLCount[ttl]++
	}
	return first
}

// TwoWayReceived records a two-way received record: d is the estimated
// network round-trip delay, procD is the reflector's dwell time
// (reflected.send - sent.recv), per spec.md §4.4.
func (a *Accumulator) TwoWayReceived(seenCountBefore uint32, d, procD float64, sentSendErr, reflRecvErr, sentRecvErr owsession.ErrorEstimate, ttl uint8) bool {
	if seenCountBefore == 0 {
		a.Sent++
	}
	if !sentSendErr.Sync || !reflRecvErr.Sync || !sentRecvErr.Sync {
		a.Sync = false
	}
	a.updateErr(sentSendErr.Value() + reflRecvErr.Value() + sentRecvErr.Value())
	if d < a.MinDelay {
		a.MinDelay = d
	}
	if d > a.MaxDelay {
		a.MaxDelay = d
	}
	if procD < a.MinProcDelay {
		a.MinProcDelay = procD
	}
	if procD > a.MaxProcDelay {
		a.MaxProcDelay = procD
	}
	first := seenCountBefore == 0
	if first {
		a.TTLCount[ttl]++
	}
	return first
}

// RecordFlush applies the classification the Packet Window's FlushBegin
// produced for one retired node: lost increments Lost, dups adds to Dups.
func (a *Accumulator) RecordFlush(lost bool, dups uint32) {
	if lost {
		a.Lost++
	}
	a.Dups += dups
}
