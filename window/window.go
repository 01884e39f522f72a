// Package window implements the sliding packet window of spec.md §4.1: a
// map from sequence number to PacketRecord, bounded by a pre-computed size
// and flushed according to a loss-timeout policy.
package window

import (
	"fmt"

	"github.com/m-lab/go/logx"

	"github.com/m-lab/owstats/metrics"
	"github.com/m-lab/owstats/owerrors"
	"github.com/m-lab/owstats/owsession"
	"github.com/m-lab/owstats/schedule"
)

// PacketRecord is one entry in the sliding packet window. Its invariants
// (seen_count monotonically non-decreasing, lost/seen mutual exclusion) are
// enforced entirely within this package; callers only ever see a
// already-valid *PacketRecord.
type PacketRecord struct {
	Seq               uint32
	ScheduledSendTime owsession.Timestamp
	SeenCount         uint32
	Lost              bool
}

// FlushAction reports what a flushed PacketRecord contributed, so a caller
// (the Stats Accumulator) can update its scalars without reaching back into
// window internals.
type FlushAction struct {
	Skipped bool
	Lost    bool
	Dups    uint32
	EndTime owsession.Timestamp
}

// Window is the sliding map seq->PacketRecord described in spec.md §4.1.
// It owns a growable arena of PacketRecord storage plus a free-index stack:
// the idiomatic replacement, per spec.md §9's re-architecture guidance, for
// the original C implementation's intrusive free list threaded through a
// struct field. The arena grows in blocks the same way the teacher
// repository's ackMatcher backing slice grows (append once capacity runs
// out), but indices rather than raw pointers are what the window and its
// callers hold, eliminating the double-free class of bug entirely.
//
// Because the window holds a contiguous range [pbegin, pend] by
// construction (spec.md §3's window invariant), advancing pbegin after a
// flush never needs an intrusive "next" pointer: pbegin+1 is either already
// present in the map, or is materialized from the schedule by Get, or lies
// at or past the limit, in which case the window becomes empty.
type Window struct {
	// arena holds one heap-allocated PacketRecord per slot; the slice of
	// pointers can grow via append without invalidating PacketRecord
	// pointers already handed out to callers (only appending to a slice of
	// *PacketRecord risks reallocating the pointer slice itself, never the
	// pointees).
	arena []*PacketRecord
	free  []int
	bySeq map[uint32]int

	hasEntries bool
	pbegin     uint32
	pend       uint32
	limit      uint32 // exclusive upper bound for the current parse range

	endnum owsession.Timestamp
	isctx  uint32
	sched  schedule.Generator
	twoWay bool

	blockSize int
}

// New constructs an empty Window. limit is the exclusive sequence number
// upper bound for the current parse range (spec.md's "last"); plistlen
// sizes the arena's growth blocks, per PlistLen below.
func New(sched schedule.Generator, limit uint32, plistlen int, twoWay bool) *Window {
	if plistlen < 10 {
		plistlen = 10
	}
	return &Window{
		bySeq:     make(map[uint32]int),
		limit:     limit,
		sched:     sched,
		twoWay:    twoWay,
		blockSize: plistlen,
	}
}

// PlistLen implements spec.md §4.1's packet-window sizing heuristic:
// plistlen = max(10, packet_rate * loss_timeout * 3.5), capped at 2^31-1.
// Two-way sessions use a fixed 10, since the reflector-side packet rate
// isn't known to this endpoint.
func PlistLen(packetRate, lossTimeout float64, twoWay bool) int {
	if twoWay {
		return 10
	}
	n := packetRate * lossTimeout * 3.5
	if n < 10 {
		n = 10
	}
	if n > (1<<31)-1 {
		n = (1 << 31) - 1
	}
	return int(n)
}

// Reset clears all entries back to the free list and rewinds the schedule
// cursor's bookkeeping, so a Window can be reused across successive parse()
// calls per spec.md's lifecycle section.
func (w *Window) Reset(limit uint32, startTime owsession.Timestamp, isctx uint32) {
	for seq, idx := range w.bySeq {
		w.free = append(w.free, idx)
		delete(w.bySeq, seq)
	}
	w.hasEntries = false
	w.limit = limit
	w.endnum = startTime
	w.isctx = isctx
}

func (w *Window) grow() {
	start := len(w.arena)
	for i := 0; i < w.blockSize; i++ {
		w.arena = append(w.arena, &PacketRecord{})
		w.free = append(w.free, start+i)
	}
	metrics.WindowExtensionCount.WithLabelValues("packet").Inc()
	if !w.twoWay {
		logx.Debug.Printf("window: extended packet arena to %d records", len(w.arena))
	}
}

// Allocate materializes a new PacketRecord for seq, failing if seq is
// outside the legal range or would reintroduce an already-retired sequence.
func (w *Window) Allocate(seq uint32) (*PacketRecord, error) {
	if seq > w.limit {
		return nil, fmt.Errorf("%w: seq %d > limit %d", owerrors.InvalidSeq, seq, w.limit)
	}
	if w.hasEntries && seq <= w.pend {
		return nil, fmt.Errorf("%w: seq %d <= pend %d", owerrors.InvalidSeq, seq, w.pend)
	}
	if len(w.free) == 0 {
		w.grow()
	}
	idx := w.free[len(w.free)-1]
	w.free = w.free[:len(w.free)-1]
	*w.arena[idx] = PacketRecord{Seq: seq}
	w.bySeq[seq] = idx
	if !w.hasEntries {
		w.pbegin = seq
		w.hasEntries = true
	}
	w.pend = seq
	return w.arena[idx], nil
}

// Get returns the PacketRecord for seq, materializing every intermediate
// record between the current pend and seq by pulling deltas from the
// Schedule cursor, per spec.md §4.1.
func (w *Window) Get(seq uint32) (*PacketRecord, error) {
	if w.hasEntries && seq == w.pend {
		return w.arena[w.bySeq[seq]], nil
	}
	// An empty window has already materialized (and retired) every seq up
	// to isctx.
	if !w.hasEntries && seq <= w.isctx {
		return nil, fmt.Errorf("%w: seq %d already flushed", owerrors.InvalidSeq, seq)
	}
	if seq >= w.limit || (w.hasEntries && seq < w.pbegin) {
		return nil, fmt.Errorf("%w: seq %d outside [%d,%d)", owerrors.InvalidSeq, seq, w.pbegin, w.limit)
	}
	if !w.hasEntries || seq > w.pend {
		for !w.hasEntries || w.pend < seq {
			w.endnum = w.endnum.Add(w.sched.NextDelta())
			w.isctx++
			if w.hasEntries && w.pend+1 != w.isctx {
				panic(fmt.Errorf("%w: pend+1 (%d) != isctx (%d)", owerrors.InternalInvariantViolation, w.pend+1, w.isctx))
			}
			next := w.isctx
			if _, err := w.Allocate(next); err != nil {
				return nil, err
			}
			w.arena[w.bySeq[next]].ScheduledSendTime = w.endnum
		}
		return w.arena[w.bySeq[seq]], nil
	}
	idx, ok := w.bySeq[seq]
	if !ok {
		return nil, fmt.Errorf("%w: seq %d already flushed", owerrors.InvalidSeq, seq)
	}
	return w.arena[idx], nil
}

// PeekBegin returns the current head-of-window entry without removing it.
func (w *Window) PeekBegin() (*PacketRecord, bool) {
	if !w.hasEntries {
		return nil, false
	}
	return w.arena[w.bySeq[w.pbegin]], true
}

// FlushBegin retires the head-of-window entry, classifying it against skips
// as lost/duplicate/neither, and advances pbegin to seq+1, materializing it
// via Get if it isn't already in the window (extending the schedule past
// the last record the caller ever saw, exactly as the final drain needs to).
// It returns false only when seq+1 has reached last (no successor exists).
func (w *Window) FlushBegin(skips []owsession.SkipRange, skipIdx *int) (FlushAction, bool) {
	if !w.hasEntries {
		return FlushAction{}, false
	}
	idx := w.bySeq[w.pbegin]
	node := w.arena[idx]
	seq := node.Seq

	for *skipIdx < len(skips) && seq > skips[*skipIdx].End {
		*skipIdx++
	}
	action := FlushAction{EndTime: node.ScheduledSendTime}
	switch {
	case *skipIdx < len(skips) && skips[*skipIdx].Contains(seq):
		action.Skipped = true
	case node.Lost:
		action.Lost = true
	case node.SeenCount > 1:
		action.Dups = node.SeenCount - 1
	}

	delete(w.bySeq, seq)
	w.free = append(w.free, idx)

	next := seq + 1
	if next >= w.limit {
		w.hasEntries = false
		return action, false
	}
	if _, err := w.Get(next); err != nil {
		w.hasEntries = false
		return action, false
	}
	w.pbegin = next
	return action, true
}

// HasEntries reports whether the window currently holds any live entries.
func (w *Window) HasEntries() bool { return w.hasEntries }

// Pbegin returns the sequence number of the current head of the window.
// Only valid when HasEntries is true.
func (w *Window) Pbegin() uint32 { return w.pbegin }

// Pend returns the sequence number of the current tail of the window.
// Only valid when HasEntries is true.
func (w *Window) Pend() uint32 { return w.pend }
