// Package driver implements the Session Driver of spec.md §4.5: it owns the
// Packet Window, Bucket Histogram, Reorder Tracker, and Stats Accumulator,
// and drives a single forward pass over a session file's record stream,
// reconciling the scheduled send stream against the observed receive stream.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/m-lab/go/logx"

	"github.com/m-lab/owstats/accum"
	"github.com/m-lab/owstats/histogram"
	"github.com/m-lab/owstats/metrics"
	"github.com/m-lab/owstats/owerrors"
	"github.com/m-lab/owstats/owsession"
	"github.com/m-lab/owstats/reorder"
	"github.com/m-lab/owstats/schedule"
	"github.com/m-lab/owstats/sessionfile"
	"github.com/m-lab/owstats/window"
)

// AllPackets, passed as last to Parse, means "through npackets", mirroring
// the ~0 sentinel spec.md §6 documents for the last_seq argument.
const AllPackets = ^uint32(0)

// Summary is the frozen, immutable result of one Parse call, per spec.md
// §9's guidance to separate ingest from reporting: Reporters consume this
// value rather than reaching back into Driver/Accumulator mutable state.
type Summary struct {
	Header      owsession.SessionHeader
	FromLabel   string
	ToLabel     string
	First, Last uint32
	StartTime   owsession.Timestamp
	EndTime     owsession.Timestamp
	BucketWidth float64

	Sent, Lost, Dups           uint32
	MinDelay, MaxDelay         float64
	MinProcDelay, MaxProcDelay float64
	Sync                       bool
	MaxErr                     float64
	TTLCount                   [256]uint64
	ReorderCounts              []uint64
	ReorderTotal               uint64
	TwoWay                     bool

	hist *histogram.Histogram
}

// Percentile returns the α-percentile delay over the summary's distribution,
// per spec.md §4.2's sort_percentile. Requires 0<=alpha<=1.
func (s Summary) Percentile(alpha float64) float64 {
	return s.hist.Percentile(alpha, uint64(s.Sent))
}

// Buckets returns the sorted (index, count) pairs backing the summary's
// delay distribution, for the machine report's <BUCKETS> block.
func (s Summary) Buckets() []histogram.Bucket {
	return s.hist.Buckets()
}

// Driver is the Session Driver described in spec.md §4.5. It is not
// thread-safe: a caller wanting parallel summaries over distinct sub-ranges
// must construct independent Drivers sharing nothing but an immutable copy
// of the SessionHeader, per spec.md §5.
type Driver struct {
	reader    *sessionfile.Reader
	hdr       owsession.SessionHeader
	sched     schedule.Generator
	fromLabel string
	toLabel   string

	win   *window.Window
	hist  *histogram.Histogram
	trk   *reorder.Tracker
	stats *accum.Accumulator

	isctx     uint32
	first     uint32
	last      uint32
	startTime owsession.Timestamp
	endTime   owsession.Timestamp

	bucketWidth float64
}

// New constructs a Driver over a session file opened from f. sched is the
// owned Schedule generator for the session's SID and slot list; bucketWidth
// must be positive.
func New(ctx context.Context, f io.ReadSeeker, sched schedule.Generator, fromLabel, toLabel string, bucketWidth float64) (*Driver, error) {
	if bucketWidth <= 0 {
		return nil, fmt.Errorf("%w: bucket_width %v <= 0", owerrors.InvalidArgument, bucketWidth)
	}
	rd, err := sessionfile.Open(f)
	if err != nil {
		return nil, err
	}
	hdr := rd.Header()

	plistlen := window.PlistLen(packetRate(hdr.Spec), hdr.Spec.LossTimeout, hdr.Spec.TwoWay)
	d := &Driver{
		reader:      rd,
		hdr:         hdr,
		sched:       sched,
		fromLabel:   fromLabel,
		toLabel:     toLabel,
		win:         window.New(sched, hdr.Spec.NPackets, plistlen, hdr.Spec.TwoWay),
		hist:        histogram.New(bucketWidth, hdr.Spec.LossTimeout),
		trk:         reorder.New(plistlen),
		stats:       accum.New(hdr.Spec.LossTimeout),
		bucketWidth: bucketWidth,
	}
	return d, nil
}

// packetRate estimates the session's scheduled packet rate from its slot
// list, used only to size the Packet Window's arena growth blocks.
func packetRate(spec owsession.TestSpec) float64 {
	if len(spec.Slots) == 0 {
		return 1.0
	}
	var sum float64
	for _, s := range spec.Slots {
		sum += s.Mean
	}
	mean := sum / float64(len(spec.Slots))
	if mean <= 0 {
		return 1.0
	}
	return 1.0 / mean
}

// Close is a no-op: the Driver holds nothing that needs explicit release.
// The record file handle is borrowed and is never closed here.
func (d *Driver) Close() {}

// Header returns the session header this Driver was constructed from.
func (d *Driver) Header() owsession.SessionHeader {
	return d.hdr
}

func seqSkipped(seq uint32, ranges []owsession.SkipRange) bool {
	for _, r := range ranges {
		if r.Contains(seq) {
			return true
		}
		if r.Begin > seq {
			break
		}
	}
	return false
}

// Parse implements spec.md §4.5's parse(begin_oset, first, last) algorithm.
// last==AllPackets means through the session's npackets. It returns the next
// file offset a caller should resume from to parse a contiguous successor
// range, or an error, or ok=false if no next range exists (stream ended).
func (d *Driver) Parse(out io.Writer, beginOffset int64, first, last uint32) (ok bool, nextOffset int64, err error) {
	start := time.Now()
	defer func() {
		metrics.ParseDuration.Observe(time.Since(start).Seconds())
		err = metrics.PanicToErr(err, recover(), "driver.Parse")
		if err != nil {
			metrics.ParseErrorCount.WithLabelValues(classify(err)).Inc()
			metrics.SessionCount.WithLabelValues("error").Inc()
		} else {
			metrics.SessionCount.WithLabelValues("ok").Inc()
		}
	}()

	if last == AllPackets {
		last = d.hdr.Spec.NPackets
	}
	if first > last || last > d.hdr.Spec.NPackets {
		return false, 0, fmt.Errorf("%w: first=%d last=%d npackets=%d", owerrors.InvalidArgument, first, last, d.hdr.Spec.NPackets)
	}
	d.first, d.last = first, last

	if beginOffset < d.hdr.OsetDatarecs {
		beginOffset = d.hdr.OsetDatarecs
	}
	if err := d.reader.Seek(beginOffset); err != nil {
		return false, 0, err
	}

	// Step 4: schedule repositioning. The Window advances the shared
	// Schedule cursor on its own during a parse, so the cursor is always
	// rewound and replayed up to first.
	d.sched.Reset()
	d.endTime = d.hdr.Spec.StartTime
	d.isctx = 0
	for d.isctx < first {
		d.endTime = d.endTime.Add(d.sched.NextDelta())
		d.isctx++
	}
	d.startTime = d.endTime

	// Step 5: clear all accumulating state for this window.
	d.win.Reset(last, d.startTime, d.isctx)
	d.hist.Reset()
	d.trk.Reset()
	d.stats.Reset()

	// Step 6: allocate the initial window node for first.
	head, err := d.win.Allocate(first)
	if err != nil {
		return false, 0, err
	}
	head.ScheduledSendTime = d.startTime

	skipIdx := 0
	nextOffset = d.reader.Offset()
	foundNext := false

	for {
		offsetBefore := d.reader.Offset()
		rec, rerr := d.reader.Next()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return false, 0, rerr
		}
		metrics.RecordsProcessed.Inc()

		if rec.SeqNo() >= last {
			nextOffset = offsetBefore
			foundNext = true
			break
		}

		if err := d.processRecord(out, rec, &skipIdx); err != nil {
			return false, 0, err
		}
	}
	if !foundNext {
		nextOffset = d.reader.Offset()
	}

	// Step 8: drain the window.
	for {
		action, cont := d.win.FlushBegin(d.hdr.SkipRanges, &skipIdx)
		if !action.Skipped {
			d.stats.RecordFlush(action.Lost, action.Dups)
		}
		d.endTime = action.EndTime
		if !cont {
			break
		}
	}

	// Step 9: sort the histogram for percentile queries.
	d.hist.Sort()

	return foundNext, nextOffset, nil
}

// processRecord implements spec.md §4.5 step 7's per-record logic: flush
// window entries made obsolete by this record, materialize the record's own
// window entry, and (unless skipped) update the Stats Accumulator, Bucket
// Histogram, and Reorder Tracker.
func (d *Driver) processRecord(out io.Writer, rec owsession.Record, skipIdx *int) error {
	switch r := rec.(type) {
	case owsession.OneWayLost:
		d.flushBefore(r.Seq, owsession.Timestamp(0), true, skipIdx)
		node, err := d.win.Get(r.Seq)
		if err != nil {
			return err
		}
		if node.SeenCount != 0 {
			panic(fmt.Errorf("%w: seq %d lost after being seen", owerrors.InternalInvariantViolation, r.Seq))
		}
		node.Lost = true
		if !seqSkipped(r.Seq, d.hdr.SkipRanges) {
			d.stats.MarkLost(r.SendErr)
		}
		if out != nil {
			fmt.Fprintf(out, "seq=%d *LOST*\n", r.Seq)
		}

	case owsession.TwoWayLost:
		d.flushBefore(r.Seq, owsession.Timestamp(0), true, skipIdx)
		node, err := d.win.Get(r.Seq)
		if err != nil {
			return err
		}
		if node.SeenCount != 0 {
			panic(fmt.Errorf("%w: seq %d lost after being seen", owerrors.InternalInvariantViolation, r.Seq))
		}
		node.Lost = true
		if !seqSkipped(r.Seq, d.hdr.SkipRanges) {
			d.stats.MarkLost(r.SentSendErr)
		}
		if out != nil {
			fmt.Fprintf(out, "seq=%d *LOST*\n", r.Seq)
		}

	case owsession.OneWayReceived:
		d.flushBefore(r.Seq, r.Recv, false, skipIdx)
		node, err := d.win.Get(r.Seq)
		if err != nil {
			return err
		}
		if node.Lost {
			panic(fmt.Errorf("%w: seq %d seen after being marked lost", owerrors.InternalInvariantViolation, r.Seq))
		}
		seenBefore := node.SeenCount
		node.SeenCount++
		if !seqSkipped(r.Seq, d.hdr.SkipRanges) {
			delay := r.Recv.Sub(r.Send)
			first := d.stats.OneWayReceived(seenBefore, delay, r.SendErr, r.RecvErr, r.TTL)
			if first {
				d.hist.Increment(delay)
			}
			d.trk.Observe(r.Seq)
		}

	case owsession.TwoWayReceived:
		d.flushBefore(r.Seq, r.ReflRecv, false, skipIdx)
		node, err := d.win.Get(r.Seq)
		if err != nil {
			return err
		}
		if node.Lost {
			panic(fmt.Errorf("%w: seq %d seen after being marked lost", owerrors.InternalInvariantViolation, r.Seq))
		}
		seenBefore := node.SeenCount
		node.SeenCount++
		if !seqSkipped(r.Seq, d.hdr.SkipRanges) {
			procDelay := r.ReflSend.Sub(r.SentRecv)
			delay := r.ReflRecv.Sub(r.SentSend) - procDelay
			first := d.stats.TwoWayReceived(seenBefore, delay, procDelay, r.SentSendErr, r.ReflRecvErr, r.SentRecvErr, r.TTL)
			if first {
				d.hist.Increment(delay)
			}
			d.trk.Observe(r.Seq)
		}
	}
	return nil
}

// flushBefore implements spec.md §4.5 step 7's pre-record flush policy:
// for a loss marker, flush every window entry with seq below the marker's
// own seq; otherwise flush every entry whose scheduled_send_time is older
// than recvTime-loss_timeout.
func (d *Driver) flushBefore(seq uint32, recvTime owsession.Timestamp, isLossMarker bool, skipIdx *int) {
	if isLossMarker {
		for d.win.HasEntries() && d.win.Pbegin() < seq {
			d.flushOne(skipIdx)
		}
		return
	}
	thresh := recvTime.Add(-d.hdr.Spec.LossTimeout)
	for {
		head, ok := d.win.PeekBegin()
		if !ok || head.ScheduledSendTime >= thresh {
			break
		}
		d.flushOne(skipIdx)
	}
}

func (d *Driver) flushOne(skipIdx *int) {
	action, _ := d.win.FlushBegin(d.hdr.SkipRanges, skipIdx)
	if !action.Skipped {
		d.stats.RecordFlush(action.Lost, action.Dups)
	}
	d.endTime = action.EndTime
	logx.Debug.Println("driver: flushed window head")
}

// classify maps an error to the owerrors sentinel it wraps, for the
// ParseErrorCount metric's "kind" label.
func classify(err error) string {
	switch {
	case errors.Is(err, owerrors.InvalidArgument):
		return "invalid_argument"
	case errors.Is(err, owerrors.InvalidSeq):
		return "invalid_seq"
	case errors.Is(err, owerrors.IO):
		return "io"
	case errors.Is(err, owerrors.CorruptSession):
		return "corrupt_session"
	case errors.Is(err, owerrors.InternalInvariantViolation):
		return "internal_invariant_violation"
	default:
		return "unknown"
	}
}

// Summary returns the frozen result of the most recent Parse call.
func (d *Driver) Summary() Summary {
	return Summary{
		Header:        d.hdr,
		FromLabel:     d.fromLabel,
		ToLabel:       d.toLabel,
		First:         d.first,
		Last:          d.last,
		StartTime:     d.startTime,
		EndTime:       d.endTime,
		BucketWidth:   d.bucketWidth,
		Sent:          d.stats.Sent,
		Lost:          d.stats.Lost,
		Dups:          d.stats.Dups,
		MinDelay:      d.stats.MinDelay,
		MaxDelay:      d.stats.MaxDelay,
		MinProcDelay:  d.stats.MinProcDelay,
		MaxProcDelay:  d.stats.MaxProcDelay,
		Sync:          d.stats.Sync,
		MaxErr:        d.stats.MaxErr,
		TTLCount:      d.stats.TTLCount,
		ReorderCounts: append([]uint64(nil), d.trk.Counts()...),
		ReorderTotal:  d.trk.Total(),
		TwoWay:        d.hdr.Spec.TwoWay,
		hist:          d.hist,
	}
}
