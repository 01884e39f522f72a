// Package report implements the Summary Reporters of spec.md §4.6: the
// human-readable print_summary format and the tag/value print_machine
// format, both consuming an immutable driver.Summary rather than reaching
// back into Driver state, per spec.md §9's ingest/reporting separation.
package report

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/m-lab/owstats/driver"
	"github.com/m-lab/owstats/histogram"
	"github.com/m-lab/owstats/owerrors"
)

// ScaleFactor returns the multiplier and unit abbreviation (at most two
// characters) for a
// scale_factor character, per spec.md §6: n->ns, u->us, m->ms, s->s. The
// 'm' case in the original C switch falls through into 's' with no
// additional statement, so the observable factor is 1000 either way; see
// spec.md §9 Open Question 1. We compute the factor directly rather than
// reproducing the fall-through syntactically, since nothing downstream of
// 's' alters it.
func ScaleFactor(c byte) (factor float64, abbrev string, err error) {
	switch c | 0x20 { // lowercase ASCII letters only; matches tolower() for 'A'-'Z'
	case 'n':
		return 1e9, "ns", nil
	case 'u':
		return 1e6, "us", nil
	case 'm':
		return 1e3, "ms", nil
	case 's':
		return 1.0, "s", nil
	default:
		return 0, "", fmt.Errorf("%w: scale character %q not one of n/u/m/s", owerrors.InvalidArgument, c)
	}
}

func formatDelay(d, inf, factor float64, negate bool) string {
	bound := inf
	if negate {
		if d <= -bound {
			return "nan"
		}
	} else if d >= bound {
		return "nan"
	}
	return fmt.Sprintf("%.3g", d*factor)
}

// PrintSummary writes the human-readable report for s to w, per spec.md
// §4.6. percentiles are additional [0,100] percentiles to report beyond the
// built-in min/median/max/jitter. scale selects the delay unit via
// ScaleFactor.
func PrintSummary(w io.Writer, s driver.Summary, percentiles []float64, scale byte) error {
	factor, abbrev, err := ScaleFactor(scale)
	if err != nil {
		return err
	}
	inf := s.Header.Spec.LossTimeout + 1

	kind := "owping"
	if s.TwoWay {
		kind = "twping"
	}
	fmt.Fprintf(w, "\n--- %s statistics from %s to %s ---\n", kind, s.FromLabel, s.ToLabel)
	fmt.Fprintf(w, "SID:\t%s\n", strings.ToUpper(hex.EncodeToString(s.Header.SID[:])))

	st := s.StartTime.Time()
	et := s.EndTime.Time()
	fmt.Fprintf(w, "first:\t%s.%03d\nlast:\t%s.%03d\n",
		st.Format("2006-01-02T15:04:05"), st.Nanosecond()/1e6,
		et.Format("2006-01-02T15:04:05"), et.Nanosecond()/1e6)

	var lossPct float64
	if s.Sent > 0 {
		lossPct = float64(s.Lost) / float64(s.Sent) * 100.0
	}
	fmt.Fprintf(w, "%d sent, %d lost (%.3f%%), %d duplicates\n", s.Sent, s.Lost, lossPct, s.Dups)

	minv := formatDelay(s.MinDelay, inf, factor, false)
	maxv := formatDelay(s.MaxDelay, inf, factor, true)
	medv := "nan"
	if med := s.Percentile(0.5); med != histogram.NotRepresentable {
		medv = fmt.Sprintf("%.3g", med*factor)
	}
	delayKind := "one-way delay"
	if s.TwoWay {
		delayKind = "round-trip time"
	}
	fmt.Fprintf(w, "%s min/median/max = %s/%s/%s %s, ", delayKind, minv, medv, maxv, abbrev)
	if s.Sync {
		fmt.Fprintf(w, "(err=%.3g %s)\n", s.MaxErr*factor, abbrev)
	} else {
		fmt.Fprintf(w, "(unsync)\n")
	}

	if s.TwoWay {
		pminv := formatDelay(s.MinProcDelay, inf, factor, false)
		pmaxv := formatDelay(s.MaxProcDelay, inf, factor, true)
		fmt.Fprintf(w, "reflector processing time min/max = %s/%s %s\n", pminv, pmaxv, abbrev)
	}

	jitterLabel := "one-way jitter"
	if s.TwoWay {
		jitterLabel = "two-way PDV"
	}
	p95 := s.Percentile(0.95)
	p50 := s.Percentile(0.5)
	jitterv := "nan"
	if p95 != histogram.NotRepresentable && p50 != histogram.NotRepresentable {
		jitterv = fmt.Sprintf("%.3g", (p95-p50)*factor)
	}
	fmt.Fprintf(w, "%s = %s %s (P95-P50)\n", jitterLabel, jitterv, abbrev)

	if len(percentiles) > 0 {
		fmt.Fprintf(w, "Percentiles:\n")
		for _, p := range percentiles {
			v := s.Percentile(p / 100.0)
			pv := "nan"
			if v != histogram.NotRepresentable {
				pv = fmt.Sprintf("%.3g", v*factor)
			}
			fmt.Fprintf(w, "\t%.1f: %s %s\n", p, pv, abbrev)
		}
	}

	minTTL, maxTTL, anyTTL := minMaxTTL(s.TTLCount)
	nttl := countNonzero(s.TTLCount)
	switch {
	case !anyTTL:
		fmt.Fprintf(w, "TTL not reported\n")
	case nttl == 1:
		fmt.Fprintf(w, "Hops = %d (consistently)\n", 255-int(minTTL))
	default:
		fmt.Fprintf(w, "Hops takes %d values; Min Hops = %d, Max Hops = %d\n",
			nttl, 255-int(maxTTL), 255-int(minTTL))
	}

	i := 0
	for ; i < len(s.ReorderCounts) && s.ReorderCounts[i] != 0; i++ {
		pct := 100.0 * float64(s.ReorderCounts[i]) / float64(s.ReorderTotal)
		fmt.Fprintf(w, "%d-reordering = %f%%\n", i+1, pct)
	}
	switch {
	case i == 0:
		fmt.Fprintf(w, "no reordering\n")
	case i < len(s.ReorderCounts):
		fmt.Fprintf(w, "no %d-reordering\n", i+1)
	default:
		fmt.Fprintf(w, "%d-reordering not handled\n", len(s.ReorderCounts)+1)
	}

	fmt.Fprintf(w, "\n")
	return nil
}

// PrintMachine writes the tag/value machine-readable report for s to w, per
// spec.md §4.6. Version 3.0, ASCII keys, one "KEY\tVALUE" line per tag.
func PrintMachine(w io.Writer, s driver.Summary) error {
	fmt.Fprintf(w, "SUMMARY\t%.2f\n", 3.0)
	fmt.Fprintf(w, "SID\t%s\n", strings.ToUpper(hex.EncodeToString(s.Header.SID[:])))
	fmt.Fprintf(w, "FROM_HOST\t%s\n", s.Header.FromHost)
	fmt.Fprintf(w, "FROM_ADDR\t%s\n", s.Header.FromAddr)
	fmt.Fprintf(w, "FROM_PORT\t%d\n", s.Header.FromPort)
	fmt.Fprintf(w, "TO_HOST\t%s\n", s.Header.ToHost)
	fmt.Fprintf(w, "TO_ADDR\t%s\n", s.Header.ToAddr)
	fmt.Fprintf(w, "TO_PORT\t%d\n", s.Header.ToPort)
	fmt.Fprintf(w, "START_TIME\t%d\n", uint64(s.StartTime))
	fmt.Fprintf(w, "END_TIME\t%d\n", uint64(s.EndTime))

	if s.Header.Spec.TypeP&^uint32(0x3F000000) == 0 {
		dscp := s.Header.Spec.TypeP >> 24
		fmt.Fprintf(w, "DSCP\t0x%02x\n", dscp)
	}
	fmt.Fprintf(w, "LOSS_TIMEOUT\t%g\n", s.Header.Spec.LossTimeout)
	fmt.Fprintf(w, "PACKET_PADDING\t%d\n", s.Header.Spec.PacketSizePadding)
	fmt.Fprintf(w, "SESSION_PACKET_COUNT\t%d\n", s.Header.Spec.NPackets)
	fmt.Fprintf(w, "SAMPLE_PACKET_COUNT\t%d\n", s.Last-s.First)
	fmt.Fprintf(w, "BUCKET_WIDTH\t%g\n", s.BucketWidth)
	finished := 0
	if s.Header.Finished {
		finished = 1
	}
	fmt.Fprintf(w, "SESSION_FINISHED\t%d\n", finished)

	fmt.Fprintf(w, "SENT\t%d\n", s.Sent)
	sync := 0
	if s.Sync {
		sync = 1
	}
	fmt.Fprintf(w, "SYNC\t%d\n", sync)
	fmt.Fprintf(w, "MAXERR\t%g\n", s.MaxErr)
	fmt.Fprintf(w, "DUPS\t%d\n", s.Dups)
	fmt.Fprintf(w, "LOST\t%d\n", s.Lost)

	inf := s.Header.Spec.LossTimeout + 1
	if s.MinDelay < inf {
		fmt.Fprintf(w, "MIN\t%g\n", s.MinDelay)
	}
	if s.MaxDelay > -inf {
		fmt.Fprintf(w, "MAX\t%g\n", s.MaxDelay)
	}

	if s.Sent > s.Lost {
		fmt.Fprintf(w, "<BUCKETS>\n")
		for _, b := range s.Buckets() {
			fmt.Fprintf(w, "\t%d\t%d\n", b.B, b.N)
		}
		fmt.Fprintf(w, "</BUCKETS>\n")
	}

	minTTL, _, anyTTL := minMaxTTL(s.TTLCount)
	if anyTTL {
		// Reproduces the original's MAXTTL line, which prints minttl
		// instead of maxttl; see spec.md §9 Open Question 2.
		fmt.Fprintf(w, "MINTTL\t%d\n", minTTL)
		fmt.Fprintf(w, "MAXTTL\t%d\n", minTTL)
		fmt.Fprintf(w, "<TTLBUCKETS>\n")
		for ttl, n := range s.TTLCount {
			if n == 0 {
				continue
			}
			fmt.Fprintf(w, "\t%d\t%d\n", ttl, n)
		}
		fmt.Fprintf(w, "</TTLBUCKETS>\n")
	}
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "<NREORDERING>\n")
	j := 0
	for ; j < len(s.ReorderCounts) && s.ReorderCounts[j] != 0; j++ {
		fmt.Fprintf(w, "\t%d\t%d\n", j+1, s.ReorderCounts[j])
	}
	if j == 0 || j >= len(s.ReorderCounts) {
		fmt.Fprintf(w, "\t%d\t%d\n", j+1, 0)
	}
	fmt.Fprintf(w, "</NREORDERING>\n")

	return nil
}

func minMaxTTL(counts [256]uint64) (min, max uint8, ok bool) {
	for ttl, n := range counts {
		if n == 0 {
			continue
		}
		if !ok {
			min, max, ok = uint8(ttl), uint8(ttl), true
			continue
		}
		if uint8(ttl) < min {
			min = uint8(ttl)
		}
		if uint8(ttl) > max {
			max = uint8(ttl)
		}
	}
	return min, max, ok
}

func countNonzero(counts [256]uint64) int {
	n := 0
	for _, c := range counts {
		if c != 0 {
			n++
		}
	}
	return n
}
