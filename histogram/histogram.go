// Package histogram implements the Bucket Histogram of spec.md §4.2: a
// streaming delay histogram whose bucket set is not known in advance, grown
// the same arena+free-index way the Packet Window grows (see
// github.com/m-lab/owstats/window), and sortable on demand for percentile
// queries.
package histogram

import (
	"math"
	"sort"

	"github.com/m-lab/go/logx"

	"github.com/m-lab/owstats/metrics"
)

// NotRepresentable is returned by Percentile when no bucket satisfies the
// requested cumulative fraction (e.g. the histogram is empty).
const NotRepresentable = math.MaxFloat64

// bucket is one (index, count) pair. Index is signed because delays may be
// negative when the two endpoint clocks disagree.
type bucket struct {
	b int64
	n uint64
}

// Histogram accumulates delay samples into a sparse set of fixed-width
// buckets and can later report percentiles over the accumulated
// distribution.
type Histogram struct {
	width float64

	arena []*bucket
	free  []int
	byIdx map[int64]int

	blockSize int
	sorted    []*bucket // built by Sort; nil until Sort is called
}

// New constructs an empty Histogram with the given bucket width. lossTimeout
// is used only to size the arena's growth blocks per blistlen below.
func New(width, lossTimeout float64) *Histogram {
	return &Histogram{
		width:     width,
		byIdx:     make(map[int64]int),
		blockSize: blistlen(lossTimeout, width),
	}
}

// blistlen implements spec.md §4.2's sizing heuristic:
// blistlen = clamp(loss_timeout/width, 10, 2048).
func blistlen(lossTimeout, width float64) int {
	if width <= 0 {
		return 10
	}
	n := int(lossTimeout / width)
	if n < 10 {
		n = 10
	}
	if n > 2048 {
		n = 2048
	}
	return n
}

// bucketIndex maps a delay to its bucket index: ceil(d/w) for d>=0,
// floor(d/w) for d<0. The boundary is biased away from zero by design.
func bucketIndex(d, w float64) int64 {
	q := d / w
	if d >= 0 {
		return int64(math.Ceil(q))
	}
	return int64(math.Floor(q))
}

func (h *Histogram) grow() {
	start := len(h.arena)
	for i := 0; i < h.blockSize; i++ {
		h.arena = append(h.arena, &bucket{})
		h.free = append(h.free, start+i)
	}
	metrics.WindowExtensionCount.WithLabelValues("bucket").Inc()
	logx.Debug.Printf("histogram: extended bucket arena to %d buckets", len(h.arena))
}

// Increment records one sample of delay d, per spec.md §4.2.
func (h *Histogram) Increment(d float64) {
	b := bucketIndex(d, h.width)
	idx, ok := h.byIdx[b]
	if !ok {
		if len(h.free) == 0 {
			h.grow()
		}
		idx = h.free[len(h.free)-1]
		h.free = h.free[:len(h.free)-1]
		h.arena[idx].b = b
		h.arena[idx].n = 0
		h.byIdx[b] = idx
	}
	h.arena[idx].n++
	h.sorted = nil
}

// Reset clears all buckets back to the free list, so a Histogram can be
// reused across successive parse() calls.
func (h *Histogram) Reset() {
	for b, idx := range h.byIdx {
		h.free = append(h.free, idx)
		delete(h.byIdx, b)
	}
	h.sorted = nil
}

// Sort builds the sort scratch array ascending by bucket index. Must be
// called after the scan completes and before Percentile or Buckets.
func (h *Histogram) Sort() {
	h.sorted = make([]*bucket, 0, len(h.byIdx))
	for _, idx := range h.byIdx {
		h.sorted = append(h.sorted, h.arena[idx])
	}
	sort.Slice(h.sorted, func(i, j int) bool { return h.sorted[i].b < h.sorted[j].b })
}

// Total returns the sum of all bucket counts (Σ bucket.n in spec.md §8's
// bucket-total invariant). Sort need not have been called first.
func (h *Histogram) Total() uint64 {
	var total uint64
	for _, idx := range h.byIdx {
		total += h.arena[idx].n
	}
	return total
}

// Bucket is one (index, count) pair exposed to Reporters for the machine
// report's <BUCKETS> block. Index is the raw bucket number, not a delay in
// seconds; a reader multiplies by the histogram's width to recover a delay.
type Bucket struct {
	B int64
	N uint64
}

// Buckets returns the sorted bucket set built by the last Sort call, for
// the machine report's <BUCKETS> block.
func (h *Histogram) Buckets() []Bucket {
	out := make([]Bucket, len(h.sorted))
	for i, b := range h.sorted {
		out[i] = Bucket{B: b.b, N: b.n}
	}
	return out
}

// Percentile implements sort_percentile(α): walks the sorted buckets
// accumulating counts and returns the first bucket's b×w at which the
// cumulative sum reaches α×sent. Requires Sort to have been called since the
// last Increment. Returns NotRepresentable if no bucket satisfies it.
func (h *Histogram) Percentile(alpha float64, sent uint64) float64 {
	if h.sorted == nil || sent == 0 {
		return NotRepresentable
	}
	threshold := alpha * float64(sent)
	var cum uint64
	for _, b := range h.sorted {
		cum += b.n
		if float64(cum) >= threshold {
			return float64(b.b) * h.width
		}
	}
	return NotRepresentable
}
