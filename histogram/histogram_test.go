package histogram_test

import (
	"testing"

	"github.com/m-lab/owstats/histogram"
)

func TestIncrementAndTotal(t *testing.T) {
	h := histogram.New(0.01, 2.0)
	h.Increment(0.010)
	h.Increment(0.020)
	h.Increment(0.015)
	h.Increment(0.025)
	h.Increment(0.030)
	if got := h.Total(); got != 5 {
		t.Errorf("Total() = %d, want 5", got)
	}
}

func TestBucketBoundaryBiasAwayFromZero(t *testing.T) {
	h := histogram.New(0.01, 2.0)
	// d=0.01 is exactly on a boundary: ceil(1)=1.
	h.Increment(0.01)
	// d=-0.01: floor(-1)=-1, distinct from the positive-side bucket.
	h.Increment(-0.01)
	h.Sort()
	if got := h.Percentile(1.0, 2); got == histogram.NotRepresentable {
		t.Fatal("expected a representable percentile")
	}
	if b := h.Buckets(); len(b) != 2 || b[0].B != -1 || b[1].B != 1 {
		t.Errorf("Buckets() = %+v, want indices -1 and 1", b)
	}
}

func TestPercentileMedian(t *testing.T) {
	h := histogram.New(0.005, 2.0)
	for _, d := range []float64{0.010, 0.020, 0.015, 0.025, 0.030} {
		h.Increment(d)
	}
	h.Sort()
	got := h.Percentile(0.5, 5)
	if got < 0.015 || got > 0.020 {
		t.Errorf("median = %v, want something near 0.015-0.020", got)
	}
}

func TestPercentileMonotonicity(t *testing.T) {
	h := histogram.New(0.01, 2.0)
	for _, d := range []float64{0.01, 0.02, 0.03, 0.04, 0.05} {
		h.Increment(d)
	}
	h.Sort()
	p1 := h.Percentile(0.25, 5)
	p2 := h.Percentile(0.75, 5)
	if p1 > p2 {
		t.Errorf("Percentile(0.25)=%v > Percentile(0.75)=%v", p1, p2)
	}
}

func TestPercentileEmptyNotRepresentable(t *testing.T) {
	h := histogram.New(0.01, 2.0)
	h.Sort()
	if got := h.Percentile(0.5, 0); got != histogram.NotRepresentable {
		t.Errorf("Percentile on empty histogram = %v, want NotRepresentable", got)
	}
}

func TestResetClearsBuckets(t *testing.T) {
	h := histogram.New(0.01, 2.0)
	h.Increment(0.01)
	h.Reset()
	if got := h.Total(); got != 0 {
		t.Errorf("Total() after Reset = %d, want 0", got)
	}
}
