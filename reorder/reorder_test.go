package reorder_test

import (
	"testing"

	"github.com/m-lab/owstats/reorder"
)

func TestInOrderAllZero(t *testing.T) {
	tr := reorder.New(8)
	for _, s := range []uint32{0, 1, 2, 3, 4} {
		tr.Observe(s)
	}
	for i, n := range tr.Counts() {
		if n != 0 {
			t.Errorf("Counts()[%d] = %d, want 0", i, n)
		}
	}
}

func TestSingleSwapReordersOnce(t *testing.T) {
	tr := reorder.New(8)
	for _, s := range []uint32{0, 1, 2, 4, 3} {
		tr.Observe(s)
	}
	counts := tr.Counts()
	if counts[0] != 1 {
		t.Errorf("Counts()[0] = %d, want 1", counts[0])
	}
	for i := 1; i < len(counts); i++ {
		if counts[i] != 0 {
			t.Errorf("Counts()[%d] = %d, want 0", i, counts[i])
		}
	}
}

func TestResetClearsCounters(t *testing.T) {
	tr := reorder.New(8)
	for _, s := range []uint32{0, 1, 3, 2} {
		tr.Observe(s)
	}
	tr.Reset()
	for i, n := range tr.Counts() {
		if n != 0 {
			t.Errorf("Counts()[%d] after Reset = %d, want 0", i, n)
		}
	}
}
