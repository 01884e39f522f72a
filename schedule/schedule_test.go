package schedule_test

import (
	"testing"

	"github.com/m-lab/owstats/owsession"
	"github.com/m-lab/owstats/schedule"
)

func TestExpGeneratorDeterministic(t *testing.T) {
	sid := [16]byte{1, 2, 3, 4, 5, 6, 7, 8}
	slots := []owsession.Slot{{Type: owsession.SlotExponential, Mean: 1.0}}

	g1 := schedule.NewExpGenerator(sid, slots)
	g2 := schedule.NewExpGenerator(sid, slots)

	for i := 0; i < 10; i++ {
		a, b := g1.NextDelta(), g2.NextDelta()
		if a != b {
			t.Fatalf("iteration %d: %v != %v for same SID", i, a, b)
		}
	}
}

func TestExpGeneratorResetReproduces(t *testing.T) {
	sid := [16]byte{9, 9, 9}
	slots := []owsession.Slot{{Type: owsession.SlotExponential, Mean: 2.0}}
	g := schedule.NewExpGenerator(sid, slots)

	first := make([]float64, 5)
	for i := range first {
		first[i] = g.NextDelta()
	}
	g.Reset()
	for i := range first {
		if got := g.NextDelta(); got != first[i] {
			t.Errorf("after reset, delta %d = %v, want %v", i, got, first[i])
		}
	}
}

func TestLiteralGenerator(t *testing.T) {
	g := schedule.NewLiteral(1, 1, 1, 1, 1)
	for i := 0; i < 5; i++ {
		if d := g.NextDelta(); d != 1 {
			t.Errorf("delta %d = %v, want 1", i, d)
		}
	}
	// Repeats the final value once exhausted.
	if d := g.NextDelta(); d != 1 {
		t.Errorf("delta after exhaustion = %v, want 1", d)
	}
}
