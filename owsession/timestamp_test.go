package owsession_test

import (
	"math"
	"testing"
	"time"

	"github.com/m-lab/owstats/owsession"
)

func TestTimestampRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 30, 0, 500_000_000, time.UTC)
	ts := owsession.NewTimestamp(now)
	got := ts.Time()
	if diff := got.Sub(now); diff > time.Millisecond || diff < -time.Millisecond {
		t.Errorf("round trip drifted by %v: got %v, want %v", diff, got, now)
	}
}

func TestTimestampSub(t *testing.T) {
	a := owsession.NewTimestamp(time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC))
	b := owsession.NewTimestamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	d := a.Sub(b)
	if math.Abs(d-1.0) > 1e-6 {
		t.Errorf("a.Sub(b) = %v, want ~1.0", d)
	}
	// Sub is signed: b.Sub(a) should be negative.
	if d2 := b.Sub(a); d2 >= 0 {
		t.Errorf("b.Sub(a) = %v, want negative", d2)
	}
}

func TestIsLost(t *testing.T) {
	var zero owsession.Timestamp
	if !zero.IsLost() {
		t.Error("zero Timestamp should be IsLost()")
	}
	nonzero := owsession.NewTimestamp(time.Now())
	if nonzero.IsLost() {
		t.Error("non-zero Timestamp should not be IsLost()")
	}
}

func TestErrorEstimateValue(t *testing.T) {
	e := owsession.ErrorEstimate{Sync: true, Multiplier: 10}
	if e.Value() <= 0 {
		t.Error("expected positive error value")
	}
}
