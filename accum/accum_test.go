package accum_test

import (
	"testing"

	"github.com/m-lab/owstats/accum"
	"github.com/m-lab/owstats/owsession"
)

func TestOneWayReceivedUpdatesMinMax(t *testing.T) {
	a := accum.New(2.0)
	sync := owsession.ErrorEstimate{Sync: true}
	a.OneWayReceived(0, 0.010, sync, sync, 64)
	a.OneWayReceived(0, 0.030, sync, sync, 64)
	a.OneWayReceived(0, 0.015, sync, sync, 64)
	if a.MinDelay != 0.010 {
		t.Errorf("MinDelay = %v, want 0.010", a.MinDelay)
	}
	if a.MaxDelay != 0.030 {
		t.Errorf("MaxDelay = %v, want 0.030", a.MaxDelay)
	}
	if a.Sent != 3 {
		t.Errorf("Sent = %d, want 3", a.Sent)
	}
}

func TestOneWayReceivedDuplicateDoesNotIncrementSent(t *testing.T) {
	a := accum.New(2.0)
	sync := owsession.ErrorEstimate{Sync: true}
	first := a.OneWayReceived(0, 0.01, sync, sync, 1)
	second := a.OneWayReceived(1, 0.01, sync, sync, 1)
	if !first {
		t.Error("first observation should report first=true")
	}
	if second {
		t.Error("duplicate observation should report first=false")
	}
	if a.Sent != 1 {
		t.Errorf("Sent = %d, want 1", a.Sent)
	}
}

func TestUnsyncClearsSync(t *testing.T) {
	a := accum.New(2.0)
	sync := owsession.ErrorEstimate{Sync: true}
	unsync := owsession.ErrorEstimate{Sync: false}
	a.OneWayReceived(0, 0.01, sync, sync, 1)
	if !a.Sync {
		t.Fatal("Sync should still be true")
	}
	a.OneWayReceived(0, 0.01, sync, unsync, 1)
	if a.Sync {
		t.Error("Sync should be cleared after an unsynced record")
	}
}

func TestRecordFlushLostAndDups(t *testing.T) {
	a := accum.New(2.0)
	a.RecordFlush(true, 0)
	a.RecordFlush(false, 3)
	if a.Lost != 1 {
		t.Errorf("Lost = %d, want 1", a.Lost)
	}
	if a.Dups != 3 {
		t.Errorf("Dups = %d, want 3", a.Dups)
	}
}

func TestOneWayReceivedTracksTTLDistribution(t *testing.T) {
	a := accum.New(2.0)
	sync := owsession.ErrorEstimate{Sync: true}
	a.OneWayReceived(0, 0.01, sync, sync, 255)
	a.OneWayReceived(0, 0.01, sync, sync, 254)
	a.OneWayReceived(0, 0.01, sync, sync, 255)
	if a.TTLCount[255] != 2 || a.TTLCount[254] != 1 {
		t.Errorf("TTLCount[255]=%d TTLCount[254]=%d, want 2 and 1", a.TTLCount[255], a.TTLCount[254])
	}
}

func TestTwoWayReceivedTracksProcDelay(t *testing.T) {
	a := accum.New(2.0)
	sync := owsession.ErrorEstimate{Sync: true}
	a.TwoWayReceived(0, 0.02, 0.001, sync, sync, sync, 64)
	a.TwoWayReceived(0, 0.03, 0.002, sync, sync, sync, 64)
	if a.MinProcDelay != 0.001 || a.MaxProcDelay != 0.002 {
		t.Errorf("proc delay range = [%v,%v], want [0.001,0.002]", a.MinProcDelay, a.MaxProcDelay)
	}
}
