package report_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/m-lab/owstats/driver"
	"github.com/m-lab/owstats/owsession"
	"github.com/m-lab/owstats/report"
	"github.com/m-lab/owstats/schedule"
	"github.com/m-lab/owstats/sessionfile"
)

var epoch = owsession.NewTimestamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
var sync = owsession.ErrorEstimate{Sync: true}

func buildSummary(t *testing.T) driver.Summary {
	t.Helper()
	hdr := owsession.SessionHeader{
		SID:      [16]byte{0xde, 0xad, 0xbe, 0xef},
		FromHost: "sender.example.org",
		ToHost:   "receiver.example.org",
		Version:  2,
		Finished: true,
		Spec: owsession.TestSpec{
			StartTime:   epoch,
			Slots:       []owsession.Slot{{Type: owsession.SlotLiteral, Mean: 1.0}},
			NPackets:    5,
			LossTimeout: 100.0,
		},
	}
	var records []owsession.Record
	for seq := uint32(0); seq < 5; seq++ {
		send := epoch.Add(float64(seq))
		records = append(records, owsession.OneWayReceived{
			Seq: seq, Send: send, Recv: send.Add(0.010 + 0.005*float64(seq)),
			SendErr: sync, RecvErr: sync, TTL: 64,
		})
	}
	data, err := sessionfile.Write(hdr, records)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	sched := schedule.NewLiteral(1, 1, 1, 1, 1)
	d, err := driver.New(context.Background(), bytes.NewReader(data), sched, "from-label", "to-label", 0.005)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := d.Parse(nil, 0, 0, driver.AllPackets); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return d.Summary()
}

func TestScaleFactorKnownChars(t *testing.T) {
	cases := []struct {
		c      byte
		factor float64
		abbrev string
	}{
		{'n', 1e9, "ns"},
		{'u', 1e6, "us"},
		{'m', 1e3, "ms"},
		{'s', 1.0, "s"},
		{'M', 1e3, "ms"},
	}
	for _, c := range cases {
		factor, abbrev, err := report.ScaleFactor(c.c)
		if err != nil {
			t.Fatalf("ScaleFactor(%q): %v", c.c, err)
		}
		if factor != c.factor || abbrev != c.abbrev {
			t.Errorf("ScaleFactor(%q) = (%v,%q), want (%v,%q)", c.c, factor, abbrev, c.factor, c.abbrev)
		}
	}
}

func TestScaleFactorUnknownChar(t *testing.T) {
	if _, _, err := report.ScaleFactor('x'); err == nil {
		t.Error("expected error for unrecognized scale character")
	}
}

func TestPrintSummaryContainsExpectedFields(t *testing.T) {
	s := buildSummary(t)
	var buf bytes.Buffer
	if err := report.PrintSummary(&buf, s, nil, 'm'); err != nil {
		t.Fatalf("PrintSummary: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"5 sent, 0 lost", "0 duplicates", "one-way delay min/median/max", "one-way jitter"} {
		if !strings.Contains(out, want) {
			t.Errorf("PrintSummary output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintMachineReproducesMaxttlTypo(t *testing.T) {
	s := buildSummary(t)
	// A second TTL makes maxttl (70) differ from minttl (64).
	s.TTLCount[70] = 1
	var buf bytes.Buffer
	if err := report.PrintMachine(&buf, s); err != nil {
		t.Fatalf("PrintMachine: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "SUMMARY\t3.00") {
		t.Errorf("missing SUMMARY version line:\n%s", out)
	}
	if !strings.Contains(out, "MINTTL\t64\nMAXTTL\t64\n") {
		t.Errorf("expected MAXTTL to reproduce the minttl value 64 rather than maxttl 70:\n%s", out)
	}
	if !strings.Contains(out, "<BUCKETS>") {
		t.Errorf("expected a <BUCKETS> block when sent>lost:\n%s", out)
	}
}

func TestPrintMachineNoTTLWhenNoneReceived(t *testing.T) {
	hdr := owsession.SessionHeader{
		SID: [16]byte{1},
		Spec: owsession.TestSpec{
			StartTime:   epoch,
			Slots:       []owsession.Slot{{Type: owsession.SlotLiteral, Mean: 1.0}},
			NPackets:    1,
			LossTimeout: 100.0,
		},
	}
	records := []owsession.Record{owsession.OneWayLost{Seq: 0, Send: epoch, SendErr: sync}}
	data, err := sessionfile.Write(hdr, records)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	sched := schedule.NewLiteral(1)
	d, err := driver.New(context.Background(), bytes.NewReader(data), sched, "", "", 0.005)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := d.Parse(nil, 0, 0, driver.AllPackets); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var buf bytes.Buffer
	if err := report.PrintMachine(&buf, d.Summary()); err != nil {
		t.Fatalf("PrintMachine: %v", err)
	}
	if strings.Contains(buf.String(), "MINTTL") {
		t.Errorf("expected no MINTTL/MAXTTL lines with zero received packets:\n%s", buf.String())
	}
}
