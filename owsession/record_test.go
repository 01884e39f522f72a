package owsession_test

import (
	"testing"

	"github.com/m-lab/owstats/owsession"
)

func TestRecordSeqNo(t *testing.T) {
	cases := []owsession.Record{
		owsession.OneWayReceived{Seq: 1},
		owsession.OneWayLost{Seq: 2},
		owsession.TwoWayReceived{Seq: 3},
		owsession.TwoWayLost{Seq: 4},
	}
	for i, r := range cases {
		if got := r.SeqNo(); got != uint32(i+1) {
			t.Errorf("case %d: SeqNo() = %d, want %d", i, got, i+1)
		}
	}
}
