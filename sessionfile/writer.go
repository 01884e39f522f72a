package sessionfile

import (
	"bytes"
	"fmt"

	"github.com/m-lab/owstats/owerrors"
	"github.com/m-lab/owstats/owsession"
)

// Write serializes hdr and records (in order) into a complete session file
// image. It computes hdr.OsetDatarecs, hdr.OsetSkiprecs, and
// hdr.NumSkiprecs itself from len(records) and hdr.SkipRanges; callers
// should leave those fields zero. Write exists so tests (and the engine's
// own fixture generators) can build session files without hand-assembling
// the wire format; it is the mirror image of Open/Next.
func Write(hdr owsession.SessionHeader, records []owsession.Record) ([]byte, error) {
	recSize := oneWayRecordBytes
	if hdr.Spec.TwoWay {
		recSize = twoWayRecordBytes
	}

	var headerBuf bytes.Buffer
	probe := hdr
	probe.OsetDatarecs = 0
	probe.OsetSkiprecs = int64(len(records) * recSize)
	probe.NumSkiprecs = len(hdr.SkipRanges)
	if err := encodeHeader(&headerBuf, probe); err != nil {
		return nil, err
	}
	headerLen := int64(headerBuf.Len())

	hdr.OsetDatarecs = headerLen
	hdr.OsetSkiprecs = headerLen + int64(len(records)*recSize)
	hdr.NumSkiprecs = len(hdr.SkipRanges)

	var out bytes.Buffer
	if err := encodeHeader(&out, hdr); err != nil {
		return nil, err
	}
	if int64(out.Len()) != headerLen {
		return nil, fmt.Errorf("%w: header length changed after offsets were fixed up (%d != %d)", owerrors.CorruptSession, out.Len(), headerLen)
	}

	buf := make([]byte, recSize)
	for _, r := range records {
		switch rec := r.(type) {
		case owsession.OneWayReceived:
			encodeOneWay(buf, rec.Seq, rec.Send, rec.Recv, rec.SendErr, rec.RecvErr, rec.TTL)
		case owsession.OneWayLost:
			encodeOneWay(buf, rec.Seq, rec.Send, 0, rec.SendErr, owsession.ErrorEstimate{}, rec.TTL)
		case owsession.TwoWayReceived:
			encodeTwoWay(buf, rec)
		case owsession.TwoWayLost:
			encodeTwoWayLost(buf, rec)
		default:
			return nil, fmt.Errorf("%w: unknown record type %T", owerrors.CorruptSession, r)
		}
		out.Write(buf)
	}

	for _, s := range hdr.SkipRanges {
		var sbuf [skipRecordBytes]byte
		putBE32(sbuf[:], 0, s.Begin)
		putBE32(sbuf[:], 4, s.End)
		out.Write(sbuf[:])
	}

	return out.Bytes(), nil
}
