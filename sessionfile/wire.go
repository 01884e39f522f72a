// Package sessionfile implements the binary session file collaborator that
// spec.md treats as an external dependency: a pull-style ("Next")
// iterator over typed session records, plus the header that describes the
// session. Per-record decoding is the hot path of the engine (a session can
// carry millions of records), so it is built on the internal/bigendian
// helpers rather than encoding/binary's reflection-based Read, the same
// trade the teacher repository makes for its own per-packet decode paths.
package sessionfile

import (
	"github.com/m-lab/owstats/internal/bigendian"
	"github.com/m-lab/owstats/owsession"
)

const (
	oneWayRecordBytes = 24
	twoWayRecordBytes = 42
	skipRecordBytes   = 8
)

func getBE32(buf []byte, off int) uint32 {
	var b bigendian.BE32
	copy(b[:], buf[off:off+4])
	return b.Uint32()
}

func getBE64(buf []byte, off int) uint64 {
	var b bigendian.BE64
	copy(b[:], buf[off:off+8])
	return b.Uint64()
}

func putBE32(buf []byte, off int, v uint32) {
	b := bigendian.PutBE32(v)
	copy(buf[off:off+4], b[:])
}

func putBE64(buf []byte, off int, v uint64) {
	b := bigendian.PutBE64(v)
	copy(buf[off:off+8], b[:])
}

// decodeOneWay parses a one-way data record from its wire representation.
// The receive-timestamp sentinel (all-zero) distinguishes Lost from Received.
func decodeOneWay(buf []byte) owsession.Record {
	seq := getBE32(buf, 0)
	send := owsession.Timestamp(getBE64(buf, 4))
	sendErr := decodeErrorEstimateByte(buf[12])
	recv := owsession.Timestamp(getBE64(buf, 13))
	recvErr := decodeErrorEstimateByte(buf[21])
	ttl := buf[22]

	if recv.IsLost() {
		return owsession.OneWayLost{Seq: seq, Send: send, SendErr: sendErr, TTL: ttl}
	}
	return owsession.OneWayReceived{
		Seq: seq, Send: send, Recv: recv,
		SendErr: sendErr, RecvErr: recvErr, TTL: ttl,
	}
}

func encodeOneWay(buf []byte, seq uint32, send, recv owsession.Timestamp, sendErr, recvErr owsession.ErrorEstimate, ttl uint8) {
	putBE32(buf, 0, seq)
	putBE64(buf, 4, uint64(send))
	buf[12] = encodeErrorEstimateByte(sendErr)
	putBE64(buf, 13, uint64(recv))
	buf[21] = encodeErrorEstimateByte(recvErr)
	buf[22] = ttl
	buf[23] = 0 // reserved
}

// decodeTwoWay parses a TWAMP record. The reflector's send timestamp being
// the sentinel value means the reflector never echoed the packet back.
func decodeTwoWay(buf []byte) owsession.Record {
	seq := getBE32(buf, 0)
	sentSend := owsession.Timestamp(getBE64(buf, 4))
	sentSendErr := decodeErrorEstimateByte(buf[12])
	sentRecv := owsession.Timestamp(getBE64(buf, 13))
	sentRecvErr := decodeErrorEstimateByte(buf[21])
	reflSend := owsession.Timestamp(getBE64(buf, 22))
	reflSendErr := decodeErrorEstimateByte(buf[30])
	reflRecv := owsession.Timestamp(getBE64(buf, 31))
	reflRecvErr := decodeErrorEstimateByte(buf[39])
	ttl := buf[40]

	if reflSend.IsLost() {
		return owsession.TwoWayLost{Seq: seq, SentSend: sentSend, SentSendErr: sentSendErr, TTL: ttl}
	}
	return owsession.TwoWayReceived{
		Seq:         seq,
		SentSend:    sentSend,
		SentRecv:    sentRecv,
		SentSendErr: sentSendErr,
		SentRecvErr: sentRecvErr,
		ReflSend:    reflSend,
		ReflRecv:    reflRecv,
		ReflSendErr: reflSendErr,
		ReflRecvErr: reflRecvErr,
		TTL:         ttl,
	}
}

func encodeTwoWay(buf []byte, r owsession.TwoWayReceived) {
	putBE32(buf, 0, r.Seq)
	putBE64(buf, 4, uint64(r.SentSend))
	buf[12] = encodeErrorEstimateByte(r.SentSendErr)
	putBE64(buf, 13, uint64(r.SentRecv))
	buf[21] = encodeErrorEstimateByte(r.SentRecvErr)
	putBE64(buf, 22, uint64(r.ReflSend))
	buf[30] = encodeErrorEstimateByte(r.ReflSendErr)
	putBE64(buf, 31, uint64(r.ReflRecv))
	buf[39] = encodeErrorEstimateByte(r.ReflRecvErr)
	buf[40] = r.TTL
	buf[41] = 0 // reserved
}

func encodeTwoWayLost(buf []byte, r owsession.TwoWayLost) {
	for i := range buf {
		buf[i] = 0
	}
	putBE32(buf, 0, r.Seq)
	putBE64(buf, 4, uint64(r.SentSend))
	buf[12] = encodeErrorEstimateByte(r.SentSendErr)
	// sent.recv, reflected fields are all the lost sentinel (zero).
	buf[40] = r.TTL
}

func encodeErrorEstimateByte(e owsession.ErrorEstimate) byte {
	b := e.Multiplier & 0x7f
	if e.Sync {
		b |= 0x80
	}
	return b
}

func decodeErrorEstimateByte(b byte) owsession.ErrorEstimate {
	return owsession.ErrorEstimate{Sync: b&0x80 != 0, Multiplier: b & 0x7f}
}
