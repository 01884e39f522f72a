package sessionfile

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/m-lab/owstats/owerrors"
	"github.com/m-lab/owstats/owsession"
)

// MinVersion is the lowest session file version this package understands.
const MinVersion = 2

func toFixed(seconds float64) uint64 {
	return uint64(seconds * 4294967296.0)
}

func fromFixed(v uint64) float64 {
	sec := uint32(v >> 32)
	frac := uint32(v)
	return float64(sec) + float64(frac)/4294967296.0
}

func writeString(w io.Writer, s string) error {
	if len(s) > 0xffff {
		return fmt.Errorf("%w: string too long (%d bytes)", owerrors.CorruptSession, len(s))
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// encodeHeader writes hdr to w. Callers must have already set
// hdr.OsetDatarecs, hdr.OsetSkiprecs, and hdr.NumSkiprecs.
func encodeHeader(w io.Writer, hdr owsession.SessionHeader) error {
	fields := []interface{}{
		uint32(hdr.Version),
		uint32(hdr.RecordBytes()),
		hdr.Spec.NPackets,
		uint32(hdr.NumSkiprecs),
		uint64(hdr.OsetDatarecs),
		uint64(hdr.OsetSkiprecs),
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.BigEndian, f); err != nil {
			return err
		}
	}
	if _, err := w.Write(hdr.SID[:]); err != nil {
		return err
	}
	more := []interface{}{
		uint64(hdr.Spec.StartTime),
		toFixed(hdr.Spec.LossTimeout),
		hdr.Spec.PacketSizePadding,
		hdr.Spec.TypeP,
		boolByte(hdr.Spec.TwoWay),
		boolByte(hdr.Finished),
		hdr.FromPort,
		hdr.ToPort,
		uint32(len(hdr.Spec.Slots)),
	}
	for _, f := range more {
		if err := binary.Write(w, binary.BigEndian, f); err != nil {
			return err
		}
	}
	for _, s := range []string{hdr.FromAddr, hdr.ToAddr, hdr.FromHost, hdr.ToHost} {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	for _, slot := range hdr.Spec.Slots {
		if err := binary.Write(w, binary.BigEndian, uint8(slot.Type)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, toFixed(slot.Mean)); err != nil {
			return err
		}
	}
	return nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// decodeHeader reads a SessionHeader from the start of r.
func decodeHeader(r io.Reader) (owsession.SessionHeader, error) {
	var hdr owsession.SessionHeader
	var version, recordSize, npackets, numSkip uint32
	var osetData, osetSkip uint64
	for _, f := range []interface{}{&version, &recordSize, &npackets, &numSkip, &osetData, &osetSkip} {
		if err := binary.Read(r, binary.BigEndian, f); err != nil {
			return hdr, fmt.Errorf("%w: reading header: %v", owerrors.CorruptSession, err)
		}
	}
	if version < MinVersion {
		return hdr, fmt.Errorf("%w: version %d < %d", owerrors.InvalidArgument, version, MinVersion)
	}
	if _, err := io.ReadFull(r, hdr.SID[:]); err != nil {
		return hdr, fmt.Errorf("%w: reading SID: %v", owerrors.CorruptSession, err)
	}
	var startTime, lossTimeoutFixed uint64
	var packetPadding, typeP uint32
	var twoWay, finished uint8
	var fromPort, toPort uint16
	var nslots uint32
	for _, f := range []interface{}{
		&startTime, &lossTimeoutFixed, &packetPadding, &typeP,
		&twoWay, &finished, &fromPort, &toPort, &nslots,
	} {
		if err := binary.Read(r, binary.BigEndian, f); err != nil {
			return hdr, fmt.Errorf("%w: reading test spec: %v", owerrors.CorruptSession, err)
		}
	}

	var err error
	if hdr.FromAddr, err = readString(r); err != nil {
		return hdr, fmt.Errorf("%w: reading from addr: %v", owerrors.CorruptSession, err)
	}
	if hdr.ToAddr, err = readString(r); err != nil {
		return hdr, fmt.Errorf("%w: reading to addr: %v", owerrors.CorruptSession, err)
	}
	if hdr.FromHost, err = readString(r); err != nil {
		return hdr, fmt.Errorf("%w: reading from host: %v", owerrors.CorruptSession, err)
	}
	if hdr.ToHost, err = readString(r); err != nil {
		return hdr, fmt.Errorf("%w: reading to host: %v", owerrors.CorruptSession, err)
	}

	slots := make([]owsession.Slot, nslots)
	for i := range slots {
		var st uint8
		var mean uint64
		if err := binary.Read(r, binary.BigEndian, &st); err != nil {
			return hdr, fmt.Errorf("%w: reading slot %d: %v", owerrors.CorruptSession, i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &mean); err != nil {
			return hdr, fmt.Errorf("%w: reading slot %d: %v", owerrors.CorruptSession, i, err)
		}
		slots[i] = owsession.Slot{Type: owsession.SlotType(st), Mean: fromFixed(mean)}
	}

	hdr.Version = int(version)
	hdr.RecordSize = int(recordSize)
	hdr.OsetDatarecs = int64(osetData)
	hdr.OsetSkiprecs = int64(osetSkip)
	hdr.NumSkiprecs = int(numSkip)
	hdr.Finished = finished != 0
	hdr.FromPort = fromPort
	hdr.ToPort = toPort
	hdr.Spec = owsession.TestSpec{
		StartTime:         owsession.Timestamp(startTime),
		Slots:             slots,
		NPackets:          npackets,
		LossTimeout:       fromFixed(lossTimeoutFixed),
		PacketSizePadding: packetPadding,
		TypeP:             typeP,
		TwoWay:            twoWay != 0,
	}
	return hdr, nil
}
