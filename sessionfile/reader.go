package sessionfile

import (
	"fmt"
	"io"

	"github.com/m-lab/owstats/owerrors"
	"github.com/m-lab/owstats/owsession"
)

// Reader streams typed records out of a session file: it owns no file
// descriptor (the caller's io.ReadSeeker is borrowed, per the engine's
// ownership rules) and exposes a pull-style Next() iterator in place of the
// callback-driven record iteration spec.md's non-goals assume the file
// format parser collaborator provides.
type Reader struct {
	r       io.ReadSeeker
	hdr     owsession.SessionHeader
	dataEnd int64
	pos     int64
}

// Open parses the header (and skip records) at the start of r and positions
// the reader at the start of the data record area.
func Open(r io.ReadSeeker) (*Reader, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %v", owerrors.IO, err)
	}
	hdr, err := decodeHeader(r)
	if err != nil {
		return nil, err
	}

	if hdr.NumSkiprecs > 0 {
		if _, err := r.Seek(hdr.OsetSkiprecs, io.SeekStart); err != nil {
			return nil, fmt.Errorf("%w: %v", owerrors.IO, err)
		}
		ranges := make([]owsession.SkipRange, hdr.NumSkiprecs)
		buf := make([]byte, skipRecordBytes)
		for i := range ranges {
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("%w: reading skip record %d: %v", owerrors.CorruptSession, i, err)
			}
			ranges[i] = owsession.SkipRange{Begin: getBE32(buf, 0), End: getBE32(buf, 4)}
		}
		hdr.SkipRanges = ranges
	}

	fileEnd, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", owerrors.IO, err)
	}

	dataEnd := fileEnd
	if hdr.NumSkiprecs > 0 && hdr.OsetSkiprecs > hdr.OsetDatarecs {
		dataEnd = hdr.OsetSkiprecs
	}

	rd := &Reader{r: r, hdr: hdr, dataEnd: dataEnd}
	if err := rd.Seek(hdr.OsetDatarecs); err != nil {
		return nil, err
	}
	return rd, nil
}

// Header returns the session's header, including its skip ranges.
func (rd *Reader) Header() owsession.SessionHeader {
	return rd.hdr
}

// DataEnd returns the file offset one past the last data record.
func (rd *Reader) DataEnd() int64 {
	return rd.dataEnd
}

// Offset returns the file offset Next will read from.
func (rd *Reader) Offset() int64 {
	return rd.pos
}

// Seek repositions the reader within the data record area.
func (rd *Reader) Seek(offset int64) error {
	if offset < rd.hdr.OsetDatarecs || offset > rd.dataEnd {
		return fmt.Errorf("%w: offset %d outside data area [%d, %d)", owerrors.InvalidArgument, offset, rd.hdr.OsetDatarecs, rd.dataEnd)
	}
	if _, err := rd.r.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %v", owerrors.IO, err)
	}
	rd.pos = offset
	return nil
}

// Next decodes and returns the record at the current offset, or io.EOF once
// the data record area is exhausted.
func (rd *Reader) Next() (owsession.Record, error) {
	if rd.pos >= rd.dataEnd {
		return nil, io.EOF
	}
	size := oneWayRecordBytes
	if rd.hdr.Spec.TwoWay {
		size = twoWayRecordBytes
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(rd.r, buf); err != nil {
		return nil, fmt.Errorf("%w: reading record at offset %d: %v", owerrors.CorruptSession, rd.pos, err)
	}
	rd.pos += int64(size)
	if rd.hdr.Spec.TwoWay {
		return decodeTwoWay(buf), nil
	}
	return decodeOneWay(buf), nil
}
