// Package owerrors defines the error kinds shared across the session
// statistics engine, per the taxonomy in the engine's error handling design:
// callers use errors.Is against these sentinels to classify a failure
// without depending on the package that produced it.
package owerrors

import "errors"

var (
	// InvalidArgument covers bad version, bad scale character, first>last,
	// last>npackets, bucket_width<=0, and similar caller-supplied mistakes.
	InvalidArgument = errors.New("invalid argument")

	// InvalidSeq covers Packet Window allocate/get calls for a sequence
	// number outside its currently legal range.
	InvalidSeq = errors.New("invalid sequence number")

	// IO covers file seek failures against the session file. Failed or
	// short reads of the header and records are reported as CorruptSession.
	IO = errors.New("session file i/o error")

	// CorruptSession covers header, slot, skip-record, or data-record
	// parse failures: the file's bytes don't match its own declared shape.
	CorruptSession = errors.New("corrupt session file")

	// InternalInvariantViolation covers assertion failures the engine
	// recovers from a panic and reports as an error instead of crashing
	// the process: e.g. pend.seq+1 != isctx, or a PacketRecord transitioning
	// between lost and seen in violation of the window's invariants.
	InternalInvariantViolation = errors.New("internal invariant violation")
)
