package owsession

// SlotType distinguishes the schedule distributions a Slot can describe.
type SlotType uint8

const (
	// SlotExponential draws inter-packet deltas from an exponential
	// distribution with the given mean.
	SlotExponential SlotType = iota
	// SlotLiteral always produces exactly the given delta; used by test
	// fixtures that need a deterministic schedule.
	SlotLiteral
)

// Slot describes one element of the session's inter-packet delay schedule.
type Slot struct {
	Type SlotType
	Mean float64 // seconds
}

// SkipRange is an inclusive sequence number range excluded from aggregation,
// e.g. a warm-up period at the start of the session.
type SkipRange struct {
	Begin, End uint32
}

// Contains reports whether seq falls within the inclusive range.
func (s SkipRange) Contains(seq uint32) bool {
	return seq >= s.Begin && seq <= s.End
}

// TestSpec is the portion of the session header describing how the session
// was scheduled and run.
type TestSpec struct {
	StartTime         Timestamp
	Slots             []Slot
	NPackets          uint32
	LossTimeout       float64 // seconds
	PacketSizePadding uint32
	TypeP             uint32
	TwoWay            bool
}

// SessionHeader is the read-only descriptor of a completed session, as
// recorded at the start of the session file.
type SessionHeader struct {
	SID                        [16]byte
	FromHost, ToHost           string
	FromAddr, ToAddr           string
	FromPort, ToPort           uint16
	Spec                       TestSpec
	SkipRanges                 []SkipRange
	Finished                   bool
	RecordSize                 int
	Version                    int
	OsetDatarecs, OsetSkiprecs int64
	NumSkiprecs                int
}

// RecordBytes returns the on-disk size, in bytes, of one data record for
// this session (one-way records and two-way records are different sizes).
func (h *SessionHeader) RecordBytes() int {
	if h.Spec.TwoWay {
		return 42
	}
	return 24
}
