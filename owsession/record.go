package owsession

// Record is the tagged variant produced by the session file's record
// stream. Concrete record kinds replace the sentinel-timestamp "is this
// lost?" check from the original C implementation with an explicit type:
// a Lost variant simply has no receive timestamp to carry.
type Record interface {
	SeqNo() uint32
	isRecord()
}

// OneWayReceived is a one-way record for a packet that was observed at the
// receiver at least once.
type OneWayReceived struct {
	Seq              uint32
	Send, Recv       Timestamp
	SendErr, RecvErr ErrorEstimate
	TTL              uint8
}

func (r OneWayReceived) SeqNo() uint32 { return r.Seq }
func (OneWayReceived) isRecord()       {}

// OneWayLost is a one-way record for a packet the receiver never saw.
type OneWayLost struct {
	Seq     uint32
	Send    Timestamp
	SendErr ErrorEstimate
	TTL     uint8
}

func (r OneWayLost) SeqNo() uint32 { return r.Seq }
func (OneWayLost) isRecord()       {}

// TwoWayReceived is a TWAMP record: the sender's packet was reflected and
// returned, and both endpoints timestamped it.
type TwoWayReceived struct {
	Seq                      uint32
	SentSend, SentRecv       Timestamp
	SentSendErr, SentRecvErr ErrorEstimate
	ReflSend, ReflRecv       Timestamp
	ReflSendErr, ReflRecvErr ErrorEstimate
	TTL                      uint8
}

func (r TwoWayReceived) SeqNo() uint32 { return r.Seq }
func (TwoWayReceived) isRecord()       {}

// TwoWayLost is a TWAMP record for a packet the reflector never echoed back.
type TwoWayLost struct {
	Seq         uint32
	SentSend    Timestamp
	SentSendErr ErrorEstimate
	TTL         uint8
}

func (r TwoWayLost) SeqNo() uint32 { return r.Seq }
func (TwoWayLost) isRecord()       {}
