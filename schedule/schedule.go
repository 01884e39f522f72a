// Package schedule implements the Schedule generator collaborator spec.md
// treats as external: given a session-id-derived PRNG seed and a slot
// list, it emits successive inter-packet send deltas. The session statistics
// engine owns the cursor (resetting and re-advancing it as the Session
// Driver repositions within a session); this package only owns the
// randomness.
package schedule

import (
	"crypto/md5"
	"encoding/binary"
	"math/rand"

	"github.com/m-lab/owstats/owsession"
)

// Generator produces the deterministic-per-SID sequence of inter-packet
// send deltas a session's schedule describes. Exposed as an interface so
// tests can substitute a Literal generator instead of drawing from a PRNG.
type Generator interface {
	// NextDelta returns the number of seconds after the previous packet's
	// scheduled send time that the next packet is scheduled to be sent.
	NextDelta() float64
	// Reset rewinds the generator to the state it had just after
	// construction: the same SID must always reproduce the same sequence
	// of deltas regardless of how many times Reset is called.
	Reset()
}

// seedFromSID derives a PRNG seed from a 16-byte session id, the same way
// the rest of the corpus derives stable ids from opaque byte strings.
func seedFromSID(sid [16]byte) int64 {
	sum := md5.Sum(sid[:])
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// ExpGenerator draws inter-packet deltas from the exponential (or literal)
// distributions described by a session's slot list, cycling through the
// slots in order and seeding its PRNG deterministically from the session id.
type ExpGenerator struct {
	slots []owsession.Slot
	seed  int64
	rng   *rand.Rand
	index int
}

// NewExpGenerator builds a Generator for the given session id and slots.
func NewExpGenerator(sid [16]byte, slots []owsession.Slot) *ExpGenerator {
	seed := seedFromSID(sid)
	g := &ExpGenerator{slots: slots, seed: seed}
	g.Reset()
	return g
}

// Reset implements Generator.
func (g *ExpGenerator) Reset() {
	g.rng = rand.New(rand.NewSource(g.seed))
	g.index = 0
}

// NextDelta implements Generator.
func (g *ExpGenerator) NextDelta() float64 {
	if len(g.slots) == 0 {
		return 1.0
	}
	slot := g.slots[g.index%len(g.slots)]
	g.index++
	switch slot.Type {
	case owsession.SlotLiteral:
		return slot.Mean
	default: // SlotExponential
		return g.rng.ExpFloat64() * slot.Mean
	}
}

// Literal is a deterministic Generator that replays a fixed slice of deltas,
// repeating the last one forever once exhausted. Used by tests that need an
// exact, reproducible schedule (e.g. the end-to-end scenarios in spec.md §8).
type Literal struct {
	Deltas []float64
	index  int
}

// NewLiteral builds a Literal generator over the given deltas.
func NewLiteral(deltas ...float64) *Literal {
	return &Literal{Deltas: deltas}
}

// Reset implements Generator.
func (l *Literal) Reset() {
	l.index = 0
}

// NextDelta implements Generator.
func (l *Literal) NextDelta() float64 {
	if len(l.Deltas) == 0 {
		return 1.0
	}
	d := l.Deltas[l.index]
	if l.index < len(l.Deltas)-1 {
		l.index++
	}
	return d
}
