package bigendian_test

import (
	"testing"

	"github.com/m-lab/owstats/internal/bigendian"
)

func TestBE64RoundTrip(t *testing.T) {
	vals := []uint64{0, 1, 0xdeadbeef, 1 << 63, ^uint64(0)}
	for _, v := range vals {
		b := bigendian.PutBE64(v)
		if got := b.Uint64(); got != v {
			t.Errorf("PutBE64(%d).Uint64() = %d, want %d", v, got, v)
		}
	}
}

func TestBE32RoundTrip(t *testing.T) {
	vals := []uint32{0, 1, 0xdeadbeef, ^uint32(0)}
	for _, v := range vals {
		b := bigendian.PutBE32(v)
		if got := b.Uint32(); got != v {
			t.Errorf("PutBE32(%d).Uint32() = %d, want %d", v, got, v)
		}
	}
}
