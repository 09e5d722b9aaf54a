package xipc

import (
	"bytes"
	"math/rand"
	"testing"
)

func newTestRing(t *testing.T, capacity int) *ring {
	t.Helper()
	buf := make([]byte, headerSize+capacity)
	h := headerAt(buf, 0)
	h.publish(uint32(capacity), uint32(headerSize))
	return newRing(h, buf[headerSize:headerSize+capacity])
}

func TestRingZeroLengthOps(t *testing.T) {
	r := newTestRing(t, 16)
	if n := r.push(nil); n != 0 {
		t.Fatalf("push(nil) = %d, want 0", n)
	}
	if n := r.pop(nil); n != 0 {
		t.Fatalf("pop(nil) = %d, want 0", n)
	}
	if r.readable() != 0 {
		t.Fatalf("expected empty ring after no-op push/pop")
	}
}

func TestRingFillAndDrain(t *testing.T) {
	// Mirrors spec §8.3 scenario 2 exactly.
	r := newTestRing(t, 8)

	if n := r.push([]byte{0, 1, 2, 3, 4, 5, 6, 7}); n != 8 {
		t.Fatalf("push full = %d, want 8", n)
	}
	if n := r.push([]byte{99}); n != 0 {
		t.Fatalf("push into full ring = %d, want 0", n)
	}

	got := make([]byte, 5)
	if n := r.pop(got); n != 5 {
		t.Fatalf("pop 5 = %d", n)
	}
	if !bytes.Equal(got, []byte{0, 1, 2, 3, 4}) {
		t.Fatalf("pop content = %v", got)
	}

	if n := r.push([]byte{8, 9, 10, 11, 12}); n != 5 {
		t.Fatalf("push 5 = %d", n)
	}

	got = make([]byte, 8)
	if n := r.pop(got); n != 8 {
		t.Fatalf("pop 8 = %d", n)
	}
	if !bytes.Equal(got, []byte{5, 6, 7, 8, 9, 10, 11, 12}) {
		t.Fatalf("pop content = %v", got)
	}
}

func TestRingPartialSpaceAndAvail(t *testing.T) {
	r := newTestRing(t, 4)
	if n := r.push([]byte{1, 2, 3}); n != 3 {
		t.Fatalf("push 3 = %d", n)
	}
	// Only 1 byte of free space left; asking for 4 returns the partial 1.
	if n := r.push([]byte{4, 5, 6, 7}); n != 1 {
		t.Fatalf("partial push = %d, want 1", n)
	}
	// Ring is full now; asking to read more than available returns only
	// what's there.
	got := make([]byte, 10)
	if n := r.pop(got); n != 4 {
		t.Fatalf("pop = %d, want 4", n)
	}
}

func TestRingWraparound(t *testing.T) {
	const capacity = 64
	r := newTestRing(t, capacity)

	rng := rand.New(rand.NewSource(1))
	payload := make([]byte, 1024)
	rng.Read(payload)

	var received bytes.Buffer
	chunk := 17
	for off := 0; off < len(payload); {
		end := off + chunk
		if end > len(payload) {
			end = len(payload)
		}
		src := payload[off:end]
		written := 0
		for written < len(src) {
			n := r.push(src[written:])
			if n == 0 {
				// drain before retrying, ring capacity is much smaller
				// than the chunk in flight.
				out := make([]byte, capacity)
				m := r.pop(out)
				received.Write(out[:m])
				continue
			}
			written += n
		}
		off = end
	}
	// Drain whatever remains.
	for r.readable() > 0 {
		out := make([]byte, capacity)
		m := r.pop(out)
		received.Write(out[:m])
	}

	if !bytes.Equal(received.Bytes(), payload) {
		t.Fatalf("wraparound roundtrip mismatch: got %d bytes, want %d", received.Len(), len(payload))
	}
}

func TestRingMultipleOfCapacityPlusRemainder(t *testing.T) {
	const capacity = 16
	for k := 0; k < capacity; k++ {
		total := 3*capacity + k
		r := newTestRing(t, capacity)
		src := make([]byte, total)
		for i := range src {
			src[i] = byte(i)
		}
		var out bytes.Buffer
		written, read := 0, 0
		for read < total {
			if written < total {
				if n := r.push(src[written:]); n > 0 {
					written += n
					continue
				}
			}
			buf := make([]byte, capacity)
			n := r.pop(buf)
			if n == 0 {
				t.Fatalf("k=%d: stalled with written=%d read=%d", k, written, read)
			}
			out.Write(buf[:n])
			read += n
		}
		if !bytes.Equal(out.Bytes(), src) {
			t.Fatalf("k=%d: roundtrip mismatch", k)
		}
	}
}
