package xipc

import "testing"

func TestHeaderLayoutOffsets(t *testing.T) {
	buf := make([]byte, headerSize)
	h := headerAt(buf, 0)
	h.publish(4096, uint32(headerSize))

	if got := h.loadMagic(); got != magicValue {
		t.Fatalf("magic = %#x, want %#x", got, magicValue)
	}
	if h.version != wireVersion {
		t.Fatalf("version = %d, want %d", h.version, wireVersion)
	}
	if h.capacity != 4096 {
		t.Fatalf("capacity = %d, want 4096", h.capacity)
	}
	if h.dataOffset != uint32(headerSize) {
		t.Fatalf("dataOffset = %d, want %d", h.dataOffset, headerSize)
	}
	if h.loadReadIdx() != 0 || h.loadWriteIdx() != 0 {
		t.Fatalf("indices should start at 0")
	}

	// Verify the wire offsets directly against the raw bytes, since other
	// implementations on the peer side read this layout bit-exact.
	if got := le32(buf[0:4]); got != magicValue {
		t.Fatalf("byte-level magic = %#x", got)
	}
	if got := le32(buf[4:8]); got != wireVersion {
		t.Fatalf("byte-level version = %d", got)
	}
	if got := le32(buf[8:12]); got != 4096 {
		t.Fatalf("byte-level capacity = %d", got)
	}
	if got := le32(buf[12:16]); got != uint32(headerSize) {
		t.Fatalf("byte-level data_offset = %d", got)
	}
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
