package xipc

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Wire layout of a single ring's header, bit-exact per spec §3.2/§6.2:
// little-endian, cache-line aligned, read_idx and write_idx on distinct
// cache lines to avoid false sharing.
//
//	offset  field        size
//	0       magic        4
//	4       version      4
//	8       capacity     4
//	12      data_offset  4
//	64      read_idx     8  (atomic)
//	128     write_idx    8  (atomic)
//	192     (ring data follows)
type ringHeader struct {
	magic      uint32
	version    uint32
	capacity   uint32
	dataOffset uint32
	_pad0      [48]byte

	readIdx uint64
	_pad1   [56]byte

	writeIdx uint64
	_pad2    [56]byte
}

const (
	magicValue   uint32 = 0x58495043 // "XIPC"
	wireVersion  uint32 = 1
	headerSize          = 192 // unsafe.Sizeof(ringHeader{}), asserted in init
	cacheLineLen        = 64
)

func init() {
	if sz := unsafe.Sizeof(ringHeader{}); sz != headerSize {
		panic(fmt.Sprintf("xipc: ringHeader size is %d, expected %d", sz, headerSize))
	}
	if off := unsafe.Offsetof(ringHeader{}.readIdx); off != 64 {
		panic(fmt.Sprintf("xipc: readIdx offset is %d, expected 64", off))
	}
	if off := unsafe.Offsetof(ringHeader{}.writeIdx); off != 128 {
		panic(fmt.Sprintf("xipc: writeIdx offset is %d, expected 128", off))
	}
}

// headerAt casts the ringHeader view onto raw shared-memory bytes starting
// at off; the returned pointer aliases buf, it does not copy.
func headerAt(buf []byte, off int) *ringHeader {
	return (*ringHeader)(unsafe.Pointer(&buf[off]))
}

func (h *ringHeader) loadReadIdx() uint64  { return atomic.LoadUint64(&h.readIdx) }
func (h *ringHeader) loadWriteIdx() uint64 { return atomic.LoadUint64(&h.writeIdx) }

// storeReadIdx publishes freed space to the producer; must only be called
// by the consumer.
func (h *ringHeader) storeReadIdx(v uint64) { atomic.StoreUint64(&h.readIdx, v) }

// storeWriteIdx publishes newly written bytes to the consumer; must only
// be called by the producer.
func (h *ringHeader) storeWriteIdx(v uint64) { atomic.StoreUint64(&h.writeIdx, v) }

func (h *ringHeader) loadMagic() uint32 { return atomic.LoadUint32(&h.magic) }

// publish writes magic last, under an atomic store, so an Attacher that
// polls loadMagic after mmap never observes a torn header (spec §9 Open
// Question).
func (h *ringHeader) publish(capacity, dataOffset uint32) {
	atomic.StoreUint32(&h.version, wireVersion)
	atomic.StoreUint32(&h.capacity, capacity)
	atomic.StoreUint32(&h.dataOffset, dataOffset)
	atomic.StoreUint64(&h.readIdx, 0)
	atomic.StoreUint64(&h.writeIdx, 0)
	atomic.StoreUint32(&h.magic, magicValue)
}
