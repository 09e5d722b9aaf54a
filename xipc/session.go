package xipc

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Role identifies which peer a Session represents (spec §3.1).
type Role int

const (
	RoleCreator Role = iota
	RoleAttacher
)

func (r Role) String() string {
	if r == RoleCreator {
		return "creator"
	}
	return "attacher"
}

// OpenFlag is the flag set accepted by Open (spec §4.D.1).
type OpenFlag uint8

const (
	// FlagCreate selects the Creator role: provision the SHM object and
	// pipes. Without it, Open attaches to an existing session.
	FlagCreate OpenFlag = 1 << iota
	// FlagNonblock starts the session in non-blocking mode.
	FlagNonblock
)

// UnlinkPolicy controls whether Close removes the underlying filesystem
// objects (spec §4.D.2). Only a Creator's UnlinkResources actually
// unlinks; an Attacher's Close never does, regardless of policy.
type UnlinkPolicy int

const (
	KeepResources UnlinkPolicy = iota
	UnlinkResources
)

// Session is a single process's view of one XIPC connection: two rings
// (one this peer produces into, one it consumes from) sharing a single
// wakeup pipe pair (spec §2 full-duplex topology).
type Session struct {
	name     string
	role     Role
	capacity uint32

	shmData []byte

	outRing *ring // this peer's producer side
	inRing  *ring // this peer's consumer side
	wake    *wakeupChannel

	nonblocking atomic.Bool
	broken      atomic.Bool
	closed      atomic.Bool
}

// Open creates or attaches to the named session (spec §4.D.1).
func Open(name string, capacity uint32, flags OpenFlag) (*Session, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if flags&FlagCreate != 0 {
		if !isPowerOfTwo(capacity) {
			return nil, newErr("open", name, CodeInvalidArgument,
				fmt.Errorf("capacity %d is not a power of two", capacity))
		}
		return openCreator(name, capacity, flags&FlagNonblock != 0)
	}
	return openAttacher(name, flags&FlagNonblock != 0)
}

func mapErrno(op, name string, err error) error {
	switch err {
	case unix.ENOENT:
		return newErr(op, name, CodeNotFound, err)
	case unix.EEXIST:
		return newErr(op, name, CodeAlreadyExists, err)
	case unix.EACCES, unix.EPERM:
		return newErr(op, name, CodePermissionDenied, err)
	case unix.ENOMEM, unix.ENOSPC, unix.EMFILE, unix.ENFILE:
		return newErr(op, name, CodeResourceExhausted, err)
	default:
		return newErr(op, name, CodeResourceExhausted, err)
	}
}

func openCreator(name string, capacity uint32, nonblocking bool) (*Session, error) {
	if err := os.MkdirAll(baseDir(), 0700); err != nil {
		return nil, newErr("open", name, CodeResourceExhausted, err)
	}

	shmFD, err := unix.Open(shmPath(name), unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, 0600)
	if err != nil {
		return nil, mapErrno("open", name, err)
	}

	ringSize := headerSize + int(capacity)
	total := 2 * ringSize

	if err := unix.Ftruncate(shmFD, int64(total)); err != nil {
		unix.Close(shmFD)
		unix.Unlink(shmPath(name))
		return nil, mapErrno("open", name, err)
	}

	data, err := unix.Mmap(shmFD, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	unix.Close(shmFD)
	if err != nil {
		unix.Unlink(shmPath(name))
		return nil, mapErrno("open", name, err)
	}

	hdrA := headerAt(data, 0)
	hdrB := headerAt(data, ringSize)
	hdrA.publish(capacity, uint32(headerSize))
	hdrB.publish(capacity, uint32(headerSize))

	if err := unix.Mkfifo(pipePathS2C(name), 0600); err != nil && err != unix.EEXIST {
		unix.Munmap(data)
		unix.Unlink(shmPath(name))
		return nil, mapErrno("open", name, err)
	}
	if err := unix.Mkfifo(pipePathC2S(name), 0600); err != nil && err != unix.EEXIST {
		unix.Munmap(data)
		unix.Unlink(shmPath(name))
		return nil, mapErrno("open", name, err)
	}

	// The Creator eagerly opens its own incoming pipe (C2S) read-only,
	// which never blocks regardless of whether the Attacher has shown up
	// yet. Its outgoing pipe (S2C) is opened lazily by the wakeupChannel,
	// once an Attacher has actually opened the other end for reading
	// (spec §4.C, §9; see the design note on wakeupChannel).
	c2sFD, err := unix.Open(pipePathC2S(name), unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		unix.Munmap(data)
		unix.Unlink(shmPath(name))
		return nil, mapErrno("open", name, err)
	}

	ringA := newRing(hdrA, data[headerSize:headerSize+int(capacity)])
	ringB := newRing(hdrB, data[ringSize+headerSize:ringSize+headerSize+int(capacity)])

	s := &Session{
		name:     name,
		role:     RoleCreator,
		capacity: capacity,
		shmData:  data,
		outRing:  ringA, // S2C: creator produces
		inRing:   ringB, // C2S: creator consumes
		wake:     newWakeupChannel(c2sFD, pipePathS2C(name)),
	}
	s.nonblocking.Store(nonblocking)
	return s, nil
}

func openAttacher(name string, nonblocking bool) (*Session, error) {
	shmFD, err := unix.Open(shmPath(name), unix.O_RDWR, 0)
	if err != nil {
		return nil, mapErrno("open", name, err)
	}

	var stat unix.Stat_t
	if err := unix.Fstat(shmFD, &stat); err != nil {
		unix.Close(shmFD)
		return nil, mapErrno("open", name, err)
	}

	data, err := unix.Mmap(shmFD, 0, int(stat.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	unix.Close(shmFD)
	if err != nil {
		return nil, mapErrno("open", name, err)
	}

	hdrA := headerAt(data, 0)
	if !pollMagic(hdrA) {
		unix.Munmap(data)
		return nil, newErr("open", name, CodeMalformed, fmt.Errorf("bad magic"))
	}
	if hdrA.version != wireVersion {
		unix.Munmap(data)
		return nil, newErr("open", name, CodeMalformed, fmt.Errorf("unsupported version %d", hdrA.version))
	}

	capacity := hdrA.capacity
	ringSize := headerSize + int(capacity)
	if len(data) < 2*ringSize {
		unix.Munmap(data)
		return nil, newErr("open", name, CodeMalformed, fmt.Errorf("shm segment too small"))
	}

	hdrB := headerAt(data, ringSize)
	if hdrB.loadMagic() != magicValue || hdrB.version != wireVersion {
		unix.Munmap(data)
		return nil, newErr("open", name, CodeMalformed, fmt.Errorf("bad secondary header"))
	}

	s2cFD, err := unix.Open(pipePathS2C(name), unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		unix.Munmap(data)
		return nil, mapErrno("open", name, err)
	}

	ringA := newRing(hdrA, data[headerSize:headerSize+int(capacity)])
	ringB := newRing(hdrB, data[ringSize+headerSize:ringSize+headerSize+int(capacity)])

	s := &Session{
		name:     name,
		role:     RoleAttacher,
		capacity: capacity,
		shmData:  data,
		outRing:  ringB, // C2S: attacher produces
		inRing:   ringA, // S2C: attacher consumes
		wake:     newWakeupChannel(s2cFD, pipePathC2S(name)),
	}
	s.nonblocking.Store(nonblocking)
	return s, nil
}

// pollMagic tolerates the narrow window between the Creator's ftruncate
// and its header write (spec §9 Open Question): it retries a bounded
// number of times before giving up.
func pollMagic(h *ringHeader) bool {
	const attempts = 50
	for i := 0; i < attempts; i++ {
		if h.loadMagic() == magicValue {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return h.loadMagic() == magicValue
}

// Role reports whether this session is the Creator or the Attacher.
func (s *Session) Role() Role { return s.role }

// Name returns the session's name.
func (s *Session) Name() string { return s.name }

// Capacity returns the ring capacity in bytes.
func (s *Session) Capacity() uint32 { return s.capacity }

// SetNonblock toggles non-blocking mode (spec §4.D.3); it takes effect on
// the next Read/Write call.
func (s *Session) SetNonblock(nonblock bool) {
	s.nonblocking.Store(nonblock)
}

// EventFD returns the fd usable with an external readiness multiplexer
// (spec §4.E.4); it is shared by both read and write readiness.
func (s *Session) EventFD() int {
	return s.wake.readableFD()
}

// ReadableBytes returns a snapshot of bytes available to Read, a hint
// only (spec §4.E).
func (s *Session) ReadableBytes() int {
	return int(s.inRing.readable())
}

// WritableBytes returns a snapshot of free space available to Write, a
// hint only (spec §4.E).
func (s *Session) WritableBytes() int {
	return int(s.outRing.writable())
}

// Close unmaps the shared memory and closes this peer's descriptors
// (spec §4.D.2). A Creator with UnlinkResources also removes the SHM
// object and both pipes; an Attacher never unlinks regardless of policy.
func (s *Session) Close(policy UnlinkPolicy) error {
	if !s.closed.CompareAndSwap(false, true) {
		return newErr("close", s.name, CodeClosed, nil)
	}

	unix.Munmap(s.shmData)
	s.wake.close()

	if policy == UnlinkResources && s.role == RoleCreator {
		unix.Unlink(shmPath(s.name))
		unix.Unlink(pipePathS2C(s.name))
		unix.Unlink(pipePathC2S(s.name))
	}
	return nil
}
