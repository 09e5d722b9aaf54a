package xipc

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// errPeerGone is wait()'s internal signal that the peer's write end of
// our own wakeup pipe is definitively closed, distinguishing real peer
// death from the transient "nobody has opened the other end yet" state a
// freshly-opened FIFO is also in (see the design note on wakeupChannel).
var errPeerGone = errors.New("xipc: peer wakeup pipe closed")

// wakeupChannel wraps a pair of named pipes into a condition-variable-like
// primitive (spec §4.C). readFD is this peer's own wakeup pipe, opened
// eagerly and read-only: a FIFO opened O_RDONLY|O_NONBLOCK never blocks,
// regardless of whether a writer exists yet.
//
// The write side (writePath, the peer's incoming pipe) is opened
// write-only and lazily, on first use: until the peer has opened its own
// read end, O_WRONLY|O_NONBLOCK fails with ENXIO rather than blocking.
// Opening each side purely one-directional (rather than the O_RDWR trick
// spec §4.D.1 mentions as one option) is deliberate: on Linux, a process
// that holds a FIFO open O_RDWR is always its own reader and its own
// writer, so it can never observe EPIPE or EOF on that handle no matter
// what the peer does — which would make spec §7/§8.3's BrokenPipe
// detection unobservable. Keeping each end strictly one-directional
// preserves that detection while still meeting §4.C/§9's "neither open
// blocks" requirement via the lazy, non-blocking write-side open.
type wakeupChannel struct {
	readFD int

	writePath string
	mu        sync.Mutex
	writeFD   int
	haveWrite bool

	// readerSawWriter is set only once a real byte has actually been read
	// from readFD — i.e. once the peer has genuinely written to *our*
	// pipe. It is deliberately independent of writeFD/haveWrite above,
	// which track the unrelated direction (us writing to the peer's
	// pipe): that direction opening successfully says only that the peer
	// has opened its own read end, not that anyone has written to ours.
	readerSawWriter atomic.Bool
}

func newWakeupChannel(readFD int, writePath string) *wakeupChannel {
	return &wakeupChannel{readFD: readFD, writePath: writePath, writeFD: -1}
}

// ensureWriteFD performs a single non-blocking attempt to open the peer's
// pipe for writing, never sleeping or retrying — so callers that must
// not block (notify) can treat ENXIO as "peer not listening yet" and
// move on.
func (w *wakeupChannel) ensureWriteFD() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.haveWrite {
		return w.writeFD, nil
	}
	fd, err := unix.Open(w.writePath, unix.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return -1, err
	}
	w.writeFD = fd
	w.haveWrite = true
	return fd, nil
}

// notify attempts to write one byte to the peer's pipe without blocking
// (spec §4.C). If the peer hasn't opened its read end yet, the notify is
// silently skipped — harmless, since a peer that was never listening
// can't have missed a wakeup it never needed (its next read/write
// attempt observes the ring state directly). If the pipe already holds a
// pending byte (EAGAIN), that's also swallowed: the peer is already
// going to wake up. EPIPE after a connection was once established means
// the peer's read end is gone for good.
func (w *wakeupChannel) notify() error {
	fd, err := w.ensureWriteFD()
	if err != nil {
		if err == unix.ENXIO {
			return nil
		}
		return err
	}

	var b [1]byte
	for {
		_, err := unix.Write(fd, b[:])
		switch err {
		case nil, unix.EAGAIN:
			return nil
		case unix.EINTR:
			continue
		case unix.EPIPE:
			return ErrBrokenPipe
		default:
			return err
		}
	}
}

// wait blocks until at least one byte is available on this peer's own
// pipe, then drains up to 8 bytes so repeated notifies don't accumulate.
// A signal delivered to this thread interrupts the poll and is retried
// transparently (spec §5's cancellation contract — EINTR never escapes).
func (w *wakeupChannel) wait() error {
	fds := []unix.PollFd{{Fd: int32(w.readFD), Events: unix.POLLIN}}
	for {
		_, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}

		var buf [8]byte
		n, err := unix.Read(w.readFD, buf[:])
		switch {
		case err == nil && n > 0:
			w.readerSawWriter.Store(true)
			return nil
		case err == nil && n == 0:
			// EOF on readFD: either no writer has ever attached to *this*
			// pipe yet (transient, pre-pairing) or a writer that was
			// attached is gone for good. Only the latter is fatal, and
			// only readerSawWriter (set above, from this same readFD)
			// distinguishes the two — it must never be inferred from
			// ensureWriteFD's unrelated write-path success.
			if w.readerSawWriter.Load() {
				return errPeerGone
			}
			time.Sleep(time.Millisecond)
			continue
		case err == unix.EAGAIN:
			continue // spurious readiness, re-poll
		case err == unix.EINTR:
			continue
		default:
			return err
		}
	}
}

// readableFD exposes the read end for external readiness multiplexers
// (spec §4.E.4's event_fd).
func (w *wakeupChannel) readableFD() int {
	return w.readFD
}

func (w *wakeupChannel) close() {
	unix.Close(w.readFD)
	w.mu.Lock()
	if w.haveWrite {
		unix.Close(w.writeFD)
	}
	w.mu.Unlock()
}
