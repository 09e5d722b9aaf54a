package xipc

// Write implements spec §4.E.1. A zero-length buffer returns (0, nil)
// with no side effect and no notify. In blocking mode Write only returns
// once the full buffer has been submitted (or the session breaks); in
// non-blocking mode it returns ErrWouldBlock the instant the ring can't
// accept any more bytes.
func (s *Session) Write(buf []byte) (int, error) {
	if s.closed.Load() {
		return 0, newErr("write", s.name, CodeClosed, nil)
	}
	if len(buf) == 0 {
		return 0, nil
	}
	if s.broken.Load() {
		return 0, newErr("write", s.name, CodeBrokenPipe, nil)
	}

	if s.nonblocking.Load() {
		n := s.outRing.push(buf)
		if n == 0 {
			return 0, newErr("write", s.name, CodeWouldBlock, nil)
		}
		if err := s.notifyPeer(); err != nil {
			return n, err
		}
		return n, nil
	}

	total := 0
	for total < len(buf) {
		n := s.outRing.push(buf[total:])
		if n > 0 {
			total += n
			if err := s.notifyPeer(); err != nil {
				return total, err
			}
			continue
		}
		if err := s.wake.wait(); err != nil {
			return total, s.waitErr("write", err)
		}
	}
	return total, nil
}

// Read implements spec §4.E.2. A zero-length buffer returns (0, nil). A
// blocking Read returns as soon as at least one byte is available, with
// no minimum-read guarantee beyond that.
func (s *Session) Read(buf []byte) (int, error) {
	if s.closed.Load() {
		return 0, newErr("read", s.name, CodeClosed, nil)
	}
	if len(buf) == 0 {
		return 0, nil
	}
	if s.broken.Load() {
		return 0, newErr("read", s.name, CodeBrokenPipe, nil)
	}

	if s.nonblocking.Load() {
		n := s.inRing.pop(buf)
		if n == 0 {
			return 0, newErr("read", s.name, CodeWouldBlock, nil)
		}
		if err := s.notifyPeer(); err != nil {
			return n, err
		}
		return n, nil
	}

	for {
		n := s.inRing.pop(buf)
		if n > 0 {
			if err := s.notifyPeer(); err != nil {
				return n, err
			}
			return n, nil
		}
		if err := s.wake.wait(); err != nil {
			return 0, s.waitErr("read", err)
		}
	}
}

// waitErr classifies a wake.wait() failure: errPeerGone means the peer's
// write end is definitively closed (spec §7's BrokenPipe), anything else
// is an interrupted wait (spec §5).
func (s *Session) waitErr(op string, err error) error {
	if err == errPeerGone {
		s.broken.Store(true)
		return newErr(op, s.name, CodeBrokenPipe, err)
	}
	return newErr(op, s.name, CodeInterrupted, err)
}

// notifyPeer wakes the counterpart after a non-zero transfer and latches
// the session as broken on EPIPE (spec §7): once broken, every subsequent
// operation also reports BrokenPipe.
func (s *Session) notifyPeer() error {
	if err := s.wake.notify(); err != nil {
		s.broken.Store(true)
		return newErr("notify", s.name, CodeBrokenPipe, err)
	}
	return nil
}
