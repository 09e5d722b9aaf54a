package xipc

import (
	"errors"
	"testing"
)

func withTempDir(t *testing.T) {
	t.Helper()
	t.Setenv("XIPC_DIR", t.TempDir())
}

func TestOpenRejectsNonPowerOfTwoCapacity(t *testing.T) {
	withTempDir(t)
	_, err := Open("s1", 100, FlagCreate)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestAttachWithoutCreatorIsNotFound(t *testing.T) {
	withTempDir(t)
	_, err := Open("missing", 0, 0)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentCreatorsOneWins(t *testing.T) {
	withTempDir(t)
	s1, err := Open("dup", 4096, FlagCreate)
	if err != nil {
		t.Fatalf("first creator: %v", err)
	}
	defer s1.Close(UnlinkResources)

	_, err = Open("dup", 4096, FlagCreate)
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("second creator err = %v, want ErrAlreadyExists", err)
	}
}

func TestCloseIsIdempotentAndErrorsOnReuse(t *testing.T) {
	withTempDir(t)
	s, err := Open("closeme", 4096, FlagCreate)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Close(UnlinkResources); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := s.Close(UnlinkResources); !errors.Is(err, ErrClosed) {
		t.Fatalf("second close err = %v, want ErrClosed", err)
	}
}

func TestClosedSessionRejectsOps(t *testing.T) {
	withTempDir(t)
	s, err := Open("closed-ops", 4096, FlagCreate)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Close(UnlinkResources)

	if _, err := s.Write([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("write after close err = %v, want ErrClosed", err)
	}
	if _, err := s.Read(make([]byte, 1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("read after close err = %v, want ErrClosed", err)
	}
}

func openPair(t *testing.T, name string, capacity uint32) (creator, attacher *Session) {
	t.Helper()
	c, err := Open(name, capacity, FlagCreate)
	if err != nil {
		t.Fatalf("open creator: %v", err)
	}
	a, err := Open(name, 0, 0)
	if err != nil {
		c.Close(UnlinkResources)
		t.Fatalf("open attacher: %v", err)
	}
	t.Cleanup(func() {
		a.Close(KeepResources)
		c.Close(UnlinkResources)
	})
	return c, a
}

func TestSmallEcho(t *testing.T) {
	// spec §8.3 scenario 1.
	withTempDir(t)
	creator, attacher := openPair(t, "echo", 4096)

	n, err := attacher.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("attacher.Write = (%d, %v)", n, err)
	}

	buf := make([]byte, 16)
	n, err = creator.Read(buf)
	if err != nil || n != 5 {
		t.Fatalf("creator.Read = (%d, %v)", n, err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("got %q, want hello", buf[:n])
	}
}

func TestNonBlockingWouldBlock(t *testing.T) {
	withTempDir(t)
	creator, attacher := openPair(t, "wouldblock", 8)
	attacher.SetNonblock(true)

	n, err := attacher.Write(make([]byte, 8))
	if err != nil || n != 8 {
		t.Fatalf("fill write = (%d, %v)", n, err)
	}
	_, err = attacher.Write([]byte{1})
	if !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock, got %v", err)
	}

	creator.SetNonblock(true)
	if _, err := creator.Read(make([]byte, 0)); err != nil {
		t.Fatalf("zero-length read should not error: %v", err)
	}
	if n := creator.ReadableBytes(); n != 8 {
		t.Fatalf("ReadableBytes = %d, want 8", n)
	}
}

func TestZeroLengthOpsAreNoops(t *testing.T) {
	withTempDir(t)
	creator, attacher := openPair(t, "zerolen", 64)

	n, err := attacher.Write(nil)
	if n != 0 || err != nil {
		t.Fatalf("zero write = (%d, %v)", n, err)
	}
	n, err = creator.Read(nil)
	if n != 0 || err != nil {
		t.Fatalf("zero read = (%d, %v)", n, err)
	}
	if creator.ReadableBytes() != 0 {
		t.Fatalf("zero-length ops must not notify or transfer data")
	}
}
