// Command xipc-attacher dials a running xipc-creator's control socket,
// attaches to the announced session, and exercises it by writing lines
// from stdin and printing whatever comes back.
package main

import (
	"bufio"
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlephTX/xipc/control"
	"github.com/AlephTX/xipc/xipc"
	"github.com/AlephTX/xipc/xipcconfig"
)

func main() {
	log.Println("xipc-attacher starting")

	cfgPath := "config.toml"
	if p := os.Getenv("XIPC_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := xipcconfig.LoadWithEnvOverlay(cfgPath, xipcconfig.DefaultEnvPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Dir != "" {
		os.Setenv("XIPC_DIR", cfg.Dir)
	}

	socketPath := cfg.ControlSocket
	if socketPath == "" {
		socketPath = "/tmp/xipc-control.sock"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ann, err := control.Dial(ctx, socketPath)
	if err != nil {
		log.Fatalf("control dial: %v", err)
	}
	log.Printf("xipc-attacher: announced session %q, capacity=%d", ann.SessionName, ann.Capacity)

	session, err := xipc.Open(ann.SessionName, 0, 0)
	if err != nil {
		log.Fatalf("xipc open: %v", err)
	}
	defer session.Close(xipc.KeepResources)

	scanner := bufio.NewScanner(os.Stdin)
	readBuf := make([]byte, 4096)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := append(scanner.Bytes(), '\n')
		if _, err := writeAll(session, line); err != nil {
			log.Printf("xipc-attacher: write: %v", err)
			return
		}

		n, err := readWithTimeout(session, readBuf, 2*time.Second)
		if err != nil {
			log.Printf("xipc-attacher: read: %v", err)
			return
		}
		os.Stdout.Write(readBuf[:n])
	}
}

func writeAll(session *xipc.Session, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := session.Write(buf[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// readWithTimeout runs a blocking Read in a goroutine and gives up with
// ErrWouldBlock after timeout, so a misbehaving creator can't hang the CLI
// forever. It does not poll the session's event fd.
func readWithTimeout(session *xipc.Session, buf []byte, timeout time.Duration) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := session.Read(buf)
		done <- result{n, err}
	}()

	select {
	case r := <-done:
		return r.n, r.err
	case <-time.After(timeout):
		return 0, xipc.ErrWouldBlock
	}
}
