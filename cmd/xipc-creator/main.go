// Command xipc-creator provisions a named session and serves its
// control-plane handshake so xipc-attacher instances can join it.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/AlephTX/xipc/control"
	"github.com/AlephTX/xipc/xipc"
	"github.com/AlephTX/xipc/xipcconfig"
)

func main() {
	log.Println("xipc-creator starting")

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

	sessionName := "md"
	if n := os.Getenv("XIPC_SESSION"); n != "" {
		sessionName = n
	}
	sc, ok := cfg.Sessions[sessionName]
	if !ok {
		log.Fatalf("config: no [sessions.%s] entry", sessionName)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	session, err := xipc.Open(sessionName, sc.Capacity, xipc.FlagCreate)
	if err != nil {
		log.Fatalf("xipc open: %v", err)
	}
	defer session.Close(xipc.UnlinkResources)

	socketPath := cfg.ControlSocket
	if socketPath == "" {
		socketPath = "/tmp/xipc-control.sock"
	}
	listener, err := control.NewListener(socketPath, control.Announcement{
		SessionName: sessionName,
		Capacity:    sc.Capacity,
	})
	if err != nil {
		log.Fatalf("control listener: %v", err)
	}
	defer listener.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := listener.Serve(ctx); err != nil {
			log.Printf("control: serve: %v", err)
		}
	}()

	log.Printf("xipc-creator: session %q ready, capacity=%d, control socket %s",
		sessionName, sc.Capacity, socketPath)

	runEchoLoop(ctx, session)
	wg.Wait()
	log.Println("xipc-creator stopped")
}

// runEchoLoop reads whatever an Attacher writes and echoes it back,
// enough to exercise the data path end to end from a standalone binary.
func runEchoLoop(ctx context.Context, session *xipc.Session) {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := session.Read(buf)
		if err != nil {
			if isRecoverable(err) {
				continue
			}
			log.Printf("xipc-creator: read: %v", err)
			return
		}
		if _, err := session.Write(buf[:n]); err != nil && !isRecoverable(err) {
			log.Printf("xipc-creator: write: %v", err)
			return
		}
	}
}

func isRecoverable(err error) bool {
	code := xipc.CodeOf(err)
	return code == xipc.CodeWouldBlock || code == xipc.CodeInterrupted
}
