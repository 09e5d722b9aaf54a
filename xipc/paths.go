package xipc

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultBaseDir = "/dev/shm/xipc"

// baseDir returns the directory holding SHM and pipe objects, overridable
// via XIPC_DIR (spec §6.1 names the scheme only in outline; the concrete
// directory is this repository's choice).
func baseDir() string {
	if v := os.Getenv("XIPC_DIR"); v != "" {
		return v
	}
	return defaultBaseDir
}

func shmPath(name string) string {
	return filepath.Join(baseDir(), "ipc_"+name+".shm")
}

func pipePathS2C(name string) string {
	return filepath.Join(baseDir(), "ipc_"+name+"_s2c")
}

func pipePathC2S(name string) string {
	return filepath.Join(baseDir(), "ipc_"+name+"_c2s")
}

// validateName enforces spec §4.D.1: non-empty, <=63 chars, printable, no
// path separators.
func validateName(name string) error {
	if name == "" || len(name) > 63 {
		return newErr("open", name, CodeInvalidArgument, nil)
	}
	if strings.ContainsAny(name, "/\\") {
		return newErr("open", name, CodeInvalidArgument, nil)
	}
	for _, r := range name {
		if r < 0x20 || r > 0x7e {
			return newErr("open", name, CodeInvalidArgument, nil)
		}
	}
	return nil
}

func isPowerOfTwo(n uint32) bool {
	return n >= 2 && n&(n-1) == 0
}
