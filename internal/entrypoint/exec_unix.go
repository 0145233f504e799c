//go:build !windows
// +build !windows

package entrypoint

import (
	"os"
	"os/exec"
	"syscall"
)

// execImpl replaces the current process via execve, resolving the
// binary through PATH.
func execImpl(argv []string) error {
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return err
	}
	return syscall.Exec(path, argv, os.Environ())
}
