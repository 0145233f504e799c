//go:build windows
// +build windows

package entrypoint

import "github.com/mousetube/mousetube-go/internal/errors"

// execImpl has no execve equivalent on Windows, the proxy image is
// Linux only.
func execImpl(argv []string) error {
	return errors.Newf("replacing the process with %s is not supported on windows", argv[0]).
		Component("entrypoint").
		Category(errors.CategorySystem).
		Build()
}
