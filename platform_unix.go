//go:build unix

package featprobe

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// Platform describes the running system, e.g. "linux/amd64 (6.1.0-generic)".
func Platform() string {
	base := runtime.GOOS + "/" + runtime.GOARCH
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return base
	}
	return base + " (" + unix.ByteSliceToString(uname.Release[:]) + ")"
}
