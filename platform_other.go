//go:build !unix

package featprobe

import "runtime"

// Platform describes the running system, e.g. "windows/amd64".
// The kernel release is only reported on unix platforms.
func Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}
