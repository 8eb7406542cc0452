//go:build windows

package ytuploader

import "os"

// pidAlive relies on FindProcess opening a handle, which fails for a pid
// that no longer exists.
func pidAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}
