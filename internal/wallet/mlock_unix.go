//go:build !windows

package wallet

import "golang.org/x/sys/unix"

func mlock(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return unix.Mlock(data) == nil
}

func munlock(data []byte) {
	if len(data) > 0 {
		_ = unix.Munlock(data)
	}
}
