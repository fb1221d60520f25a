//go:build linux || darwin || freebsd || netbsd || openbsd

package http

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func listenControl(reusePort bool) (func(network, address string, c syscall.RawConn) error, error) {
	if !reusePort {
		return nil, nil
	}

	return func(network, address string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
		})
		if err != nil {
			return err
		}
		return sockErr
	}, nil
}
