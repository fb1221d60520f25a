//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package http

import "syscall"

func listenControl(reusePort bool) (func(network, address string, c syscall.RawConn) error, error) {
	if reusePort {
		return nil, ErrReusePortNotSupported
	}
	return nil, nil
}
