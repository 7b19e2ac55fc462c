//go:build windows

package netio

import (
	"net"
	"syscall"
)

// applySocketOptions mirrors socket_linux.go's intent on Windows, which
// supports only SO_REUSEADDR (no SO_REUSEPORT, no SO_PRIORITY). Adapted
// from the teacher's transport_socket_windows.go.
func applySocketOptions(conn *net.UDPConn, cfg Config) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	err = raw.Control(func(fd uintptr) {
		if e := syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); e != nil {
			sockErr = e
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}
