//go:build darwin

package netio

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// applySocketOptions mirrors socket_linux.go's intent on macOS, which
// lacks SO_PRIORITY and has weaker SO_REUSEPORT support. Adapted from the
// teacher's transport_socket_darwin.go.
func applySocketOptions(conn *net.UDPConn, cfg Config) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	err = raw.Control(func(fd uintptr) {
		if e := syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); e != nil {
			sockErr = e
			return
		}
		if cfg.ReusePort {
			// Best-effort; older macOS releases may reject this.
			syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, unix.SO_REUSEPORT, 1)
		}
		if cfg.DSCP > 0 {
			tos := cfg.DSCP << 2
			syscall.SetsockoptInt(int(fd), syscall.IPPROTO_IP, syscall.IP_TOS, tos)
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}
