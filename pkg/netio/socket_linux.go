//go:build linux

package netio

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// applySocketOptions tunes conn for low-latency voice traffic on Linux:
// SO_REUSEPORT for multi-socket listeners, SO_PRIORITY for interactive
// audio, and DSCP marking for QoS-aware networks. Adapted from the
// teacher's transport_socket_linux.go, retargeted at net.UDPConn instead
// of a raw fd.
func applySocketOptions(conn *net.UDPConn, cfg Config) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	err = raw.Control(func(fd uintptr) {
		if cfg.ReusePort {
			if e := syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, unix.SO_REUSEPORT, 1); e != nil {
				sockErr = e
				return
			}
		}

		// High priority for interactive audio (value 6, per the Linux
		// SO_PRIORITY convention for VoIP-class traffic).
		syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, unix.SO_PRIORITY, 6)

		if cfg.DSCP > 0 {
			tos := cfg.DSCP << 2
			syscall.SetsockoptInt(int(fd), syscall.IPPROTO_IP, syscall.IP_TOS, tos)
			syscall.SetsockoptInt(int(fd), syscall.IPPROTO_IPV6, unix.IPV6_TCLASS, tos)
		}

		// Precise arrival timestamps, useful for jitter measurement.
		syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, unix.SO_TIMESTAMP, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
