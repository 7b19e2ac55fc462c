// Package netio implements the UDP ingress side of the network thread
// class (spec.md section 5): blocking recv, parse, route by source_id.
package netio

import (
	"context"
	"net"
	"time"

	"github.com/arzzra/audiopipe/pkg/errs"
	"github.com/arzzra/audiopipe/pkg/logging"
	"github.com/arzzra/audiopipe/pkg/packet"
	"github.com/arzzra/audiopipe/pkg/slab"
)

// Listener is one network thread's UDP socket: it blocks in recv, parses
// each datagram into a packet.Packet, and hands it to Route. It never
// touches the pipeline thread's state directly (spec.md section 5).
type Listener struct {
	conn     *net.UDPConn
	role     packet.Role
	slab     *slab.PacketSlab
	logger   logging.Logger
	route    func(*packet.Packet)
	maxPacketSize int
}

// Role re-exports packet.Role so callers only need this package's import.
type Role = packet.Role

// Config describes one ingress socket.
type Config struct {
	ListenAddr    string
	Role          packet.Role
	MaxPacketSize int
	ReusePort     bool
	DSCP          int
}

// Listen opens a UDP socket per cfg and applies the platform-specific
// socket tuning from applySocketOptions (grounded on the teacher's
// transport_socket_linux.go).
func Listen(cfg Config, route func(*packet.Packet), logger logging.Logger) (*Listener, error) {
	if logger == nil {
		logger = logging.NoOp{}
	}
	addr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr)
	if err != nil {
		return nil, errs.InvalidConfig("netio: bad listen address: " + err.Error())
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, errs.InvalidConfig("netio: listen failed: " + err.Error())
	}
	if err := applySocketOptions(conn, cfg); err != nil {
		logger.LogError(context.Background(), err, "socket tuning failed, continuing with defaults")
	}

	maxPacketSize := cfg.MaxPacketSize
	if maxPacketSize <= 0 {
		maxPacketSize = 1500
	}

	return &Listener{
		conn:          conn,
		role:          cfg.Role,
		slab:          slab.NewPacketSlab(maxPacketSize),
		logger:        logger,
		route:         route,
		maxPacketSize: maxPacketSize,
	}, nil
}

// Serve blocks reading datagrams until ctx is cancelled or the socket is
// closed. It is the entire body of one network thread.
func (l *Listener) Serve(ctx context.Context) {
	go func() {
		<-ctx.Done()
		l.conn.Close()
	}()

	for {
		buf := l.slab.Get(l.maxPacketSize)
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			l.logger.LogError(ctx, err, "udp read failed")
			return
		}

		p, err := packet.Parse(buf[:n], l.role, time.Now())
		if err != nil {
			l.logger.LogError(ctx, err, "dropping malformed packet")
			l.slab.Put(buf)
			continue
		}
		l.route(p)
	}
}

func (l *Listener) Close() error { return l.conn.Close() }
