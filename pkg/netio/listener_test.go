package netio

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/audiopipe/pkg/packet"
)

func TestListener_RoutesParsedPackets(t *testing.T) {
	received := make(chan *packet.Packet, 1)
	l, err := Listen(Config{ListenAddr: "127.0.0.1:0", Role: packet.RoleAudio, MaxPacketSize: 1500}, func(p *packet.Packet) {
		received <- p
	}, nil)
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Serve(ctx)

	raw, err := packet.Compose(&packet.Packet{
		SourceID:    7,
		Seq:         1,
		Timestamp:   320,
		PayloadType: 0,
		Flags:       packet.FlagAudio,
		Payload:     []byte{1, 2, 3, 4},
	})
	require.NoError(t, err)

	client, err := net.Dial("udp", l.conn.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()
	_, err = client.Write(raw)
	require.NoError(t, err)

	select {
	case p := <-received:
		assert.Equal(t, uint32(7), p.SourceID)
		assert.Equal(t, uint16(1), p.Seq)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for routed packet")
	}
}
