package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cbx/sanchez/wire"
)

func TestTCPRoundTrip(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := ListenTCP(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	addr := ln.Addr()

	accepted := make(chan Transport, 1)
	go func() {
		conn, err := ln.Accept()
		require.NoError(t, err)
		accepted <- conn
	}()

	client, err := DialTCP(ctx, addr)
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	defer server.Close()

	pkt := wire.Encode(wire.TypeSync, 7, 1234, []byte("hello"))
	require.NoError(t, server.Send(pkt))

	got, err := client.Recv()
	require.NoError(t, err)
	require.Equal(t, pkt, got)
}

func TestTCPCloseOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	ln, err := ListenTCP(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	addr := ln.Addr()

	client, err := DialTCP(ctx, addr)
	require.NoError(t, err)

	cancel()

	_, err = client.Recv()
	require.Error(t, err)
}

func TestUDPUnicastRoundTrip(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recv, err := ListenUDPUnicast(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	defer recv.Close()

	send, err := DialUDPUnicast(ctx, recv.RemoteAddr())
	require.NoError(t, err)
	defer send.Close()

	pkt := wire.Encode(wire.TypeFrameChunk, 1, 0, []byte("chunk-data"))
	require.NoError(t, send.Send(pkt))

	done := make(chan struct{})
	var got []byte
	go func() {
		got, err = recv.Recv()
		close(done)
	}()

	select {
	case <-done:
		require.NoError(t, err)
		require.Equal(t, pkt, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for udp datagram")
	}
}
