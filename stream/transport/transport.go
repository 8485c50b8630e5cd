// Package transport implements the small capability set the stream server
// and client are generic over: Send a whole encoded packet, Recv the next
// one, and Close the underlying socket or connection. Four
// concrete transports back it: TCP unicast, UDP unicast, UDP multicast, and
// UDP broadcast.
package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/cbx/sanchez/internal/errs"
	"github.com/cbx/sanchez/wire"
)

// Transport is the capability set the stream server and client depend on.
// Implementations are not safe for concurrent Send/Recv from multiple
// goroutines on the same Transport value.
type Transport interface {
	// Send writes one fully wire-encoded packet.
	Send(pkt []byte) error
	// Recv blocks for the next fully wire-encoded packet.
	Recv() ([]byte, error)
	// Close releases the underlying socket or connection.
	Close() error
	// RemoteAddr describes the peer, for logging.
	RemoteAddr() string
}

// Listener accepts new TCP sessions. UDP transports have no listener: each
// one is a single session with a single emission path and no per-receiver
// state.
type Listener interface {
	Accept() (Transport, error)
	Close() error
	// Addr returns the listener's bound local address, e.g. for a client
	// to dial back after binding to an ephemeral port.
	Addr() string
}

// maxUDPPacket bounds a single UDP read. It comfortably covers both the
// unicast default chunk size (~8 KiB) and satellite mode's 1400-byte
// chunks plus header/CRC overhead.
const maxUDPPacket = 65536

// wrapClosed turns the net package's own "use of closed connection" error
// into errs.ErrTransportClosed, so callers can branch with errors.Is instead
// of matching on net.ErrClosed directly. Other errors, including io.EOF from
// a peer that closed its end, are returned unchanged.
func wrapClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %v", errs.ErrTransportClosed, err)
	}
	return err
}

// watchCancel closes c when ctx is done, unblocking any in-flight Read or
// Write, mirroring the ingest SRT server's accept-loop cancellation
// (ingest/srt/server.go: "go func() { <-ctx.Done(); l.Close() }()").
func watchCancel(ctx context.Context, c io.Closer) {
	go func() {
		<-ctx.Done()
		c.Close()
	}()
}

// --- TCP ---

type tcpTransport struct {
	conn net.Conn
}

// DialTCP connects to addr for TCP unicast streaming. The connection is
// closed automatically if ctx is cancelled.
func DialTCP(ctx context.Context, addr string) (Transport, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("sanchez: tcp dial %s: %w", addr, err)
	}
	watchCancel(ctx, conn)
	return &tcpTransport{conn: conn}, nil
}

type tcpListener struct {
	ctx context.Context
	ln  net.Listener
}

// ListenTCP starts a TCP listener for the stream server's accept loop.
// Each accepted connection becomes an independent Transport, with its own
// session starting its own sequence numbering from 0.
func ListenTCP(ctx context.Context, addr string) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("sanchez: tcp listen %s: %w", addr, err)
	}
	watchCancel(ctx, ln)
	return &tcpListener{ctx: ctx, ln: ln}, nil
}

func (l *tcpListener) Accept() (Transport, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	watchCancel(l.ctx, conn)
	return &tcpTransport{conn: conn}, nil
}

func (l *tcpListener) Close() error {
	return l.ln.Close()
}

func (l *tcpListener) Addr() string {
	return l.ln.Addr().String()
}

func (t *tcpTransport) Send(pkt []byte) error {
	_, err := t.conn.Write(pkt)
	return err
}

// Recv reads exactly one wire packet off the TCP byte stream: the fixed
// header first (to learn payload_len), then the payload and trailing CRC.
func (t *tcpTransport) Recv() ([]byte, error) {
	header := make([]byte, wire.HeaderSize)
	if _, err := io.ReadFull(t.conn, header); err != nil {
		return nil, wrapClosed(err)
	}
	payloadLen := binary.BigEndian.Uint32(header[18:22])

	rest := make([]byte, int(payloadLen)+wire.CRCSize)
	if _, err := io.ReadFull(t.conn, rest); err != nil {
		return nil, wrapClosed(err)
	}

	pkt := make([]byte, 0, len(header)+len(rest))
	pkt = append(pkt, header...)
	pkt = append(pkt, rest...)
	return pkt, nil
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

func (t *tcpTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

// --- UDP (unicast, multicast, broadcast share one implementation) ---

type udpTransport struct {
	conn   net.PacketConn
	remote net.Addr // write target; nil for a receive-only transport
}

func (u *udpTransport) Send(pkt []byte) error {
	if u.remote == nil {
		return fmt.Errorf("sanchez: transport has no write target")
	}
	_, err := u.conn.WriteTo(pkt, u.remote)
	return err
}

func (u *udpTransport) Recv() ([]byte, error) {
	buf := make([]byte, maxUDPPacket)
	n, _, err := u.conn.ReadFrom(buf)
	if err != nil {
		return nil, wrapClosed(err)
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return out, nil
}

func (u *udpTransport) Close() error {
	return u.conn.Close()
}

func (u *udpTransport) RemoteAddr() string {
	if u.remote != nil {
		return u.remote.String()
	}
	return u.conn.LocalAddr().String()
}

// DialUDPUnicast creates the server-side send path for UDP unicast: a
// socket bound to an ephemeral local port that writes to addr.
func DialUDPUnicast(ctx context.Context, addr string) (Transport, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("sanchez: resolve udp addr %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("sanchez: udp listen: %w", err)
	}
	watchCancel(ctx, conn)
	return &udpTransport{conn: conn, remote: raddr}, nil
}

// ListenUDPUnicast creates the client-side receive path for UDP unicast: a
// socket bound to addr that only reads.
func ListenUDPUnicast(ctx context.Context, addr string) (Transport, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("sanchez: resolve udp addr %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("sanchez: udp listen %s: %w", addr, err)
	}
	watchCancel(ctx, conn)
	return &udpTransport{conn: conn}, nil
}

// DialUDPMulticast creates the server-side send path for UDP multicast: an
// unbound socket that writes datagrams addressed to the multicast group.
func DialUDPMulticast(ctx context.Context, group string, port int) (Transport, error) {
	raddr := &net.UDPAddr{IP: net.ParseIP(group), Port: port}
	if raddr.IP == nil {
		return nil, fmt.Errorf("sanchez: invalid multicast group %q", group)
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("sanchez: udp listen: %w", err)
	}
	watchCancel(ctx, conn)
	return &udpTransport{conn: conn, remote: raddr}, nil
}

// ListenUDPMulticast creates the client-side receive path for UDP
// multicast: a socket joined to group on the given interface (nil for the
// default).
func ListenUDPMulticast(ctx context.Context, group string, port int, iface *net.Interface) (Transport, error) {
	gaddr := &net.UDPAddr{IP: net.ParseIP(group), Port: port}
	if gaddr.IP == nil {
		return nil, fmt.Errorf("sanchez: invalid multicast group %q", group)
	}
	conn, err := net.ListenMulticastUDP("udp", iface, gaddr)
	if err != nil {
		return nil, fmt.Errorf("sanchez: join multicast group %s: %w", group, err)
	}
	watchCancel(ctx, conn)
	return &udpTransport{conn: conn}, nil
}

// DialUDPBroadcast creates the server-side send path for UDP broadcast: an
// unbound socket that writes datagrams addressed to the subnet broadcast
// address (e.g. 255.255.255.255:port).
func DialUDPBroadcast(ctx context.Context, broadcastAddr string) (Transport, error) {
	raddr, err := net.ResolveUDPAddr("udp", broadcastAddr)
	if err != nil {
		return nil, fmt.Errorf("sanchez: resolve broadcast addr %s: %w", broadcastAddr, err)
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("sanchez: udp listen: %w", err)
	}
	watchCancel(ctx, conn)
	return &udpTransport{conn: conn, remote: raddr}, nil
}

// ListenUDPBroadcast creates the client-side receive path for UDP
// broadcast: a socket bound to the local port that datagrams were
// broadcast to.
func ListenUDPBroadcast(ctx context.Context, addr string) (Transport, error) {
	return ListenUDPUnicast(ctx, addr)
}
