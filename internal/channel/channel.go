// Package channel carries control-plane messages over a single UDP socket.
//
// Outbound messages go to one configured remote endpoint; inbound datagrams
// are accepted from any sender, decoded, and dispatched to the handler
// registered for their kind. Delivery is best effort: no acknowledgment,
// no retry. The same socket answers STUN binding requests so peers can
// check reachability of the control port.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/pion/stun/v3"
	"golang.org/x/net/ipv4"

	"meshctl/internal/addrutil"
	"meshctl/internal/metrics"
	"meshctl/internal/wire"
)

// DefaultPort is the well-known control port.
const DefaultPort = 8889

const maxDatagram = 65535

var (
	// ErrNoRemote is returned by Send when no remote endpoint is configured.
	ErrNoRemote = errors.New("channel: no remote endpoint")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("channel: closed")
)

// Handler processes one decoded message. It runs on the receive path and
// must not block for long.
type Handler func(from *net.UDPAddr, msg wire.Message)

// Option configures a Channel.
type Option func(*Channel)

// WithCollectors counts datagrams on c.
func WithCollectors(c *metrics.Collectors) Option {
	return func(ch *Channel) { ch.stats = c }
}

// WithMulticast joins group on the named interface (empty for the system
// default) after binding.
func WithMulticast(group, iface string) Option {
	return func(ch *Channel) {
		ch.group = group
		ch.iface = iface
	}
}

// Channel is a bound control socket.
type Channel struct {
	conn  *net.UDPConn
	stats *metrics.Collectors
	group string
	iface string

	mu       sync.RWMutex
	remote   *net.UDPAddr
	handlers map[wire.Kind]Handler
	closed   bool
}

// Listen binds addr. A missing port defaults to DefaultPort.
func Listen(addr string, opts ...Option) (*Channel, error) {
	if addr == "" {
		addr = fmt.Sprintf(":%d", DefaultPort)
	}
	endpoint, err := addrutil.Endpoint(addr, DefaultPort)
	if err != nil {
		return nil, err
	}
	udpAddr, err := net.ResolveUDPAddr("udp", endpoint)
	if err != nil {
		return nil, err
	}

	ch := &Channel{handlers: make(map[wire.Kind]Handler)}
	for _, opt := range opts {
		opt(ch)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	ch.conn = conn

	if ch.group != "" {
		if err := ch.joinGroup(); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return ch, nil
}

func (c *Channel) joinGroup() error {
	ip := net.ParseIP(c.group)
	if ip == nil || !ip.IsMulticast() {
		return fmt.Errorf("invalid multicast group %q", c.group)
	}
	var ifi *net.Interface
	if c.iface != "" {
		var err error
		if ifi, err = net.InterfaceByName(c.iface); err != nil {
			return fmt.Errorf("multicast interface %q: %w", c.iface, err)
		}
	}
	p := ipv4.NewPacketConn(c.conn)
	if err := p.JoinGroup(ifi, &net.UDPAddr{IP: ip}); err != nil {
		return fmt.Errorf("join %s: %w", c.group, err)
	}
	_ = p.SetMulticastLoopback(false)
	return nil
}

// LocalAddr returns the bound address.
func (c *Channel) LocalAddr() *net.UDPAddr {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.LocalAddr().(*net.UDPAddr)
}

// SetRemote sets the outbound endpoint. A missing port defaults to
// DefaultPort; an empty addr clears the remote.
func (c *Channel) SetRemote(addr string) error {
	if addr == "" {
		c.mu.Lock()
		c.remote = nil
		c.mu.Unlock()
		return nil
	}
	endpoint, err := addrutil.Endpoint(addr, DefaultPort)
	if err != nil {
		return err
	}
	udpAddr, err := net.ResolveUDPAddr("udp", endpoint)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.remote = udpAddr
	c.mu.Unlock()
	return nil
}

// Remote returns the outbound endpoint, or nil.
func (c *Channel) Remote() *net.UDPAddr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.remote
}

// Register sets the handler for kind, replacing any previous one.
func (c *Channel) Register(kind wire.Kind, h Handler) {
	c.mu.Lock()
	c.handlers[kind] = h
	c.mu.Unlock()
}

// Send encodes msg and writes it to the remote endpoint.
func (c *Channel) Send(msg wire.Message) error {
	c.mu.RLock()
	remote, closed := c.remote, c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if remote == nil {
		return ErrNoRemote
	}

	data, err := wire.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := c.conn.WriteToUDP(data, remote); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("send to %s: %w", remote, err)
	}
	c.stats.Sent()
	return nil
}

// Serve reads datagrams until ctx is cancelled or the socket fails. It
// returns nil on cancellation or Close.
func (c *Channel) Serve(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-stop:
		}
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		if stun.IsMessage(buf[:n]) {
			c.answerSTUN(buf[:n], addr)
			continue
		}
		c.Dispatch(addr, buf[:n])
	}
}

// Dispatch decodes one datagram and invokes the matching handler.
// Undecodable or unhandled datagrams are dropped.
func (c *Channel) Dispatch(from *net.UDPAddr, data []byte) {
	msg, err := wire.Unmarshal(data)
	if err != nil {
		c.stats.Dropped("malformed")
		log.Printf("channel: drop datagram from=%s err=%v", from, err)
		return
	}
	kind := msg.Kind()
	if kind == wire.KindUnknown {
		c.stats.Dropped("unknown_kind")
		return
	}

	c.mu.RLock()
	h := c.handlers[kind]
	c.mu.RUnlock()
	if h == nil {
		c.stats.Dropped("unhandled")
		return
	}
	c.stats.Received(kind.String())
	h(from, msg)
}

func (c *Channel) answerSTUN(data []byte, from *net.UDPAddr) {
	req := &stun.Message{Raw: append([]byte(nil), data...)}
	if err := req.Decode(); err != nil {
		c.stats.Dropped("stun")
		return
	}
	if req.Type != stun.BindingRequest {
		c.stats.Dropped("stun")
		return
	}
	res, err := stun.Build(req, stun.BindingSuccess,
		&stun.XORMappedAddress{IP: from.IP, Port: from.Port},
		stun.Fingerprint,
	)
	if err != nil {
		log.Printf("channel: stun response build failed: %v", err)
		return
	}
	_, _ = c.conn.WriteToUDP(res.Raw, from)
}

// Close releases the socket. It is safe to call more than once.
func (c *Channel) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}
