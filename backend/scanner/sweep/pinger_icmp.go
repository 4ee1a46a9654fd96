package sweep

import (
	"context"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

var errInvalidAddress = errors.New("not an IPv4 address")

var echoPayload = []byte("HELLO-R-U-THERE")

// ICMPPinger sends one ICMP echo request per call over its own socket.
//
// Unprivileged mode uses a datagram ICMP socket ("udp4"); on Linux this needs
// the process group inside net.ipv4.ping_group_range. Privileged mode opens a
// raw socket and usually requires root.
type ICMPPinger struct {
	Privileged bool

	id  int
	seq atomic.Uint32

	// listen opens the echo socket; nil means icmp.ListenPacket.
	listen func(network, address string) (*icmp.PacketConn, error)
}

func NewICMPPinger(privileged bool) *ICMPPinger {
	return &ICMPPinger{
		Privileged: privileged,
		id:         os.Getpid() & 0xffff,
	}
}

// Check opens and closes one socket so a missing privilege, or a group outside
// net.ipv4.ping_group_range, fails the sweep instead of hiding every host.
func (p *ICMPPinger) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := p.open()
	if err != nil {
		hint := "use the icmp-raw or exec method"
		if p.Privileged {
			hint = "run with raw socket privileges or use the exec method"
		}
		return errors.Wrap(err, hint)
	}
	return conn.Close()
}

func (p *ICMPPinger) open() (*icmp.PacketConn, error) {
	network := "udp4"
	if p.Privileged {
		network = "ip4:icmp"
	}
	listen := p.listen
	if listen == nil {
		listen = icmp.ListenPacket
	}
	conn, err := listen(network, "0.0.0.0")
	if err != nil {
		return nil, errors.Wrapf(err, "open %s icmp socket", network)
	}
	return conn, nil
}

func (p *ICMPPinger) Ping(ctx context.Context, address string, timeout time.Duration) error {
	ip := net.ParseIP(address).To4()
	if ip == nil {
		return errInvalidAddress
	}

	conn, err := p.open()
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}

	seq := int(p.seq.Add(1) & 0xffff)
	msg := &icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   p.id,
			Seq:  seq,
			Data: echoPayload,
		},
	}
	msgBytes, err := msg.Marshal(nil)
	if err != nil {
		return errors.Wrap(err, "marshal echo request")
	}

	var dst net.Addr = &net.UDPAddr{IP: ip}
	if p.Privileged {
		dst = &net.IPAddr{IP: ip}
	}
	if _, err := conn.WriteTo(msgBytes, dst); err != nil {
		return err
	}

	reply := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(reply)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if p.matches(reply[:n], peer, ip, seq) {
			return nil
		}
	}
}

func (p *ICMPPinger) matches(data []byte, peer net.Addr, ip net.IP, seq int) bool {
	rm, err := icmp.ParseMessage(ipv4.ICMPTypeEchoReply.Protocol(), data)
	if err != nil || rm.Type != ipv4.ICMPTypeEchoReply {
		return false
	}
	echo, ok := rm.Body.(*icmp.Echo)
	if !ok || echo.Seq != seq {
		return false
	}
	// the kernel rewrites the identifier of datagram sockets
	if p.Privileged && echo.ID != p.id {
		return false
	}
	switch addr := peer.(type) {
	case *net.IPAddr:
		return addr.IP.Equal(ip)
	case *net.UDPAddr:
		return addr.IP.Equal(ip)
	default:
		return false
	}
}
