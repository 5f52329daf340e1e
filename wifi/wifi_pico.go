//go:build rp2040 || rp2350

package wifi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/soypat/cyw43439"
	"github.com/soypat/seqs/eth/dhcp"
	"github.com/soypat/seqs/stacks"
)

const mtu = cyw43439.MTU

// Link is a Pico W radio with its IP stack.
type Link struct {
	cfg    Config
	dev    *cyw43439.Device
	stack  *stacks.PortStack
	dhcp   *stacks.DHCPClient
	addr   netip.Addr
	logger *slog.Logger

	pump *pump
	// stop ends the pump, nil while the link is down.
	stop chan struct{}
}

// NewPicoW powers up and initializes the CYW43439 without joining a network.
func NewPicoW(cfg Config) (*Link, error) {
	dev := cyw43439.NewPicoWDevice()
	wificfg := cyw43439.DefaultWifiConfig()
	// wificfg.Logger = cfg.Logger // Uncomment for in depth radio logs.
	initStart := time.Now()
	err := dev.Init(wificfg)
	if err != nil {
		return nil, errors.Join(errors.New("wifi: cyw43439 init failed"), err)
	}
	logattrs(cfg.Logger, slog.LevelDebug, "wifi:cyw43439 init", slog.Duration("duration", time.Since(initStart)))
	return &Link{cfg: cfg, dev: dev, logger: cfg.Logger}, nil
}

// ConnectPicoW initializes the radio and brings the link up. The link is
// returned whenever the radio initialized so callers can retry Up.
func ConnectPicoW(ctx context.Context, cfg Config) (*Link, error) {
	link, err := NewPicoW(cfg)
	if err != nil {
		return nil, err
	}
	return link, link.Up(ctx)
}

// Up joins the configured network and leases an IPv4 address. When
// association succeeds but DHCP does not it returns ErrDHCPTimeout. Up may
// be called again after a failure. Frames move between radio and stack
// only while the link is up.
func (l *Link) Up(ctx context.Context) error {
	cfg := l.cfg
	l.Down()
	_, err := Join(ctx, l.dev, cfg)
	if err != nil {
		return err
	}
	mac, err := l.dev.HardwareAddr6()
	if err != nil {
		return err
	}
	logattrs(l.logger, slog.LevelInfo, "wifi:associated", slog.String("mac", net.HardwareAddr(mac[:]).String()))
	if l.stack == nil {
		l.stack = stacks.NewPortStack(stacks.PortStackConfig{
			MAC:             mac,
			MaxOpenPortsUDP: 1, // DHCP client only.
			MTU:             mtu,
			Logger:          l.logger,
		})
		l.dev.RecvEthHandle(l.stack.RecvEth)
		l.dhcp = stacks.NewDHCPClient(l.stack, dhcp.DefaultClientPort)
		l.pump = newPump(l.dev, l.stack, int(mtu), l.logger)
	}
	l.stop = make(chan struct{})
	go l.pump.run(l.stop)
	if err := l.lease(ctx); err != nil {
		l.Down()
		return err
	}
	return nil
}

func (l *Link) lease(ctx context.Context) error {
	cfg := l.cfg
	err := l.dhcp.BeginRequest(stacks.DHCPRequestConfig{
		Xid:      uint32(time.Now().Nanosecond()),
		Hostname: cfg.Hostname,
	})
	if err != nil {
		return errors.Join(errors.New("wifi: dhcp begin request"), err)
	}
	deadline := time.Now().Add(cfg.DHCPTimeout)
	for !l.dhcp.IsDone() {
		if time.Now().After(deadline) {
			l.dhcp.Abort()
			return ErrDHCPTimeout
		}
		select {
		case <-ctx.Done():
			l.dhcp.Abort()
			return ctx.Err()
		case <-time.After(cfg.DHCPTimeout / 16):
		}
	}
	l.addr = l.dhcp.Offer()
	l.stack.SetAddr(l.addr) // Must be set after DHCP completes.
	logattrs(l.logger, slog.LevelInfo, "wifi:dhcp complete",
		slog.String("ip", l.addr.String()),
		slog.String("gateway", l.dhcp.Gateway().String()),
		slog.Duration("lease", l.dhcp.IPLeaseTime()),
	)
	return nil
}

// Down stops moving frames and forgets the leased address. The radio stays
// initialized so Up can be called again.
func (l *Link) Down() {
	if l.stop != nil {
		close(l.stop)
		l.stop = nil
	}
	l.addr = netip.Addr{}
}

// Addr returns the leased IPv4 address, invalid until DHCP completes.
func (l *Link) Addr() netip.Addr { return l.addr }

func (l *Link) Gateway() netip.Addr {
	if l.dhcp == nil || !l.addr.IsValid() {
		return netip.Addr{}
	}
	return l.dhcp.Gateway()
}

func (l *Link) HardwareAddr() net.HardwareAddr {
	mac, _ := l.dev.HardwareAddr6()
	return net.HardwareAddr(mac[:])
}

// LED drives the LED wired to the radio's GPIO 0.
func (l *Link) LED(on bool) error {
	return l.dev.GPIOSet(0, on)
}

// Station connects on demand and keeps the resulting link.
type Station struct {
	Config Config
	Link   *Link
}

// Connect initializes the radio on first use and brings the link up.
func (s *Station) Connect(ctx context.Context) (netip.Addr, error) {
	if s.Link == nil {
		link, err := NewPicoW(s.Config)
		if err != nil {
			return netip.Addr{}, err
		}
		s.Link = link
	}
	err := s.Link.Up(ctx)
	return s.Link.Addr(), err
}
