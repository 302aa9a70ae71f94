package network

import (
	"context"
	"net"

	"github.com/julianstephens/tally/internal/constants"
)

// DialProber treats any up, non-loopback interface with an address as
// "connected" and a successful TCP dial to Address as "internet reachable".
type DialProber struct {
	Address string

	// Overridable for tests
	Interfaces func() ([]net.Interface, error)
	Addrs      func(iface net.Interface) ([]net.Addr, error)
	Dial       func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewDialProber returns a prober for address, or the default probe address when empty
func NewDialProber(address string) *DialProber {
	if address == "" {
		address = constants.DefaultProbeAddress
	}
	var d net.Dialer
	return &DialProber{
		Address:    address,
		Interfaces: net.Interfaces,
		Addrs:      func(iface net.Interface) ([]net.Addr, error) { return iface.Addrs() },
		Dial:       d.DialContext,
	}
}

func (p *DialProber) Probe(ctx context.Context) Status {
	if !p.connected() {
		return Status{}
	}
	conn, err := p.Dial(ctx, "tcp", p.Address)
	if err != nil {
		return Status{IsConnected: true}
	}
	conn.Close()
	return Status{IsConnected: true, IsInternetReachable: true}
}

func (p *DialProber) connected() bool {
	ifaces, err := p.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := p.Addrs(iface)
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}
