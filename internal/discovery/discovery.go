package discovery

import (
	"context"
	"fmt"
	"net/netip"

	"log/slog"

	"github.com/demosjarco/cloudflare-dns-updater/internal/cloudflare"
	"github.com/demosjarco/cloudflare-dns-updater/internal/model"
)

// ConnectionProvider lists the connectors currently attached to a tunnel.
type ConnectionProvider interface {
	ListConnections(ctx context.Context, tunnelID string) ([]cloudflare.Connector, error)
}

// Error reports that the connections of a tunnel could not be listed.
type Error struct {
	TunnelID string
	Err      error
}

func (err *Error) Error() string {
	return fmt.Sprintf("discover addresses of tunnel %s: %v", err.TunnelID, err.Err)
}

func (err *Error) Unwrap() error {
	return err.Err
}

// Discoverer resolves the live egress IPv4 addresses of a tunnel.
type Discoverer struct {
	provider ConnectionProvider
	log      *slog.Logger
}

func NewDiscoverer(provider ConnectionProvider, logger *slog.Logger) *Discoverer {
	return &Discoverer{provider: provider, log: logger}
}

// Discover returns the distinct dotted-quad IPv4 origin addresses of every active connection.
// An empty set means the tunnel is down.
func (discoverer *Discoverer) Discover(ctx context.Context, tunnelID string) (model.IPSet, error) {
	connectors, err := discoverer.provider.ListConnections(ctx, tunnelID)
	if err != nil {
		return nil, &Error{TunnelID: tunnelID, Err: err}
	}

	addrs := []netip.Addr{}
	for _, connector := range connectors {
		for _, conn := range connector.Conns {
			raw := conn.OriginIP
			if raw == "" {
				discoverer.log.Debug("connection without origin address", "tunnel", tunnelID, "connector", connector.ID, "connection", conn.ID)
				continue
			}
			addr, err := netip.ParseAddr(raw)
			if err != nil || !addr.Is4() {
				discoverer.log.Debug("ignoring non-IPv4 origin address", "tunnel", tunnelID, "origin_ip", raw, "error", err)
				continue
			}
			addrs = append(addrs, addr)
		}
	}

	ips := model.NewIPSet(addrs...)
	discoverer.log.Debug("discovered tunnel addresses", "tunnel", tunnelID, "connectors", len(connectors), "ips", ips.String())
	return ips, nil
}
