package cloudflare

import (
	"context"
	"fmt"

	cfgo "github.com/cloudflare/cloudflare-go"

	"github.com/demosjarco/cloudflare-dns-updater/internal/config"
)

// TunnelConnections lists the active connections of Cloudflare tunnels through cloudflare-go.
type TunnelConnections struct {
	api       *cfgo.API
	accountID string
}

// NewTunnelConnections builds the SDK client from the API credentials.
func NewTunnelConnections(cfg config.CloudflareConfig) (*TunnelConnections, error) {
	options := []cfgo.Option{cfgo.UserAgent(userAgent)}
	if cfg.BaseURL != "" {
		options = append(options, cfgo.BaseURL(cfg.BaseURL))
	}
	api, err := cfgo.NewWithAPIToken(cfg.APIToken, options...)
	if err != nil {
		return nil, fmt.Errorf("create cloudflare SDK client: %w", err)
	}
	return &TunnelConnections{api: api, accountID: cfg.AccountID}, nil
}

// ListConnections returns the connectors of a tunnel with their active connections.
func (connections *TunnelConnections) ListConnections(ctx context.Context, tunnelID string) ([]Connector, error) {
	clients, err := connections.api.ListTunnelConnections(ctx, cfgo.AccountIdentifier(connections.accountID), tunnelID)
	if err != nil {
		return nil, fmt.Errorf("list connections of tunnel %s: %w", tunnelID, err)
	}

	connectors := make([]Connector, 0, len(clients))
	for _, client := range clients {
		connector := Connector{ID: client.ID}
		for _, conn := range client.Connections {
			connector.Conns = append(connector.Conns, ActiveConnection{
				ID:       conn.ID,
				ColoName: conn.ColoName,
				OriginIP: conn.OriginIP,
			})
		}
		connectors = append(connectors, connector)
	}
	return connectors, nil
}

// VerifyToken checks the API token and returns its status (for example "active").
func (connections *TunnelConnections) VerifyToken(ctx context.Context) (string, error) {
	result, err := connections.api.VerifyAPIToken(ctx)
	if err != nil {
		return "", fmt.Errorf("verify API token: %w", err)
	}
	return result.Status, nil
}
