package cloudflare

import (
	"context"
	"encoding/json"
)

// DNSRecord is a DNS record as returned by the API. Optional attributes stay nil when absent.
type DNSRecord struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Content  string          `json:"content"`
	TTL      *int            `json:"ttl,omitempty"`
	Proxied  *bool           `json:"proxied,omitempty"`
	Comment  *string         `json:"comment,omitempty"`
	Settings json.RawMessage `json:"settings,omitempty"`
	Tags     []string        `json:"tags,omitempty"`
}

// DNSRecordInput is one record to create in a batch.
type DNSRecordInput struct {
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Content  string          `json:"content"`
	TTL      int             `json:"ttl"`
	Proxied  *bool           `json:"proxied,omitempty"`
	Comment  *string         `json:"comment,omitempty"`
	Settings json.RawMessage `json:"settings,omitempty"`
	Tags     []string        `json:"tags,omitempty"`
}

type DNSRecordRef struct {
	ID string `json:"id"`
}

// DNSBatch deletes and creates records of one zone in a single request.
type DNSBatch struct {
	Deletes []DNSRecordRef   `json:"deletes,omitempty"`
	Posts   []DNSRecordInput `json:"posts,omitempty"`
}

type DNSBatchResult struct {
	Deletes []DNSRecord `json:"deletes"`
	Posts   []DNSRecord `json:"posts"`
}

// DNSAPI defines the DNS operations used by the DNS reconciler.
type DNSAPI interface {
	ListDNSRecords(ctx context.Context, zoneID, recordType, name string) ([]DNSRecord, error)
	BatchDNSRecords(ctx context.Context, zoneID string, batch DNSBatch) (DNSBatchResult, error)
}

type LocationNetwork struct {
	Network string `json:"network"`
}

// Location is a Zero Trust gateway location.
type Location struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	ClientDefault       *bool             `json:"client_default,omitempty"`
	DNSDestinationIPsID *string           `json:"dns_destination_ips_id,omitempty"`
	ECSSupport          *bool             `json:"ecs_support,omitempty"`
	Endpoints           json.RawMessage   `json:"endpoints,omitempty"`
	Networks            []LocationNetwork `json:"networks,omitempty"`
}

// LocationUpdate replaces a gateway location. Networks is always sent.
type LocationUpdate struct {
	Name                string            `json:"name"`
	ClientDefault       *bool             `json:"client_default,omitempty"`
	DNSDestinationIPsID *string           `json:"dns_destination_ips_id,omitempty"`
	ECSSupport          *bool             `json:"ecs_support,omitempty"`
	Endpoints           json.RawMessage   `json:"endpoints,omitempty"`
	Networks            []LocationNetwork `json:"networks"`
}

// LocationAPI defines the gateway location operations used by the gateway reconciler.
type LocationAPI interface {
	GetLocation(ctx context.Context, locationID string) (Location, error)
	UpdateLocation(ctx context.Context, locationID string, update LocationUpdate) (Location, error)
}

type SpectrumDNS struct {
	Type string `json:"type,omitempty"`
	Name string `json:"name,omitempty"`
}

// SpectrumApp is a Spectrum application. OriginDirect is nil when the attribute is absent.
type SpectrumApp struct {
	ID               string          `json:"id"`
	Protocol         string          `json:"protocol"`
	DNS              SpectrumDNS     `json:"dns"`
	TrafficType      *string         `json:"traffic_type,omitempty"`
	ArgoSmartRouting *bool           `json:"argo_smart_routing,omitempty"`
	EdgeIPs          json.RawMessage `json:"edge_ips,omitempty"`
	IPFirewall       *bool           `json:"ip_firewall,omitempty"`
	OriginDirect     []string        `json:"origin_direct,omitempty"`
	OriginDNS        json.RawMessage `json:"origin_dns,omitempty"`
	OriginPort       json.RawMessage `json:"origin_port,omitempty"`
	ProxyProtocol    *string         `json:"proxy_protocol,omitempty"`
	TLS              *string         `json:"tls,omitempty"`
}

// SpectrumAppUpdate replaces a Spectrum application.
type SpectrumAppUpdate struct {
	Protocol         string          `json:"protocol"`
	DNS              SpectrumDNS     `json:"dns"`
	TrafficType      *string         `json:"traffic_type,omitempty"`
	ArgoSmartRouting *bool           `json:"argo_smart_routing,omitempty"`
	EdgeIPs          json.RawMessage `json:"edge_ips,omitempty"`
	IPFirewall       *bool           `json:"ip_firewall,omitempty"`
	OriginDirect     []string        `json:"origin_direct,omitempty"`
	OriginDNS        json.RawMessage `json:"origin_dns,omitempty"`
	OriginPort       json.RawMessage `json:"origin_port,omitempty"`
	ProxyProtocol    *string         `json:"proxy_protocol,omitempty"`
	TLS              *string         `json:"tls,omitempty"`
}

// SpectrumAPI defines the Spectrum operations used by the Spectrum reconciler.
type SpectrumAPI interface {
	ListSpectrumApps(ctx context.Context, zoneID string) ([]SpectrumApp, error)
	UpdateSpectrumApp(ctx context.Context, zoneID, appID string, update SpectrumAppUpdate) (SpectrumApp, error)
}

// Connector is one cloudflared instance attached to a tunnel.
type Connector struct {
	ID    string
	Conns []ActiveConnection
}

type ActiveConnection struct {
	ID       string
	ColoName string
	OriginIP string
}
