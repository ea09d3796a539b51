package model

// Configuration section keys as they appear in the tunnel configuration document.
const (
	KeyTunnelID           = "tunnel_id"
	KeyFailureEmail       = "failure_email"
	KeyZTLocations        = "zt_locations"
	KeyDNSRecords         = "dns_records"
	KeyZoneID             = "zone_id"
	KeyRecordName         = "record_name"
	KeySpectrumRecordName = "spectrum_record_name"
)

// TunnelConfig declares which resources track the egress IPs of one tunnel.
type TunnelConfig struct {
	TunnelID string `json:"tunnel_id"`
	// FailureEmail enables down alerts when non-empty.
	FailureEmail string `json:"failure_email,omitempty"`
	// ZTLocations holds gateway location ids in unhyphenated form.
	ZTLocations []string     `json:"zt_locations,omitempty"`
	DNSRecords  []ZoneTarget `json:"dns_records,omitempty"`
}

// ZoneTarget lists the records of one zone that follow the tunnel.
type ZoneTarget struct {
	ZoneID             string   `json:"zone_id"`
	RecordNames        []string `json:"record_name,omitempty"`
	SpectrumRecordName []string `json:"spectrum_record_name,omitempty"`
}

// Sections returns the keys of the resource sections configured for the tunnel.
func (config TunnelConfig) Sections() []string {
	sections := []string{}
	if len(config.ZTLocations) > 0 {
		sections = append(sections, KeyZTLocations)
	}
	if len(config.DNSRecords) > 0 {
		sections = append(sections, KeyDNSRecords)
	}
	return sections
}

// HasSpectrum reports whether any zone of the tunnel declares Spectrum apps.
func (config TunnelConfig) HasSpectrum() bool {
	for _, target := range config.DNSRecords {
		if len(target.SpectrumRecordName) > 0 {
			return true
		}
	}
	return false
}
