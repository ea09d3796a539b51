package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demosjarco/cloudflare-dns-updater/internal/model"
)

const (
	tunnelID          = "6f2b1b4e-8c1d-4b7a-9f3e-2a5c7d9e1b3f"
	locationHyphen    = "0C7A1B2D-3E4F-4A5B-8C6D-7E8F9A0B1C2D"
	locationCompact   = "1a2b3c4d5e6f4a7b8c9d0e1f2a3b4c5d"
	locationNormalHex = "0c7a1b2d3e4f4a5b8c6d7e8f9a0b1c2d"
)

func TestParseDocumentAcceptsAllShapes(t *testing.T) {
	document := `[` +
		`{"tunnel_id": "` + tunnelID + `", "zt_locations": ["` + locationHyphen + `", "` + locationCompact + `"]},` +
		`{"tunnel_id": "` + tunnelID + `", "failure_email": "ops@example.com",` +
		` "dns_records": [{"zone_id": " z1 ", "record_name": [" Home.Example.com "]}]},` +
		`{"tunnel_id": "` + tunnelID + `", "zt_locations": ["` + locationCompact + `"],` +
		` "dns_records": [{"zone_id": "z2", "spectrum_record_name": ["ssh.example.com"]},` +
		` {"zone_id": "z3", "record_name": ["a.example.com"], "spectrum_record_name": ["b.example.com"]}]}` +
		`]`

	tunnels, err := ParseDocument([]byte(document))
	require.NoError(t, err)
	require.Len(t, tunnels, 3)

	assert.Equal(t, []string{locationNormalHex, locationCompact}, tunnels[0].ZTLocations)
	assert.Empty(t, tunnels[0].DNSRecords)

	assert.Equal(t, "ops@example.com", tunnels[1].FailureEmail)
	require.Len(t, tunnels[1].DNSRecords, 1)
	assert.Equal(t, "z1", tunnels[1].DNSRecords[0].ZoneID)
	assert.Equal(t, []string{"home.example.com"}, tunnels[1].DNSRecords[0].RecordNames)

	assert.Equal(t, []string{model.KeyZTLocations, model.KeyDNSRecords}, tunnels[2].Sections())
	assert.True(t, tunnels[2].HasSpectrum())
	assert.Equal(t, []string{"ssh.example.com"}, tunnels[2].DNSRecords[0].SpectrumRecordName)
}

func TestParseAcceptsYAMLAndStrings(t *testing.T) {
	document := `
- tunnel_id: ` + tunnelID + `
  dns_records:
    - zone_id: z1
      record_name:
        - home.example.com
        - home.example.com
`
	tunnels, err := Parse(document)
	require.NoError(t, err)
	require.Len(t, tunnels, 1)
	assert.Equal(t, tunnelID, tunnels[0].TunnelID)
	assert.Equal(t, []string{"home.example.com"}, tunnels[0].DNSRecords[0].RecordNames, "duplicates collapse")
}

func TestParseNormalizesTunnelIDCase(t *testing.T) {
	tunnels, err := Parse([]any{
		map[string]any{
			"tunnel_id":    strings.ToUpper(tunnelID),
			"zt_locations": []any{locationCompact},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, tunnelID, tunnels[0].TunnelID)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		path string
	}{
		{name: "not an array", raw: map[string]any{}, path: ""},
		{name: "empty array", raw: []any{}, path: ""},
		{
			name: "missing tunnel id",
			raw:  []any{map[string]any{"zt_locations": []any{locationCompact}}},
			path: "[0].tunnel_id",
		},
		{
			name: "tunnel id not v4",
			raw:  []any{map[string]any{"tunnel_id": "6f2b1b4e-8c1d-1b7a-9f3e-2a5c7d9e1b3f", "zt_locations": []any{locationCompact}}},
			path: "[0].tunnel_id",
		},
		{
			name: "compact tunnel id",
			raw:  []any{map[string]any{"tunnel_id": strings.ReplaceAll(tunnelID, "-", ""), "zt_locations": []any{locationCompact}}},
			path: "[0].tunnel_id",
		},
		{
			name: "nothing to reconcile",
			raw:  []any{map[string]any{"tunnel_id": tunnelID}},
			path: "[0]",
		},
		{
			name: "unknown key",
			raw:  []any{map[string]any{"tunnel_id": tunnelID, "zt_locations": []any{locationCompact}, "extra": true}},
			path: "[0].extra",
		},
		{
			name: "empty locations",
			raw:  []any{map[string]any{"tunnel_id": tunnelID, "zt_locations": []any{}}},
			path: "[0].zt_locations",
		},
		{
			name: "bad location",
			raw:  []any{map[string]any{"tunnel_id": tunnelID, "zt_locations": []any{"not-a-uuid"}}},
			path: "[0].zt_locations[0]",
		},
		{
			name: "bad email",
			raw:  []any{map[string]any{"tunnel_id": tunnelID, "failure_email": "nobody", "zt_locations": []any{locationCompact}}},
			path: "[0].failure_email",
		},
		{
			name: "zone id too long",
			raw: []any{map[string]any{"tunnel_id": tunnelID, "dns_records": []any{
				map[string]any{"zone_id": strings.Repeat("a", 33), "record_name": []any{"a.example.com"}},
			}}},
			path: "[0].dns_records[0].zone_id",
		},
		{
			name: "zone target without records",
			raw: []any{map[string]any{"tunnel_id": tunnelID, "dns_records": []any{
				map[string]any{"zone_id": "z1"},
			}}},
			path: "[0].dns_records[0]",
		},
		{
			name: "invalid record name",
			raw: []any{map[string]any{"tunnel_id": tunnelID, "dns_records": []any{
				map[string]any{"zone_id": "z1", "record_name": []any{"-bad-.example.com"}},
			}}},
			path: "[0].dns_records[0].record_name[0]",
		},
		{
			name: "record name not a string",
			raw: []any{map[string]any{"tunnel_id": tunnelID, "dns_records": []any{
				map[string]any{"zone_id": "z1", "spectrum_record_name": []any{42}},
			}}},
			path: "[0].dns_records[0].spectrum_record_name[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tunnels, err := Parse(tt.raw)
			require.Error(t, err)
			assert.Nil(t, tunnels)

			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.True(t, validationErr.HasPath(tt.path), "expected issue at %q, got %v", tt.path, validationErr.Issues)
		})
	}
}

func TestParseCollectsEveryIssue(t *testing.T) {
	_, err := Parse([]any{
		map[string]any{"tunnel_id": "nope", "failure_email": "nope"},
		map[string]any{"tunnel_id": tunnelID, "dns_records": []any{map[string]any{"zone_id": ""}}},
	})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Len(t, validationErr.Issues, 5)
	for _, path := range []string{"[0].tunnel_id", "[0].failure_email", "[0]", "[1].dns_records[0].zone_id", "[1].dns_records[0]"} {
		assert.True(t, validationErr.HasPath(path), "missing issue for %s", path)
	}
	assert.Contains(t, err.Error(), "5 issues")
}

func TestParseDocumentRejectsGarbage(t *testing.T) {
	_, err := ParseDocument([]byte(`[{"tunnel_id": `))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, err.Error(), "cannot decode document as JSON or YAML")
}

func TestParseDocumentStripsTrailingDot(t *testing.T) {
	document := `[{"tunnel_id": "` + tunnelID + `", "dns_records": [{"zone_id": "z1",` +
		` "record_name": ["Home.Example.com.", "home.example.com"], "spectrum_record_name": ["SSH.example.com."]}]}]`

	tunnels, err := ParseDocument([]byte(document))
	require.NoError(t, err)
	assert.Equal(t, []string{"home.example.com"}, tunnels[0].DNSRecords[0].RecordNames)
	assert.Equal(t, []string{"ssh.example.com"}, tunnels[0].DNSRecords[0].SpectrumRecordName)
}

func TestParseDocumentTrimsFailureEmail(t *testing.T) {
	document := `[{"tunnel_id": "` + tunnelID + `", "failure_email": " ops@example.com ", "zt_locations": ["` + locationCompact + `"]}]`

	tunnels, err := ParseDocument([]byte(document))
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", tunnels[0].FailureEmail)
}

func TestParseDocumentJSONDuplicateKeyKeepsLast(t *testing.T) {
	document := `[{"tunnel_id": "` + tunnelID + `", "zt_locations": ["` + locationHyphen + `"], "zt_locations": ["` + locationCompact + `"]}]`

	tunnels, err := ParseDocument([]byte(document))
	require.NoError(t, err)
	assert.Equal(t, []string{locationCompact}, tunnels[0].ZTLocations)
}
