package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/demosjarco/cloudflare-dns-updater/internal/model"
)

const maxZoneIDLength = 32

var (
	tunnelKeys = map[string]struct{}{
		model.KeyTunnelID:     {},
		model.KeyFailureEmail: {},
		model.KeyZTLocations:  {},
		model.KeyDNSRecords:   {},
	}
	zoneTargetKeys = map[string]struct{}{
		model.KeyZoneID:             {},
		model.KeyRecordName:         {},
		model.KeySpectrumRecordName: {},
	}
)

// ParseDocument decodes a JSON or YAML tunnel configuration document and validates it.
// JSON documents are decoded as JSON, so a repeated key keeps its last value.
func ParseDocument(data []byte) ([]model.TunnelConfig, error) {
	var raw any
	if json.Valid(data) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, &ValidationError{Issues: []Issue{{Message: fmt.Sprintf("cannot decode JSON document: %v", err)}}}
		}
		return validate(raw)
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationError{Issues: []Issue{{Message: fmt.Sprintf("cannot decode document as JSON or YAML: %v", err)}}}
	}
	return validate(raw)
}

// Parse validates an already decoded configuration value. Strings and byte
// slices are treated as undecoded documents.
func Parse(raw any) ([]model.TunnelConfig, error) {
	switch value := raw.(type) {
	case string:
		return ParseDocument([]byte(value))
	case []byte:
		return ParseDocument(value)
	default:
		return validate(raw)
	}
}

func validate(raw any) ([]model.TunnelConfig, error) {
	v := &validator{}
	items, ok := asList(raw)
	if !ok {
		v.addf("", "expected a non-empty array of tunnel configurations, received %s", typeName(raw))
		return nil, v.err()
	}
	if len(items) == 0 {
		v.addf("", "must contain at least one tunnel configuration")
		return nil, v.err()
	}

	tunnels := make([]model.TunnelConfig, 0, len(items))
	for index, item := range items {
		tunnels = append(tunnels, v.tunnel(fmt.Sprintf("[%d]", index), item))
	}
	if err := v.err(); err != nil {
		return nil, err
	}
	return tunnels, nil
}

type validator struct {
	issues []Issue
}

func (v *validator) addf(path string, format string, args ...any) {
	v.issues = append(v.issues, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) err() error {
	if len(v.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: v.issues}
}

func (v *validator) tunnel(path string, raw any) model.TunnelConfig {
	config := model.TunnelConfig{}
	object, ok := asObject(raw)
	if !ok {
		v.addf(path, "expected an object, received %s", typeName(raw))
		return config
	}
	v.unknownKeys(path, object, tunnelKeys)

	if value, ok := object[model.KeyTunnelID]; ok {
		if text, ok := v.str(join(path, model.KeyTunnelID), value); ok {
			id, err := parseTunnelID(strings.TrimSpace(text))
			if err != nil {
				v.addf(join(path, model.KeyTunnelID), "%v", err)
			}
			config.TunnelID = id
		}
	} else {
		v.addf(join(path, model.KeyTunnelID), "is required")
	}

	if value, ok := object[model.KeyFailureEmail]; ok {
		if text, ok := v.str(join(path, model.KeyFailureEmail), value); ok {
			email := strings.TrimSpace(text)
			if !validEmail(email) {
				v.addf(join(path, model.KeyFailureEmail), "must be a valid email address")
			}
			config.FailureEmail = email
		}
	}

	_, hasLocations := object[model.KeyZTLocations]
	_, hasRecords := object[model.KeyDNSRecords]
	if !hasLocations && !hasRecords {
		v.addf(path, "must declare %s, %s, or both", model.KeyZTLocations, model.KeyDNSRecords)
	}
	if hasLocations {
		config.ZTLocations = v.locations(join(path, model.KeyZTLocations), object[model.KeyZTLocations])
	}
	if hasRecords {
		config.DNSRecords = v.zoneTargets(join(path, model.KeyDNSRecords), object[model.KeyDNSRecords])
	}
	return config
}

func (v *validator) locations(path string, raw any) []string {
	items, ok := v.nonEmptyList(path, raw)
	if !ok {
		return nil
	}
	seen := map[string]struct{}{}
	locations := make([]string, 0, len(items))
	for index, item := range items {
		itemPath := fmt.Sprintf("%s[%d]", path, index)
		text, ok := v.str(itemPath, item)
		if !ok {
			continue
		}
		id, err := parseLocationID(strings.TrimSpace(text))
		if err != nil {
			v.addf(itemPath, "%v", err)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		locations = append(locations, id)
	}
	return locations
}

func (v *validator) zoneTargets(path string, raw any) []model.ZoneTarget {
	items, ok := v.nonEmptyList(path, raw)
	if !ok {
		return nil
	}
	targets := make([]model.ZoneTarget, 0, len(items))
	for index, item := range items {
		itemPath := fmt.Sprintf("%s[%d]", path, index)
		object, ok := asObject(item)
		if !ok {
			v.addf(itemPath, "expected an object, received %s", typeName(item))
			continue
		}
		v.unknownKeys(itemPath, object, zoneTargetKeys)

		target := model.ZoneTarget{}
		if value, ok := object[model.KeyZoneID]; ok {
			if text, ok := v.str(join(itemPath, model.KeyZoneID), value); ok {
				zoneID := strings.TrimSpace(text)
				switch {
				case zoneID == "":
					v.addf(join(itemPath, model.KeyZoneID), "must not be empty")
				case len(zoneID) > maxZoneIDLength:
					v.addf(join(itemPath, model.KeyZoneID), "must be at most %d characters", maxZoneIDLength)
				}
				target.ZoneID = zoneID
			}
		} else {
			v.addf(join(itemPath, model.KeyZoneID), "is required")
		}

		_, hasRecords := object[model.KeyRecordName]
		_, hasSpectrum := object[model.KeySpectrumRecordName]
		if !hasRecords && !hasSpectrum {
			v.addf(itemPath, "must declare %s, %s, or both", model.KeyRecordName, model.KeySpectrumRecordName)
		}
		if hasRecords {
			target.RecordNames = v.domainSet(join(itemPath, model.KeyRecordName), object[model.KeyRecordName])
		}
		if hasSpectrum {
			target.SpectrumRecordName = v.domainSet(join(itemPath, model.KeySpectrumRecordName), object[model.KeySpectrumRecordName])
		}
		targets = append(targets, target)
	}
	return targets
}

func (v *validator) domainSet(path string, raw any) []string {
	items, ok := v.nonEmptyList(path, raw)
	if !ok {
		return nil
	}
	seen := map[string]struct{}{}
	names := make([]string, 0, len(items))
	for index, item := range items {
		itemPath := fmt.Sprintf("%s[%d]", path, index)
		text, ok := v.str(itemPath, item)
		if !ok {
			continue
		}
		name, err := normalizeDomain(strings.TrimSpace(text))
		if err != nil {
			v.addf(itemPath, "%v", err)
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

func (v *validator) nonEmptyList(path string, raw any) ([]any, bool) {
	items, ok := asList(raw)
	if !ok {
		v.addf(path, "expected an array, received %s", typeName(raw))
		return nil, false
	}
	if len(items) == 0 {
		v.addf(path, "must contain at least one entry")
		return nil, false
	}
	return items, true
}

func (v *validator) str(path string, raw any) (string, bool) {
	text, ok := raw.(string)
	if !ok {
		v.addf(path, "expected a string, received %s", typeName(raw))
	}
	return text, ok
}

func (v *validator) unknownKeys(path string, object map[string]any, allowed map[string]struct{}) {
	unknown := []string{}
	for key := range object {
		if _, ok := allowed[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		v.addf(join(path, key), "is not a recognized key")
	}
}

func join(path string, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func asList(raw any) ([]any, bool) {
	switch value := raw.(type) {
	case []any:
		return value, true
	case []map[string]any:
		items := make([]any, 0, len(value))
		for _, item := range value {
			items = append(items, item)
		}
		return items, true
	case []string:
		items := make([]any, 0, len(value))
		for _, item := range value {
			items = append(items, item)
		}
		return items, true
	default:
		return nil, false
	}
}

func asObject(raw any) (map[string]any, bool) {
	switch value := raw.(type) {
	case map[string]any:
		return value, true
	case map[any]any:
		object := make(map[string]any, len(value))
		for key, item := range value {
			text, ok := key.(string)
			if !ok {
				return nil, false
			}
			object[text] = item
		}
		return object, true
	default:
		return nil, false
	}
}

func typeName(raw any) string {
	switch raw.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return "number"
	default:
		if _, ok := asList(raw); ok {
			return "array"
		}
		if _, ok := asObject(raw); ok {
			return "object"
		}
		return fmt.Sprintf("%T", raw)
	}
}
