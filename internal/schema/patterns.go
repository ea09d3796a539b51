package schema

import (
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/idna"
)

const maxDomainLength = 253

var (
	hyphenatedUUIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	compactUUIDPattern    = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)

	domainPattern = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*\.?$`)

	// Practical address pattern used by HTML5 <input type="email">.
	emailPattern = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")
)

var (
	errNotUUID   = errors.New("must be a version 4 UUID")
	errNotDomain = errors.New("must be a valid domain name")
)

// parseTunnelID accepts only the canonical hyphenated form.
func parseTunnelID(value string) (string, error) {
	if !hyphenatedUUIDPattern.MatchString(value) {
		return "", errNotUUID
	}
	id, err := uuid.Parse(value)
	if err != nil || id.Version() != 4 || id.Variant() != uuid.RFC4122 {
		return "", errNotUUID
	}
	return id.String(), nil
}

// parseLocationID accepts hyphenated or 32 hex digit ids and returns the unhyphenated form.
func parseLocationID(value string) (string, error) {
	switch {
	case hyphenatedUUIDPattern.MatchString(value):
		id, err := uuid.Parse(value)
		if err != nil || id.Version() != 4 || id.Variant() != uuid.RFC4122 {
			return "", errNotUUID
		}
		return strings.ReplaceAll(id.String(), "-", ""), nil
	case compactUUIDPattern.MatchString(value):
		id, err := uuid.Parse(value)
		if err != nil || id.Version() != 4 {
			return "", errNotUUID
		}
		return strings.ReplaceAll(id.String(), "-", ""), nil
	default:
		return "", errNotUUID
	}
}

// normalizeDomain returns the lowercase ASCII form of value without its trailing dot.
func normalizeDomain(value string) (string, error) {
	ascii, err := idna.Lookup.ToASCII(value)
	if err != nil {
		return "", errNotDomain
	}
	if len(ascii) > maxDomainLength || !domainPattern.MatchString(ascii) {
		return "", errNotDomain
	}
	return strings.TrimSuffix(ascii, "."), nil
}

func validEmail(value string) bool {
	return emailPattern.MatchString(value)
}
