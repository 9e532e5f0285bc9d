package auth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/felixgeelhaar/signet/internal/log"
)

// Claim names read from the ID token.
const (
	ClaimSubject      = "sub"
	ClaimNonce        = "nonce"
	ClaimOrganization = "org_id"
	// ClaimLegacyOrganization is deprecated in favor of ClaimOrganization.
	ClaimLegacyOrganization = "custom:rto_id"
	ClaimGroups             = "cognito:groups"
)

// UnknownUserID is used when the token has no usable "sub".
const UnknownUserID = "unknown"

// Claims is a decoded ID token payload. It is never persisted.
type Claims map[string]any

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// DecodeClaims returns the payload of a compact JWT without verifying it.
// Any malformed input (segment count, base64url, JSON, non-object payload)
// yields an empty map.
func DecodeClaims(idToken string) Claims {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return Claims{}
	}

	payload, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return Claims{}
	}

	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil || claims == nil {
		return Claims{}
	}
	return Claims(claims)
}

// String returns the claim as a string and whether it was a string.
func (c Claims) String(name string) (string, bool) {
	v, ok := c[name].(string)
	return v, ok
}

// Identity is the part of a Session derived from claims.
type Identity struct {
	UserID         string
	OrganizationID *string
	Roles          []string
}

// ClaimsMapper derives an Identity from claims.
//
// The legacy organization warning is logged once per mapper; the application
// root owns a single mapper, making it once per process.
type ClaimsMapper struct {
	logger     *log.Logger
	legacyOnce sync.Once
}

// NewClaimsMapper creates a mapper that reports through logger.
func NewClaimsMapper(logger *log.Logger) *ClaimsMapper {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &ClaimsMapper{logger: logger}
}

// Map derives the identity fields.
func (m *ClaimsMapper) Map(c Claims) Identity {
	id := Identity{UserID: UnknownUserID, Roles: []string{}}

	if sub, ok := c.String(ClaimSubject); ok && sub != "" {
		id.UserID = sub
	}

	if org, ok := c.String(ClaimOrganization); ok && org != "" {
		id.OrganizationID = &org
	} else if legacy, ok := c.String(ClaimLegacyOrganization); ok {
		id.OrganizationID = &legacy
		m.legacyOnce.Do(func() {
			m.logger.Warn("ID token uses deprecated organization claim",
				"claim", ClaimLegacyOrganization,
				"replacement", ClaimOrganization)
		})
	}

	if groups, ok := c[ClaimGroups].([]any); ok {
		for _, g := range groups {
			id.Roles = append(id.Roles, stringify(g))
		}
	}

	return id
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return "null"
	default:
		return fmt.Sprint(t)
	}
}
