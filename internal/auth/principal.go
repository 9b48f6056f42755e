// Package auth resolves the caller identity for a request. Two sources
// are supported: the base64 client-principal header issued by the
// original hosting platform, and a Bearer JWT. The rest of the system
// only consumes the derived predicates: is authenticated, is admin, is
// the task's assignee.
package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// RoleAdmin is the role granting administrative access.
const RoleAdmin = "admin"

// ClientPrincipalHeader carries the platform-issued identity payload.
const ClientPrincipalHeader = "x-ms-client-principal"

// Principal is the resolved caller identity.
type Principal struct {
	IsAuthenticated bool     `json:"isAuthenticated"`
	UserID          string   `json:"userId,omitempty"`
	UserDetails     string   `json:"userDetails,omitempty"` // typically the email
	Roles           []string `json:"roles,omitempty"`
}

// Anonymous is the unauthenticated principal.
func Anonymous() Principal {
	return Principal{}
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	for _, r := range p.Roles {
		if strings.EqualFold(r, RoleAdmin) {
			return true
		}
	}
	return false
}

// Identity returns the normalized (lower-case) identity string used to
// match task assignees.
func (p Principal) Identity() string {
	if p.UserDetails != "" {
		return strings.ToLower(p.UserDetails)
	}
	return strings.ToLower(p.UserID)
}

// Matches reports whether the principal is the given assignee. Assignees
// are stored normalized lower-case.
func (p Principal) Matches(assignee string) bool {
	if assignee == "" {
		return false
	}
	return p.Identity() == strings.ToLower(assignee)
}

// clientPrincipal mirrors the platform header payload.
type clientPrincipal struct {
	IdentityProvider string   `json:"identityProvider"`
	UserID           string   `json:"userId"`
	UserDetails      string   `json:"userDetails"`
	UserRoles        []string `json:"userRoles"`
}

// ParseClientPrincipal decodes the base64 JSON client-principal header.
func ParseClientPrincipal(header string) (Principal, error) {
	if header == "" {
		return Anonymous(), nil
	}

	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return Anonymous(), fmt.Errorf("failed to decode client principal header: %w", err)
	}

	var cp clientPrincipal
	if err := json.Unmarshal(raw, &cp); err != nil {
		return Anonymous(), fmt.Errorf("failed to parse client principal header: %w", err)
	}

	p := Principal{
		UserID:      cp.UserID,
		UserDetails: cp.UserDetails,
	}
	for _, r := range cp.UserRoles {
		// anonymous/authenticated are platform markers, not app roles
		switch strings.ToLower(r) {
		case "anonymous":
			continue
		case "authenticated":
			p.IsAuthenticated = true
		default:
			p.Roles = append(p.Roles, r)
		}
	}
	if cp.UserID != "" || cp.UserDetails != "" {
		p.IsAuthenticated = true
	}
	return p, nil
}
