package identity

import (
	"strings"
	"time"
)

// AttributeMap defines which raw token claims populate Claims fields
type AttributeMap struct {
	SubjectID     string `json:"subject_id" yaml:"subject_id"`
	Email         string `json:"email" yaml:"email"`
	DisplayName   string `json:"display_name" yaml:"display_name"`
	AvatarURL     string `json:"avatar_url" yaml:"avatar_url"`
	EmailVerified string `json:"email_verified" yaml:"email_verified"`
}

// DefaultAttributeMap matches the standard OIDC profile claims
func DefaultAttributeMap() AttributeMap {
	return AttributeMap{
		SubjectID:     "sub",
		Email:         "email",
		DisplayName:   "name",
		AvatarURL:     "picture",
		EmailVerified: "email_verified",
	}
}

// FromClaims maps raw ID token claims into a Claims snapshot issued at
// issuedAt. Missing attributes are left empty; nothing is validated here.
func FromClaims(raw map[string]interface{}, attrs AttributeMap, issuedAt time.Time) Claims {
	c := Claims{
		SubjectID:     getStringValue(raw, attrs.SubjectID),
		Email:         getStringValue(raw, attrs.Email),
		DisplayName:   getStringValue(raw, attrs.DisplayName),
		AvatarURL:     getStringValue(raw, attrs.AvatarURL),
		EmailVerified: getBoolValue(raw, attrs.EmailVerified),
		IssuedAt:      issuedAt,
	}

	if c.DisplayName == "" {
		c.DisplayName = getStringValue(raw, "nickname")
	}
	if c.DisplayName == "" {
		given := getStringValue(raw, "given_name")
		family := getStringValue(raw, "family_name")
		c.DisplayName = strings.TrimSpace(given + " " + family)
	}

	return c
}

func getStringValue(m map[string]interface{}, key string) string {
	if key == "" {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// getBoolValue accepts both JSON booleans and the string forms some
// providers emit.
func getBoolValue(m map[string]interface{}, key string) bool {
	if key == "" {
		return false
	}
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}
