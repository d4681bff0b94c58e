// Package identity derives the stable conversation key from gateway addresses.
package identity

import (
	"strings"
)

const (
	countryCode   = "55"
	userJIDSuffix = "@s.whatsapp.net"
	groupSuffix   = "@g.us"
	broadcastJID  = "status@broadcast"
)

// Normalize reduces a phone number to digits, drops a leading trunk zero and
// ensures the Brazilian country code prefix.
func Normalize(phone string) string {
	var b strings.Builder
	b.Grow(len(phone) + len(countryCode))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimPrefix(b.String(), "0")
	if digits == "" {
		return ""
	}
	if !strings.HasPrefix(digits, countryCode) {
		digits = countryCode + digits
	}
	return digits
}

// FromJID returns the normalized phone number of a WhatsApp JID such as
// 5569999089202@s.whatsapp.net. Device suffixes (":12") are ignored.
func FromJID(jid string) string {
	user, _, _ := strings.Cut(jid, "@")
	user, _, _ = strings.Cut(user, ":")
	return Normalize(user)
}

// ToJID returns the user JID for a normalized phone number.
func ToJID(phone string) string {
	return phone + userJIDSuffix
}

// IsGroup reports whether the JID addresses a group chat.
func IsGroup(jid string) bool {
	return strings.HasSuffix(jid, groupSuffix)
}

// IsBroadcast reports whether the JID is the status broadcast list.
func IsBroadcast(jid string) bool {
	return jid == broadcastJID
}
