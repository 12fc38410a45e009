package fulfillment

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	channelPrefix     = "ticket-"
	maxChannelName    = 100
	fallbackChannelID = "order"
)

// SanitizeChannelName derives a valid channel name from a display name:
// lowercase, accents folded, anything outside [a-z0-9_-] turned into a dash,
// dashes collapsed, at most 100 characters.
func SanitizeChannelName(displayName string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range norm.NFKD.String(strings.ToLower(displayName)) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = fallbackChannelID
	}
	name := channelPrefix + slug
	if len(name) > maxChannelName {
		name = strings.TrimRight(name[:maxChannelName], "-")
	}
	return name
}
