package engine

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Channel identifies where a message was received.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelURL   Channel = "url"
)

// ParseChannel validates a channel string.
func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelEmail:
		return ChannelEmail, nil
	case ChannelSMS:
		return ChannelSMS, nil
	case ChannelURL:
		return ChannelURL, nil
	default:
		return "", fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, s)
	}
}

// Normalize produces the single string to be scored. For the url channel the
// URL is preferred over the text; for email and sms only the text counts.
// NFKC folding maps fullwidth and other homoglyph variants onto their ASCII
// forms so obfuscated lures score like plain ones. Pure function.
func Normalize(channel Channel, text, url string) (string, error) {
	var raw string
	switch channel {
	case ChannelURL:
		raw = url
		if strings.TrimSpace(raw) == "" {
			raw = text
		}
	case ChannelEmail, ChannelSMS:
		raw = text
	default:
		return "", fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, channel)
	}

	normalized := strings.TrimSpace(norm.NFKC.String(raw))
	if normalized == "" {
		return "", fmt.Errorf("%w: empty text for channel %s", ErrInvalidInput, channel)
	}
	return normalized, nil
}
