package relay

import (
	"strings"
	"unicode/utf8"
)

// Validator classifies inbound messages before any quota is consumed.
type Validator struct {
	// MaxLength is the maximum message length in characters (runes).
	MaxLength int
}

// Classify orders its checks deliberately: commands and empty messages
// are identified first because they bypass rate limiting entirely, and
// the length check runs before admission so oversized messages never
// consume quota.
//
// Only a missing text payload is Empty. Whitespace-only text is a normal
// chat message and goes to the provider like any other.
func (v *Validator) Classify(text string) MessageClass {
	if text == "" {
		return ClassEmpty
	}
	if strings.HasPrefix(text, "/") {
		return ClassCommand
	}
	if v != nil && v.MaxLength > 0 && utf8.RuneCountInString(text) > v.MaxLength {
		return ClassTooLong
	}
	return ClassChat
}

// Command extracts the command name from a command message: the first
// token without the leading slash or a trailing @botname mention. The
// name is matched case-sensitively, so /HELP is not /help. Returns ""
// for non-command input.
func Command(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}

	name := strings.Fields(text)[0][1:]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return name
}
