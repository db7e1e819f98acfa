// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package sanitize cleans and validates untrusted input from the public
// review form and from admin batch imports. Everything here is pure.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// MaxDomainLength is the longest accepted e-mail domain.
const MaxDomainLength = 255

var (
	// strict strips every tag; the default skip list drops the bodies of
	// script, style, iframe, object, noscript and friends.
	strict = bluemonday.StrictPolicy()

	eventHandlerRe = regexp.MustCompile(`(?i)\bon(abort|blur|change|click|contextmenu|dblclick|drag[a-z]*|drop|error|focus[a-z]*|input|invalid|key(down|press|up)|load[a-z]*|mouse[a-z]+|pointer[a-z]+|reset|resize|scroll|select|submit|toggle|touch[a-z]+|unload|wheel|animation[a-z]+|transition[a-z]+|begin|end|message|pageshow|popstate|storage)\s*=`)
	jsURIRe        = regexp.MustCompile(`(?i)(java|vb)script\s*:`)
	dataURIRe      = regexp.MustCompile(`(?i)data\s*:\s*text/html`)
	tagRe          = regexp.MustCompile(`<\s*/?\s*[A-Za-z][A-Za-z0-9-]*(\s[^<>]*)?/?\s*>`)
	tagOpenRe      = regexp.MustCompile(`<(\s*[/!?A-Za-z])`)
	embedTagRe     = regexp.MustCompile(`(?is)<\s*(script|style|iframe|object|embed|applet|frame|frameset)\b.*?(<\s*/\s*(script|style|iframe|object|embed|applet|frame|frameset)\s*>|$)`)

	emailRe   = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@([A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?\.)+[A-Za-z]{2,}$`)
	phoneRe   = regexp.MustCompile(`^\+56(9\d{8}|2\d{8})$`)
	phoneStrp = regexp.MustCompile(`[\s-]+`)
)

// SanitizeText trims, truncates to maxLength runes and strips markup
// injection. Invalid UTF-8 and control characters other than newline and
// tab are dropped. The result never exceeds maxLength runes.
func SanitizeText(input string, maxLength int) string {
	s := stripControl(strings.ToValidUTF8(input, ""))
	s = truncate(strings.TrimSpace(s), maxLength)

	s = embedTagRe.ReplaceAllString(s, "")
	s = strict.Sanitize(s)
	// bluemonday escapes entities; store plain text and let the renderer escape.
	s = html.UnescapeString(s)
	// Entity-encoded markup comes back as tags after unescaping. Comparison
	// signs in prose are left alone.
	s = tagRe.ReplaceAllString(s, "")
	s = tagOpenRe.ReplaceAllString(s, "$1")
	s = jsURIRe.ReplaceAllString(s, "")
	s = dataURIRe.ReplaceAllString(s, "")
	s = eventHandlerRe.ReplaceAllString(s, "")

	return truncate(strings.TrimSpace(s), maxLength)
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeValue is SanitizeText for decoded JSON values; anything that is
// not a string yields "".
func SanitizeValue(v any, maxLength int) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return SanitizeText(s, maxLength)
}

func truncate(s string, maxLength int) string {
	if maxLength <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return string(runes[:maxLength])
}

// ValidateEmail applies a conservative local@domain.tld check.
func ValidateEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "..") {
		return false
	}
	if strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return false
	}

	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	local, domain := s[:at], s[at+1:]
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") {
		return false
	}
	if strings.HasPrefix(domain, ".") || len(domain) > MaxDomainLength {
		return false
	}

	return emailRe.MatchString(s)
}

// ValidatePhone accepts Chilean numbers: +56 followed by a mobile (9xxxxxxxx)
// or Santiago landline (2xxxxxxxx). Internal spaces and hyphens are ignored.
func ValidatePhone(s string) bool {
	s = phoneStrp.ReplaceAllString(strings.TrimSpace(s), "")
	return phoneRe.MatchString(s)
}
