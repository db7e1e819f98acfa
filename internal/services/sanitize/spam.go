// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sanitize

import (
	"regexp"
	"strings"
)

// SpamPolicy decides what a positive spam heuristic means for a caller.
type SpamPolicy int

const (
	// SpamReject turns a positive into a hard validation error.
	SpamReject SpamPolicy = iota
	// SpamFlag accepts the text but marks it for moderation.
	SpamFlag
)

// ParseSpamPolicy maps a config value to a policy. Unknown values reject.
func ParseSpamPolicy(s string) SpamPolicy {
	if strings.EqualFold(strings.TrimSpace(s), "flag") {
		return SpamFlag
	}
	return SpamReject
}

func (p SpamPolicy) String() string {
	if p == SpamFlag {
		return "flag"
	}
	return "reject"
}

// spamKeywords is matched case-insensitively as substrings.
var spamKeywords = []string{
	"viagra", "cialis", "casino", "lottery", "loteria", "lotería",
	"bitcoin", "crypto", "forex", "free money", "make money", "earn money",
	"click here", "buy now", "100% free", "winner", "you have won",
	"work from home", "weight loss", "cheap pills", "porn", "xxx",
	"gana dinero", "dinero fácil", "dinero facil", "haz clic", "haga clic",
	"préstamo rápido", "prestamo rapido", "oferta exclusiva", "gratis!!!",
}

const (
	minURLs      = 3
	minRepeatRun = 6
)

var (
	urlRe      = regexp.MustCompile(`(?i)(https?://|www\.)\S+`)
	upperRunRe = regexp.MustCompile(`[A-ZÁÉÍÓÚÑ]{10,}`)
	digitRunRe = regexp.MustCompile(`[0-9]{10,}`)
)

// DetectSpam reports whether text trips any of the spam heuristics. False
// positives are expected; callers choose the consequence via SpamPolicy.
func DetectSpam(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range spamKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	if len(urlRe.FindAllStringIndex(text, minURLs)) >= minURLs {
		return true
	}
	if upperRunRe.MatchString(text) || digitRunRe.MatchString(text) {
		return true
	}

	return hasRepeatedRun(text, minRepeatRun)
}

// hasRepeatedRun reports a run of n identical runes (RE2 has no backreferences).
func hasRepeatedRun(text string, n int) bool {
	var prev rune
	run := 0
	for i, r := range []rune(text) {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
		prev = r
	}
	return false
}

// CheckSpam applies policy to text and returns (flagged, rejected).
func CheckSpam(text string, policy SpamPolicy) (flagged, rejected bool) {
	if !DetectSpam(text) {
		return false, false
	}
	if policy == SpamFlag {
		return true, false
	}
	return false, true
}
