package specialist

import (
	"regexp"
	"strings"
)

// ToolNecessityFunc reports whether a query plausibly requires tool evidence
// to answer well. Used only to cap confidence, never to force tool use.
type ToolNecessityFunc func(query string) bool

// evidenceKeywords mark queries that usually call for a live lookup rather
// than general knowledge.
var evidenceKeywords = []string{
	"check",
	"lookup",
	"look up",
	"analyze",
	"scan",
	"verify",
	"investigate",
	"is this malicious",
	"reputation",
	"breach",
	"exposed",
	"compromised",
	"latest",
	"recent",
	"current",
	"cve-",
	"vulnerability in",
}

// evidencePatterns match concrete artifacts (hashes, IPs) embedded in the
// query text.
var evidencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[a-fA-F0-9]{32}\b`),              // md5
	regexp.MustCompile(`\b[a-fA-F0-9]{40}\b`),              // sha1
	regexp.MustCompile(`\b[a-fA-F0-9]{64}\b`),              // sha256
	regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),      // ipv4
	regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,}\b`),         // cve id
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+`), // email
}

// DefaultToolNecessity is the keyword heuristic used unless an agent is
// constructed with a replacement.
func DefaultToolNecessity(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range evidenceKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for _, re := range evidencePatterns {
		if re.MatchString(query) {
			return true
		}
	}
	return false
}
