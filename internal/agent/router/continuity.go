package router

import "strings"

// ContinuityPolicy reports whether a query continues the previous
// conversation thread.
type ContinuityPolicy func(query string) bool

// followUpPhrases signal continuation of an ongoing thread: anaphora,
// clarification requests, and short imperatives.
var followUpPhrases = []string{
	"how do i do that",
	"how do i implement",
	"how would i",
	"what about",
	"what does that mean",
	"tell me more",
	"more detail",
	"can you explain",
	"can you elaborate",
	"elaborate",
	"clarify",
	"go on",
	"continue",
	"and then",
	"what's next",
	"what next",
	"next step",
	"why is that",
	"is that",
	"does that",
	"do that",
	"about that",
	"about this",
	"about it",
	"the first one",
	"the second one",
	"that one",
	"expand on",
	"yes please",
	"ok do it",
}

// newTopicPhrases signal a topic change: named regulations, named security
// domains, and "what is X" openings.
var newTopicPhrases = []string{
	"new question",
	"different topic",
	"different question",
	"unrelated",
	"switching topics",
	"change of topic",
	"on another note",
	"separately",
	"what is gdpr",
	"what is hipaa",
	"what is pci",
	"what is nis2",
	"what is sox",
	"what is iso 27001",
	"gdpr",
	"hipaa",
	"pci-dss",
	"pci dss",
	"nis2",
	"iso 27001",
	"ransomware attack",
	"phishing campaign",
	"new incident",
	"another incident",
}

// shortFollowUpWords: queries at or under this length are treated as
// follow-ups when a prior thread exists, even without a signal phrase.
const shortFollowUpWords = 5

// DefaultContinuity is the lexical Stage A policy. It is deterministic and
// makes no model calls.
func DefaultContinuity(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}

	// An explicit topic change always wins over continuation signals.
	if containsAny(q, newTopicPhrases) {
		return false
	}
	if containsAny(q, followUpPhrases) {
		return true
	}
	return len(strings.Fields(q)) <= shortFollowUpWords
}

// securityKeywords drive the degraded domain check when the classifier is
// unavailable.
var securityKeywords = []string{
	"security", "hack", "hacked", "breach", "malware", "virus", "ransomware",
	"phishing", "vulnerability", "vulnerabilities", "cve", "exploit",
	"firewall", "encryption", "password", "credential", "attack", "attacker",
	"threat", "incident", "compromise", "compromised", "intrusion", "botnet",
	"trojan", "spyware", "ddos", "injection", "xss", "mitre", "ioc",
	"indicator of compromise", "zero-day", "zero day", "patch", "siem",
	"soc", "forensic", "pentest", "penetration test", "audit", "gdpr",
	"hipaa", "pci", "nis2", "iso 27001", "compliance", "data leak",
	"exfiltration", "apt", "suspicious",
}

// keywordDomainCheck is the fallback domain classifier. Very short queries
// default to non-domain.
func keywordDomainCheck(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if len(q) < minDomainQueryLen {
		return false
	}
	return containsAny(q, securityKeywords)
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
