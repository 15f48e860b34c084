// File path: internal/router/rules.go
package router

import (
	"regexp"
	"strings"
)

// Strategy is the retrieval method chosen for a query.
type Strategy string

const (
	StrategyAPI    Strategy = "api"
	StrategyVector Strategy = "vector"
	StrategyHybrid Strategy = "hybrid"
	StrategyError  Strategy = "error"
)

// Classification is the outcome of matching a query against the ordered rule
// table. Extracted tokens drive predicate construction in the router.
type Classification struct {
	Strategy Strategy
	Rule     string

	JobNumber     string
	StatusKeyword string
	Customer      string
	WantsOverdue  bool
	WantsDueToday bool
	WantsDueWeek  bool
	WantsRush     bool
}

// HasStructuredFilter reports whether any structured predicate was extracted.
func (c Classification) HasStructuredFilter() bool {
	return c.StatusKeyword != "" || c.Customer != "" ||
		c.WantsOverdue || c.WantsDueToday || c.WantsDueWeek || c.WantsRush
}

var (
	jobNumberPattern  = regexp.MustCompile(`(?i)\b(?:job|order)\s*#?\s*(\d+)\b`)
	bareNumberPattern = regexp.MustCompile(`^\s*#?(\d{3,})\s*$`)
	customerPattern   = regexp.MustCompile(`(?i)\b(?:orders?|jobs?|work)\s+for\s+(.+?)\s*\??$`)
	semanticMarkers   = []string{"similar to", "related to", "like the", "anything about", "something like"}
)

// statusKeywords maps query words to the status substring they filter on.
// Workflow states are free text in the OMS, so matching is substring based.
var statusKeywords = map[string]string{
	"approved":   "approved",
	"pending":    "pending",
	"proofing":   "proof",
	"proof":      "proof",
	"production": "production",
	"printing":   "production",
	"hold":       "hold",
	"shipped":    "shipped",
	"completed":  "completed",
	"closed":     "closed",
}

// Classify applies the rule table in priority order; the first match decides
// the strategy. Explicit job numbers always win so a lookup miss can be
// reported as such instead of dissolving into semantic noise.
func Classify(query string) Classification {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return Classification{Strategy: StrategyVector, Rule: "empty"}
	}

	if match := jobNumberPattern.FindStringSubmatch(query); match != nil {
		return Classification{Strategy: StrategyAPI, Rule: "job-number", JobNumber: match[1]}
	}
	if match := bareNumberPattern.FindStringSubmatch(query); match != nil {
		return Classification{Strategy: StrategyAPI, Rule: "bare-number", JobNumber: match[1]}
	}

	for _, marker := range semanticMarkers {
		if strings.Contains(normalized, marker) {
			return Classification{Strategy: StrategyVector, Rule: "semantic-marker"}
		}
	}

	c := Classification{}
	for keyword, needle := range statusKeywords {
		if containsWord(normalized, keyword) {
			c.StatusKeyword = needle
			break
		}
	}
	if containsWord(normalized, "overdue") || strings.Contains(normalized, "past due") || containsWord(normalized, "late") {
		c.WantsOverdue = true
	}
	if strings.Contains(normalized, "due today") || strings.Contains(normalized, "ship today") {
		c.WantsDueToday = true
	}
	if strings.Contains(normalized, "due this week") || strings.Contains(normalized, "ship this week") {
		c.WantsDueWeek = true
	}
	if containsWord(normalized, "rush") || containsWord(normalized, "must") || containsWord(normalized, "expedited") {
		c.WantsRush = true
	}
	if match := customerPattern.FindStringSubmatch(strings.TrimSpace(query)); match != nil {
		c.Customer = strings.TrimSpace(match[1])
	}

	if c.HasStructuredFilter() {
		c.Strategy = StrategyAPI
		c.Rule = "structured"
		return c
	}
	return Classification{Strategy: StrategyVector, Rule: "semantic-default"}
}

func containsWord(text, word string) bool {
	idx := 0
	for {
		pos := strings.Index(text[idx:], word)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(word)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '\''
}
