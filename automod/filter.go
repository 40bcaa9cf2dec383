// Package automod implements keyword-rule matching for channel names. Rules
// mirror the platform's keyword moderation rules: each keyword optionally
// carries leading/trailing wildcard markers, and a rule's allow list can
// suppress a match.
package automod

import (
	"regexp"
	"slices"
	"strings"
)

// Rule is one keyword moderation rule as configured on the platform
type Rule struct {
	ID            int64
	Name          string
	Enabled       bool
	Keyword       bool // trigger type is keyword matching
	ExemptRoleIDs []int64
	Keywords      []string
	AllowList     []string
}

// Match describes which rule and keyword blocked an input
type Match struct {
	RuleID   int64
	RuleName string
	Keyword  string // the matched substring, boundaries included
}

// IsBlocked checks an input against the configured subset of a guild's rules.
// Rules that are disabled, not keyword-triggered, not in configuredIDs, or
// exempt for one of the user's roles are skipped. The first matching keyword
// of the first matching rule wins; a hit on that rule's allow list suppresses
// the block.
func IsBlocked(input string, userRoleIDs, configuredIDs []int64, rules []Rule) (Match, bool) {
	for _, rule := range rules {
		if !rule.Enabled || !rule.Keyword {
			continue
		}
		if !slices.Contains(configuredIDs, rule.ID) {
			continue
		}
		if hasAnyRole(userRoleIDs, rule.ExemptRoleIDs) {
			continue
		}

		match, ok := getMatch(input, rule.Keywords)
		if !ok {
			continue
		}
		// A matched substring that also matches the allow list is not blocked
		if _, allowed := getMatch(match, rule.AllowList); allowed {
			continue
		}
		return Match{RuleID: rule.ID, RuleName: rule.Name, Keyword: match}, true
	}
	return Match{}, false
}

// getMatch returns the first substring of input matched by any keyword.
// Wildcard markers select the match form:
//
//	word    exact, whole-word boundaries
//	*word   suffix, boundary required after
//	word*   prefix, boundary required before
//	*word*  unanchored substring
func getMatch(input string, keywords []string) (string, bool) {
	for _, keyword := range keywords {
		wildStart := strings.HasPrefix(keyword, "*")
		wildEnd := strings.HasSuffix(keyword, "*")

		word := regexp.QuoteMeta(strings.Trim(keyword, "*"))
		if word == "" {
			continue
		}

		var pattern string
		switch {
		case !wildStart && !wildEnd:
			pattern = `(\s+|^)` + word + `(\s+|$)`
		case wildStart && !wildEnd:
			pattern = word + `(\s+|$)`
		case !wildStart && wildEnd:
			pattern = `(\s+|^)` + word
		default:
			pattern = word
		}

		re, err := regexp.Compile(`(?i)` + pattern)
		if err != nil {
			continue
		}
		if m := re.FindString(input); m != "" {
			return m, true
		}
	}
	return "", false
}

func hasAnyRole(userRoles, exempt []int64) bool {
	for _, role := range userRoles {
		if slices.Contains(exempt, role) {
			return true
		}
	}
	return false
}
