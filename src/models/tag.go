package models

import (
	"regexp"
	"strings"
)

// Tag is shared across operations; deleting an operation never deletes its
// tags.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TagRule attaches tags to operations whose details match a pattern. Plain
// patterns match as case-insensitive substrings; regex patterns are applied
// verbatim.
type TagRule struct {
	ID              int64   `json:"id"`
	MatchingPattern string  `json:"matching_pattern"`
	IsRegex         bool    `json:"is_regex"`
	TagIDs          []int64 `json:"tags_ids"`
}

// Matches reports whether the rule applies to the given operation details.
// An invalid regex pattern matches nothing.
func (r *TagRule) Matches(details string) bool {
	if r.MatchingPattern == "" {
		return false
	}
	if r.IsRegex {
		re, err := regexp.Compile(r.MatchingPattern)
		if err != nil {
			return false
		}
		return re.MatchString(details)
	}
	return strings.Contains(strings.ToLower(details), strings.ToLower(r.MatchingPattern))
}
