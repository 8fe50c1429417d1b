package tables

import (
	"fmt"
	"regexp"
	"strings"
)

var nonAlphanumRe = regexp.MustCompile(`[^a-z0-9]+`)

// Normalize canonicalizes a field value for uniqueness comparison:
// lowercase, runs of non-alphanumerics become a single space, trimmed.
func Normalize(value any) string {
	s, ok := value.(string)
	if !ok {
		s = fmt.Sprintf("%v", value)
	}

	s = strings.ToLower(s)
	s = nonAlphanumRe.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

// UniqueKey builds the unique-index document ID for a field value.
func UniqueKey(fieldID, normalized string) string {
	return fieldID + "::" + normalized
}
