package utils

import (
	"strings"

	"github.com/gosimple/slug"
)

// NormalizeSlug creates a URL-friendly slug using the gosimple/slug library
// This handles all Unicode characters including accented European names
func NormalizeSlug(text string) string {
	if text == "" {
		return ""
	}

	return slug.Make(text)
}

// GenerateClubSlug creates a slug for a club name
func GenerateClubSlug(clubName string) string {
	clubName = strings.TrimSpace(clubName)
	if clubName == "" {
		return "club"
	}
	return NormalizeSlug(clubName)
}
