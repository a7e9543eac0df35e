package federation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrClubNotFound is returned by LookupClub when the federation has no club
// with the requested abbreviation
var ErrClubNotFound = errors.New("club not found in federation registry")

// RateLimitError represents a rate limit error from the API
type RateLimitError struct {
	StatusCode int
	RetryAfter string
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("rate limit exceeded (status %d), retry after: %s", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (status %d): %s", e.StatusCode, e.Message)
}

// APIError represents a general API error
type APIError struct {
	StatusCode int
	Message    string
	Errors     []string
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("API error (status %d): %s - %s", e.StatusCode, e.Message, strings.Join(e.Errors, ", "))
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}
