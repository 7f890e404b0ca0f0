package github

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v68/github"
)

// APIError represents a GitHub API error response
type APIError struct {
	StatusCode int
	Message    string
	Errors     []APIErrorDetail
	// Rate limit information when rate limited
	RateLimit *RateLimitInfo
}

// APIErrorDetail represents individual error details from GitHub
type APIErrorDetail struct {
	Resource string
	Field    string
	Code     string
	Message  string
}

// RateLimitInfo contains rate limit information from response headers
type RateLimitInfo struct {
	Limit     int
	Remaining int
	Reset     int64 // Unix timestamp
}

// Error returns the error message
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("GitHub API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("GitHub API error (status %d)", e.StatusCode)
}

// IsRateLimitError returns true if the error is a rate limit error
func IsRateLimitError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		if apiErr.StatusCode == http.StatusForbidden && apiErr.RateLimit != nil {
			return true
		}
	}
	return false
}

// IsNotFoundError returns true if the error is a not found error
func IsNotFoundError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsAuthenticationError returns true if the error is an authentication error
func IsAuthenticationError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		// Exclude rate limit errors (they're not auth errors)
		if IsRateLimitError(err) {
			return false
		}
		return apiErr.StatusCode == http.StatusUnauthorized ||
			apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

// convertError maps go-github error responses onto APIError.
// Other errors are returned unchanged.
func convertError(err error) error {
	var rlErr *github.RateLimitError
	if errors.As(err, &rlErr) {
		apiErr := &APIError{
			StatusCode: http.StatusForbidden,
			Message:    rlErr.Message,
			RateLimit: &RateLimitInfo{
				Limit:     rlErr.Rate.Limit,
				Remaining: rlErr.Rate.Remaining,
				Reset:     rlErr.Rate.Reset.Unix(),
			},
		}
		if rlErr.Response != nil {
			apiErr.StatusCode = rlErr.Response.StatusCode
		}
		return apiErr
	}

	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) {
		apiErr := &APIError{Message: errResp.Message}
		if errResp.Response != nil {
			apiErr.StatusCode = errResp.Response.StatusCode
		}
		for _, e := range errResp.Errors {
			apiErr.Errors = append(apiErr.Errors, APIErrorDetail{
				Resource: e.Resource,
				Field:    e.Field,
				Code:     e.Code,
				Message:  e.Message,
			})
		}
		return apiErr
	}
	return err
}
