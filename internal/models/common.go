package models

import "strings"

// ErrorResponse is a standardized error response for API
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// PairKey is the canonical key of an unordered user pair: the two ids in
// lexicographic order joined by ':'. PairKey(a, b) == PairKey(b, a).
func PairKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + ":" + b
}
