package domain

import (
	"encoding/base64"
	"strconv"
)

// Page size bounds for list operations.
const (
	DefaultMaxResults = 100
	MaxMaxResults     = 1000
)

// PageRequest holds pagination parameters for list operations.
type PageRequest struct {
	MaxResults int
	PageToken  string // base64-encoded offset
}

// Offset decodes the page token; invalid tokens start from 0.
func (p PageRequest) Offset() int {
	raw, err := base64.StdEncoding.DecodeString(p.PageToken)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Limit returns the page size clamped to [1, MaxMaxResults].
func (p PageRequest) Limit() int {
	switch {
	case p.MaxResults <= 0:
		return DefaultMaxResults
	case p.MaxResults > MaxMaxResults:
		return MaxMaxResults
	default:
		return p.MaxResults
	}
}

// NextPageToken returns the token of the page after offset, or "" on the last page.
func NextPageToken(offset, limit int, total int64) string {
	next := offset + limit
	if int64(next) >= total {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(next)))
}
