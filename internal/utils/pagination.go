// Package utils holds small helpers shared across layers: query-string
// parsing for the paginated order listing and minor-unit money formatting
// for receipts. Nothing here knows about the domain types.
package utils

import "strconv"

// AtoiDefault parses s as an int, returning def when s is empty or not a
// plain integer. The paginated order listing feeds page and page_size query
// values through this, so a garbled parameter degrades to the default page
// rather than a 400.
//
// No trimming: " 42" is rejected, matching strconv.Atoi.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
