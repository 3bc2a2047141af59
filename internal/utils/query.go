// Package utils provides small helpers shared across layers: amount
// conversions and query-string parsing. Nothing here knows about the
// wallet domain beyond satoshi denominations.
package utils

import "strconv"

// AtoiDefault parses s as an int, returning def when s is empty or not a
// valid integer. Handlers use it for optional query parameters such as
// ?max=n on the notification drain.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
