package utils

import (
	"net/http"
	"strconv"
)

// DefaultLimit is the default number of items returned by list endpoints
const DefaultLimit = 20

// MaxLimit is the maximum number of items a list endpoint returns
const MaxLimit = 100

// ParseLimit reads the limit query parameter, clamped to [1, MaxLimit].
func ParseLimit(r *http.Request) int {
	limit := parseIntQuery(r.URL.Query().Get("limit"), DefaultLimit)
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return limit
}

func parseIntQuery(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}
