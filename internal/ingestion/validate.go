package ingestion

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	errZeroSum    = errors.New("sum is zero")
	errInvalidSum = errors.New("sum is not a decimal number")
)

// isDigits reports whether s is a non-empty run of ASCII decimal digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// parseSum parses a commission amount. Zero amounts ("0", "0.0", "0.00", ...)
// are rejected with errZeroSum.
func parseSum(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", errInvalidSum)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", errInvalidSum, s)
	}
	if v == 0 {
		return 0, errZeroSum
	}
	return v, nil
}
