package app

import (
	"fmt"
	"math"
)

// addInt64AndU64Checked adds an unsigned delta to a unix-seconds base, failing
// instead of wrapping. Used for session end-time computation.
func addInt64AndU64Checked(base int64, delta uint64, what string) (int64, error) {
	if delta > math.MaxInt64 {
		return 0, fmt.Errorf("%s: delta overflows int64: %d", what, delta)
	}
	d := int64(delta)
	if base > math.MaxInt64-d {
		return 0, fmt.Errorf("%s: overflow: base=%d delta=%d", what, base, delta)
	}
	return base + d, nil
}

// addU64Checked adds two unsigned tallies, failing instead of wrapping. Used
// for pot accounting.
func addU64Checked(a, b uint64, what string) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, fmt.Errorf("%s: overflow: %d + %d", what, a, b)
	}
	return a + b, nil
}

// mulU64Checked multiplies two unsigned values, failing instead of wrapping.
// Used for the fee numerator.
func mulU64Checked(a, b uint64, what string) (uint64, error) {
	if a != 0 && b > math.MaxUint64/a {
		return 0, fmt.Errorf("%s: overflow: %d * %d", what, a, b)
	}
	return a * b, nil
}
