package lastquery

import (
	"fmt"
	"strconv"
	"strings"
)

const maxRangeSize = 1000

// ParseNumbers parses result numbers: "1", "1,3,5", "2-4" or a mix such as
// "1,3-5". Spaces separate like commas. Duplicates are dropped and the
// first-seen order is kept.
func ParseNumbers(input string) ([]int, error) {
	var (
		result []int
		seen   = make(map[int]bool)
	)
	add := func(n int) {
		if !seen[n] {
			seen[n] = true
			result = append(result, n)
		}
	}

	for _, part := range strings.FieldsFunc(input, func(r rune) bool { return r == ',' || r == ' ' }) {
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, end, err := parseRange(lo, hi)
			if err != nil {
				return nil, err
			}
			for i := start; i <= end; i++ {
				add(i)
			}
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidNumber, part)
		}
		if n < 1 {
			return nil, fmt.Errorf("%w: %d must be positive", ErrInvalidNumber, n)
		}
		add(n)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("%w: no numbers given", ErrInvalidNumber)
	}
	return result, nil
}

func parseRange(lo, hi string) (int, int, error) {
	start, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid range start %q", ErrInvalidNumber, lo)
	}
	end, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid range end %q", ErrInvalidNumber, hi)
	}
	switch {
	case start < 1:
		return 0, 0, fmt.Errorf("%w: range start %d must be positive", ErrInvalidNumber, start)
	case end < start:
		return 0, 0, fmt.Errorf("%w: range end %d is before start %d", ErrInvalidNumber, end, start)
	case end-start+1 > maxRangeSize:
		return 0, 0, fmt.Errorf("%w: range %d-%d is too large (max %d)", ErrInvalidNumber, start, end, maxRangeSize)
	}
	return start, end, nil
}

// IsNumberRef reports whether arg looks like a result number rather than an
// entity reference.
func IsNumberRef(arg string) bool {
	if arg == "" {
		return false
	}
	for _, r := range arg {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
