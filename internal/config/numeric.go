package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

const (
	// NumericLenient reads the leading integer of a value the way atoi does
	// and falls back to the default when there is none or it is below 1.
	NumericLenient = "lenient"
	// NumericStrict rejects anything that is not a positive base-10 integer.
	NumericStrict = "strict"
)

func NormalizeNumericPolicy(raw string) (string, error) {
	policy := strings.ToLower(strings.TrimSpace(raw))
	switch policy {
	case "":
		return NumericLenient, nil
	case NumericLenient, NumericStrict:
		return policy, nil
	default:
		return "", fmt.Errorf("invalid numeric policy %q (expected %s|%s)", raw, NumericLenient, NumericStrict)
	}
}

// ParseCount converts the raw value of a count option such as --batch-size.
func ParseCount(name, raw string, fallback int, policy string) (int, error) {
	trimmed := strings.TrimSpace(raw)

	if policy == NumericStrict {
		n, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, fmt.Errorf("--%s: %q is not an integer", name, raw)
		}
		if n < 1 {
			return 0, fmt.Errorf("--%s must be at least 1, got %d", name, n)
		}
		return n, nil
	}

	n, rest, ok := leadingInt(trimmed)
	if !ok || n < 1 {
		slog.Warn("ignoring invalid count", "option", name, "value", raw, "using", fallback)
		return fallback, nil
	}

	if rest != "" {
		slog.Warn("trailing characters ignored in count", "option", name, "value", raw, "using", n)
	}

	return n, nil
}

// leadingInt parses an optional sign followed by decimal digits and ignores
// whatever follows them, which is returned as rest.
func leadingInt(s string) (n int, rest string, ok bool) {
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}

	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}

	if end == digits {
		return 0, s, false
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, s, false
	}

	return n, s[end:], true
}
