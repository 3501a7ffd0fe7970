package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration parses duration strings like "90m", "12h", "7d", "2w".
// Day and week suffixes are accepted on top of the standard Go units
// because schedule configurations are written in days, not hours.
func ParseDuration(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	var unit time.Duration
	switch {
	case strings.HasSuffix(s, "d"):
		unit = 24 * time.Hour
	case strings.HasSuffix(s, "w"):
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid duration %q", raw)
	}

	n, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}

	return time.Duration(n * float64(unit)), nil
}
