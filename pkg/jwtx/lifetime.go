package jwtx

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xhit/go-str2duration/v2"
)

// ParseLifetime reads token lifetimes written the way operators write them
// in env files: "90s", "5m", "1h", "7d", "2w" or combinations like "1d12h".
// A bare integer is a number of seconds.
func ParseLifetime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("jwtx: empty lifetime")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("jwtx: lifetime must be positive, got %q", s)
		}
		return time.Duration(n) * time.Second, nil
	}

	d, err := str2duration.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("jwtx: parse lifetime %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("jwtx: lifetime must be positive, got %q", s)
	}
	return d, nil
}

// FormatLifetime is the inverse of ParseLifetime for whole units: 7 days
// prints as "7d", five minutes as "5m". Anything else uses
// time.Duration's own format.
func FormatLifetime(d time.Duration) string {
	const day = 24 * time.Hour
	switch {
	case d <= 0:
		return "0s"
	case d%day == 0:
		return strconv.FormatInt(int64(d/day), 10) + "d"
	case d%time.Hour == 0:
		return strconv.FormatInt(int64(d/time.Hour), 10) + "h"
	case d%time.Minute == 0:
		return strconv.FormatInt(int64(d/time.Minute), 10) + "m"
	case d%time.Second == 0:
		return strconv.FormatInt(int64(d/time.Second), 10) + "s"
	}
	return d.String()
}
