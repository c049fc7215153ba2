package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseInterval parses a schedule interval string like "1h", "30m",
// "100ms", or "2d". time.ParseDuration already understands everything
// except the "d" (day) suffix, which it rejects, so that one case is
// handled directly and everything else is delegated.
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("scheduler: empty interval")
	}
	if strings.HasSuffix(s, "d") {
		numPart := strings.TrimSuffix(s, "d")
		days, err := strconv.ParseFloat(numPart, 64)
		if err != nil {
			return 0, fmt.Errorf("scheduler: invalid day interval %q: %w", s, err)
		}
		return time.Duration(days * 24 * float64(time.Hour)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("scheduler: invalid interval %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("scheduler: interval %q must be positive", s)
	}
	return d, nil
}
