package scheduler

import (
	"testing"
	"time"
)

func TestParseIntervalSuffixes(t *testing.T) {
	cases := map[string]time.Duration{
		"100ms": 100 * time.Millisecond,
		"30m":   30 * time.Minute,
		"1h":    time.Hour,
		"2d":    48 * time.Hour,
	}
	for input, want := range cases {
		got, err := ParseInterval(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if got != want {
			t.Errorf("parse %q: got %v, want %v", input, got, want)
		}
	}
}

func TestParseIntervalRejectsInvalid(t *testing.T) {
	for _, input := range []string{"", "abc", "-1h", "0m"} {
		if _, err := ParseInterval(input); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}
