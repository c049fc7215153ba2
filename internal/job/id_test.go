package job

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

var idPattern = regexp.MustCompile(`^job-\d{4}-\d{2}-\d{2}-[a-z0-9]{6}$`)

func TestGenerateIDFormat(t *testing.T) {
	now := time.Date(2026, 7, 31, 23, 59, 0, 0, time.UTC)
	id, err := GenerateID(now, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !idPattern.MatchString(id) {
		t.Errorf("id %q does not match the required format", id)
	}
	if !strings.HasPrefix(id, "job-2026-07-31-") {
		t.Errorf("expected the UTC start date in the id, got %q", id)
	}
}

func TestGenerateIDUsesUTCDate(t *testing.T) {
	// 02:00 on Aug 1 in UTC+5 is still 21:00 on Jul 31 in UTC; the id's
	// date part must reflect UTC, not the caller's zone.
	loc := time.FixedZone("east", 5*3600)
	now := time.Date(2026, 8, 1, 2, 0, 0, 0, loc) // 2026-07-31T21:00Z
	id, err := GenerateID(now, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(id, "job-2026-07-31-") {
		t.Errorf("expected UTC date 2026-07-31 in id, got %q", id)
	}
}

func TestGenerateIDRetriesOnCollision(t *testing.T) {
	now := time.Now().UTC()
	collisions := 0
	exists := func(id string) bool {
		if collisions < 3 {
			collisions++
			return true
		}
		return false
	}
	id, err := GenerateID(now, exists)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if collisions != 3 {
		t.Errorf("expected 3 collision retries, got %d", collisions)
	}
	if !idPattern.MatchString(id) {
		t.Errorf("id %q does not match the required format", id)
	}
}

func TestGenerateIDFailsWhenExhausted(t *testing.T) {
	now := time.Now().UTC()
	if _, err := GenerateID(now, func(string) bool { return true }); err == nil {
		t.Fatal("expected an error when every candidate collides")
	}
}

func TestGenerateIDsAreUnique(t *testing.T) {
	now := time.Now().UTC()
	seen := map[string]bool{}
	exists := func(id string) bool { return seen[id] }
	for i := 0; i < 200; i++ {
		id, err := GenerateID(now, exists)
		if err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
