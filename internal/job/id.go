package job

import (
	"crypto/rand"
	"fmt"
	"time"
)

const idSuffixCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

const maxIDAttempts = 20

// GenerateID produces a job ID of the form job-YYYY-MM-DD-xxxxxx, where
// xxxxxx is six lowercase alphanumeric characters. exists is consulted
// to detect collisions against already-persisted jobs; on collision a
// fresh suffix is drawn, up to maxIDAttempts tries.
func GenerateID(now time.Time, exists func(id string) bool) (string, error) {
	datePart := now.UTC().Format("2006-01-02")
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		suffix, err := randomSuffix(6)
		if err != nil {
			return "", err
		}
		id := fmt.Sprintf("job-%s-%s", datePart, suffix)
		if exists == nil || !exists(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("job: could not generate unique id after %d attempts", maxIDAttempts)
}

func randomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("job: read random suffix: %w", err)
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = idSuffixCharset[int(b)%len(idSuffixCharset)]
	}
	return string(out), nil
}
