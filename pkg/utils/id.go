package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new random identifier. A non-empty prefix is prepended
// with a dash so ids stay recognisable in logs ("item-…", "job-…").
func GenerateID(prefix string) string {
	id := uuid.New().String()
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}
