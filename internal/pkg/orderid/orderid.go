package orderid

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const prefix = "ORD"

// New generates a human-readable external order identifier of the form
// ORD-20060102150405-a1b2c3. The timestamp keeps IDs sortable and the uuid
// suffix keeps concurrent creations in the same second unique.
func New() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return prefix + "-" + time.Now().Format("20060102150405") + "-" + suffix
}

// Valid reports whether s looks like an identifier produced by New. Used to
// reject junk callback data before hitting the database.
func Valid(s string) bool {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || parts[0] != prefix {
		return false
	}
	if len(parts[1]) != 14 || len(parts[2]) != 6 {
		return false
	}
	if _, err := time.Parse("20060102150405", parts[1]); err != nil {
		return false
	}
	return true
}
