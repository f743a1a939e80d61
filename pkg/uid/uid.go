package uid

import "github.com/google/uuid"

// New generates a random identifier (UUIDv4), used for request IDs.
func New() string {
	return uuid.NewString()
}

// Token generates a time-ordered identifier (UUIDv7).
// Tokens minted later sort after earlier ones, which keeps cache
// generations readable in logs. Falls back to a random UUID if the
// clock source fails.
func Token() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
