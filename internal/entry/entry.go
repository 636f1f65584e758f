package entry

import (
	"time"
)

// Entry is an encoded payload held by the memory store
type Entry struct {
	// Payload is the serialized value. It may be empty but never nil.
	Payload []byte

	// ExpiresAt indicates when this entry expires (nil means no expiration)
	ExpiresAt *time.Time

	// CreatedAt is when this entry was written
	CreatedAt time.Time
}

// New creates an entry that expires after ttl. A ttl of zero or less means
// the entry never expires.
func New(payload []byte, ttl time.Duration) *Entry {
	now := time.Now()
	if payload == nil {
		payload = []byte{}
	}

	e := &Entry{
		Payload:   payload,
		CreatedAt: now,
	}

	if ttl > 0 {
		expiry := now.Add(ttl)
		e.ExpiresAt = &expiry
	}

	return e
}

// IsExpired returns true if the entry has expired
func (e *Entry) IsExpired() bool {
	return e.ExpiredAt(time.Now())
}

// ExpiredAt reports whether the entry is expired at the given instant
func (e *Entry) ExpiredAt(now time.Time) bool {
	if e.ExpiresAt == nil {
		return false
	}
	return !now.Before(*e.ExpiresAt)
}

// TTL returns the time remaining until expiration.
// Returns 0 if the entry has no expiration or has already expired.
func (e *Entry) TTL() time.Duration {
	if e.ExpiresAt == nil {
		return 0
	}

	remaining := time.Until(*e.ExpiresAt)
	if remaining < 0 {
		return 0
	}

	return remaining
}

// Age returns how long ago this entry was created
func (e *Entry) Age() time.Duration {
	return time.Since(e.CreatedAt)
}

// HasExpiry returns true if the entry has an expiration time set
func (e *Entry) HasExpiry() bool {
	return e.ExpiresAt != nil
}

// String returns a string representation of the entry (for debugging)
func (e *Entry) String() string {
	if e.ExpiresAt == nil {
		return "Entry{no-expiry}"
	}
	return "Entry{expires: " + e.ExpiresAt.Format(time.RFC3339) + "}"
}
