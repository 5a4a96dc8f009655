// Package expiry holds the sliding-window expiration rules shared by the
// snippet entity and the store.
//
// A snippet is live while now < expiresAt. The instant now == expiresAt
// already counts as expired. Every qualifying access pushes expiresAt
// forward from its previous value, not from now:
//
//	created:  expiresAt = now + ttl
//	get/like: expiresAt = expiresAt + grace
//	edit:     expiresAt = expiresAt + delta   (or + grace with no delta)
package expiry

import "time"

// DefaultGrace is how far each read or like extends a snippet's lifetime.
const DefaultGrace = 5 * time.Second

// Expired reports whether a snippet expiring at expiresAt is dead at now.
func Expired(expiresAt, now time.Time) bool {
	return !now.Before(expiresAt)
}

// Initial returns the expiry of a snippet created at now with the given ttl.
func Initial(now time.Time, ttl time.Duration) time.Time {
	return now.Add(ttl)
}

// Extend pushes expiresAt forward by delta. Non-positive deltas are ignored
// so an expiry never moves backwards.
func Extend(expiresAt time.Time, delta time.Duration) time.Time {
	if delta <= 0 {
		return expiresAt
	}
	return expiresAt.Add(delta)
}

// Seconds converts a (possibly fractional) number of seconds to a Duration,
// truncating to whole nanoseconds.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
