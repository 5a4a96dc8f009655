// Package auth hashes and verifies snippet passwords.
//
// A secured snippet stores a token derived from its password, never the
// password itself. The token is produced by a "slow hash": a fast digest
// (BLAKE2s-256) applied repeatedly, so every guess an attacker makes costs
// several digest rounds instead of one.
//
// Token format: 64 lowercase hex characters (one BLAKE2s-256 digest).
//
//	password ──blake2s──▶ d1 ──blake2s──▶ d2 ... ──blake2s──▶ d6 ──hex──▶ token
//
// Hashing is deterministic (no salt), so a candidate password can be hashed
// up front and compared against the stored token later.
package auth

import (
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/blake2s"
)

// defaultRounds is the total number of BLAKE2s applications: one over the
// password bytes, then five more over the previous digest.
const defaultRounds = 6

// PasswordService hashes and verifies snippet passwords.
//
// The round count is a field so tests can check that it actually changes
// the output.
type PasswordService struct {
	rounds int
}

// NewPasswordService creates a PasswordService with the default round count.
func NewPasswordService() *PasswordService {
	return &PasswordService{rounds: defaultRounds}
}

// newPasswordServiceWithRounds is used by the tests in this package.
func newPasswordServiceWithRounds(rounds int) *PasswordService {
	if rounds < 1 {
		rounds = 1
	}
	return &PasswordService{rounds: rounds}
}

// Hash returns the hex token for plaintext.
//
// The same plaintext always yields the same token:
//
//	ps.Hash("hunter2") == ps.Hash("hunter2") // true
func (p *PasswordService) Hash(plaintext string) string {
	digest := blake2s.Sum256([]byte(plaintext))
	for i := 1; i < p.rounds; i++ {
		digest = blake2s.Sum256(digest[:])
	}
	return hex.EncodeToString(digest[:])
}

// Equal compares two tokens in constant time.
//
// TIMING SAFETY:
// A plain == returns as soon as the first byte differs, which leaks how many
// leading characters an attacker got right. subtle.ConstantTimeCompare
// always inspects every byte. Tokens are fixed-length hex, so the only
// early exit (a length mismatch) reveals nothing useful.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
