// Package model defines the snippet entity and its external representation.
//
// A Snippet lives inside the store and is only ever mutated there, under the
// store's per-name lock. Everything that leaves the store is either a value
// copy of a Snippet or its View, so callers cannot reach back into stored
// state.
package model

import (
	"time"

	"github.com/rs/xid"

	"github.com/sakif/snippets/internal/auth"
	"github.com/sakif/snippets/internal/expiry"
)

// TimeFormat renders expires_at in UTC with seconds precision.
const TimeFormat = "2006-01-02T15:04:05Z"

// Snippet is a named, expiring piece of text.
//
// ID identifies this particular instance of a name: a name recreated after
// its previous snippet expired gets a new ID. It appears in logs only.
type Snippet struct {
	ID            string
	Name          string
	Content       string
	ExpiresAt     time.Time
	Likes         int
	PasswordToken string
	URL           string // locator, fixed at creation
}

// View is the redacted JSON shape returned by the API. It reports whether a
// password is set but never the password or its token.
//
//	{"name":"basics","expires_at":"2026-01-01T00:00:02Z","snippet":"hello",
//	 "url":"http://localhost:8080/snippets/basics","likes":0,"secure":false}
type View struct {
	Name      string `json:"name"`
	ExpiresAt string `json:"expires_at"`
	Snippet   string `json:"snippet"`
	URL       string `json:"url"`
	Likes     int    `json:"likes"`
	Secure    bool   `json:"secure"`
}

// Edit describes the changes requested by an edit. Nil pointers leave the
// field unchanged; a zero ExtendBy means "apply the default grace".
type Edit struct {
	// Candidate is the token hashed from the password the caller supplied.
	Candidate string
	NewName   *string
	Content   *string
	ExtendBy  time.Duration
}

// NewSnippet builds an unsecured snippet with zero likes and no expiry.
// The store's create path sets ExpiresAt from the requested ttl.
func NewSnippet(name, content, url string) *Snippet {
	return &Snippet{
		ID:      xid.New().String(),
		Name:    name,
		Content: content,
		URL:     url,
	}
}

// Secure stores the token for password. An empty password is a no-op.
func (s *Snippet) Secure(passwords *auth.PasswordService, password string) {
	if password == "" {
		return
	}
	s.PasswordToken = passwords.Hash(password)
}

// Secured reports whether the snippet has a password.
func (s *Snippet) Secured() bool {
	return s.PasswordToken != ""
}

// Editable reports whether a caller presenting candidate may modify the
// snippet. Unsecured snippets are editable by anyone.
func (s *Snippet) Editable(candidate string) bool {
	return !s.Secured() || auth.Equal(s.PasswordToken, candidate)
}

// Expired reports whether the snippet is dead at now.
func (s *Snippet) Expired(now time.Time) bool {
	return expiry.Expired(s.ExpiresAt, now)
}

// Touch extends the lifetime by grace.
func (s *Snippet) Touch(grace time.Duration) {
	s.ExpiresAt = expiry.Extend(s.ExpiresAt, grace)
}

// Like records one like and extends the lifetime by grace.
func (s *Snippet) Like(grace time.Duration) {
	s.Likes++
	s.Touch(grace)
}

// Apply performs the content and expiry parts of an edit. Renaming is the
// store's job because it re-keys the map.
func (s *Snippet) Apply(e Edit, grace time.Duration) {
	if e.Content != nil {
		s.Content = *e.Content
	}
	if e.ExtendBy > 0 {
		s.ExpiresAt = expiry.Extend(s.ExpiresAt, e.ExtendBy)
	} else {
		s.Touch(grace)
	}
}

// View projects the snippet into its external representation.
func (s *Snippet) View() View {
	return View{
		Name:      s.Name,
		ExpiresAt: s.ExpiresAt.UTC().Format(TimeFormat),
		Snippet:   s.Content,
		URL:       s.URL,
		Likes:     s.Likes,
		Secure:    s.Secured(),
	}
}
