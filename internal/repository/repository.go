package repository

import (
	"context"
	"time"

	"github.com/sakif/snippets/internal/model"
)

// SnippetRepository is the keyed snippet store.
//
// Every method that returns a *model.Snippet returns a private copy taken
// while the entry was locked; mutating it does not affect the store.
// Failures are *apperror.AppError values wrapping ErrNotFound, ErrConflict
// or ErrForbidden.
type SnippetRepository interface {
	// Create inserts snippet under snippet.Name with ExpiresAt = now + ttl,
	// unless a live snippet already holds the name (ErrConflict).
	// An expired holder is replaced. The check and the insert are one step.
	Create(ctx context.Context, snippet *model.Snippet, ttl time.Duration) (*model.Snippet, error)

	// Get returns the live snippet and extends its expiry by the grace
	// period. A missing or expired snippet is ErrNotFound; an expired one
	// is evicted on the way.
	Get(ctx context.Context, name string) (*model.Snippet, error)

	// Like is Get plus one like, applied together.
	Like(ctx context.Context, name string) (*model.Snippet, error)

	// Edit applies e to a live snippet the caller may edit (ErrForbidden
	// otherwise), renaming it when e.NewName is set (ErrConflict if a live
	// snippet holds the new name).
	Edit(ctx context.Context, name string, e model.Edit) (*model.Snippet, error)

	// Delete removes a live snippet the caller may edit. candidate is the
	// token hashed from the caller's password.
	Delete(ctx context.Context, name, candidate string) error

	// Len counts stored entries, including expired ones not yet evicted.
	Len() int
}
