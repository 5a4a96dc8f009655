// Package service contains the snippet business logic.
//
//	Handler (HTTP layer)    → parses and validates requests, writes responses
//	Service (business layer) → secures, builds locators, logs, delegates
//	Repository (data layer)  → the concurrent keyed store
//
// The service receives already-validated, typed parameters. It never sees
// HTTP types: the creation base address arrives as a plain string argument.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/snippets/internal/apperror"
	"github.com/sakif/snippets/internal/auth"
	"github.com/sakif/snippets/internal/locator"
	"github.com/sakif/snippets/internal/model"
	"github.com/sakif/snippets/internal/repository"
)

// CreateParams are the validated fields of a create request.
type CreateParams struct {
	Name      string
	ExpiresIn time.Duration
	Content   string
	Password  string // empty: unsecured
}

// EditParams are the validated fields of an edit request. Nil pointers and a
// zero ExtendBy leave the corresponding field to its default behaviour.
type EditParams struct {
	Password string
	NewName  *string
	Content  *string
	ExtendBy time.Duration
}

// SnippetService handles snippet use cases on top of a SnippetRepository.
type SnippetService struct {
	repo      repository.SnippetRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewSnippetService creates a new SnippetService.
func NewSnippetService(repo repository.SnippetRepository, passwords *auth.PasswordService, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		repo:      repo,
		passwords: passwords,
		logger:    logger,
	}
}

// Create builds, secures and stores a new snippet. base is the address the
// creation request arrived on, e.g. "http://localhost:8080/snippets/"; the
// snippet's locator is base plus the percent-encoded name.
//
// Returns apperror.ErrConflict if a live snippet already holds the name.
func (s *SnippetService) Create(ctx context.Context, p CreateParams, base string) (*model.Snippet, error) {
	// Hashing happens before the store is touched, keeping the store's
	// critical section to a map lookup and insert.
	draft := model.NewSnippet(p.Name, p.Content, locator.Build(base, p.Name))
	draft.Secure(s.passwords, p.Password)

	snippet, err := s.repo.Create(ctx, draft, p.ExpiresIn)
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			s.logger.Info("snippet create rejected", slog.String("name", p.Name), slog.String("reason", "conflict"))
			return nil, err
		}
		s.logger.Error("failed to create snippet",
			slog.String("name", p.Name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("name", snippet.Name),
		slog.Time("expires_at", snippet.ExpiresAt),
		slog.Bool("secure", snippet.Secured()),
	)
	return snippet, nil
}

// Get fetches a live snippet, extending its lifetime by the grace period.
// Returns apperror.ErrNotFound for missing or expired snippets.
func (s *SnippetService) Get(ctx context.Context, name string) (*model.Snippet, error) {
	snippet, err := s.repo.Get(ctx, name)
	if err != nil {
		// NotFound is a normal outcome, not worth an error log.
		return nil, err
	}
	return snippet, nil
}

// Like adds one like to a live snippet and extends its lifetime.
func (s *SnippetService) Like(ctx context.Context, name string) (*model.Snippet, error) {
	snippet, err := s.repo.Like(ctx, name)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("snippet liked",
		slog.String("id", snippet.ID),
		slog.String("name", snippet.Name),
		slog.Int("likes", snippet.Likes),
	)
	return snippet, nil
}

// Edit changes a snippet's content, name or expiry.
//
// Returns apperror.ErrNotFound, apperror.ErrForbidden when the snippet is
// secured and the password does not match, or apperror.ErrConflict when the
// new name is held by a live snippet.
func (s *SnippetService) Edit(ctx context.Context, name string, p EditParams) (*model.Snippet, error) {
	snippet, err := s.repo.Edit(ctx, name, model.Edit{
		Candidate: s.passwords.Hash(p.Password),
		NewName:   p.NewName,
		Content:   p.Content,
		ExtendBy:  p.ExtendBy,
	})
	if err != nil {
		if errors.Is(err, apperror.ErrForbidden) || errors.Is(err, apperror.ErrConflict) {
			s.logger.Warn("snippet edit rejected",
				slog.String("name", name),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}

	s.logger.Info("snippet edited",
		slog.String("id", snippet.ID),
		slog.String("name", snippet.Name),
		slog.Bool("renamed", snippet.Name != name),
	)
	return snippet, nil
}

// Delete removes a snippet. password may be empty for unsecured snippets.
func (s *SnippetService) Delete(ctx context.Context, name, password string) error {
	if err := s.repo.Delete(ctx, name, s.passwords.Hash(password)); err != nil {
		if errors.Is(err, apperror.ErrForbidden) {
			s.logger.Warn("snippet delete rejected", slog.String("name", name))
		}
		return err
	}

	s.logger.Info("snippet deleted", slog.String("name", name))
	return nil
}

// Count reports how many entries the store currently holds.
func (s *SnippetService) Count() int {
	return s.repo.Len()
}
