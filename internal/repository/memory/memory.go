// Package memory implements repository.SnippetRepository as a sharded
// in-process map.
//
// SHARDING:
// Names are spread over a fixed, power-of-two number of shards by their
// xxhash. Each shard is a plain map behind its own mutex, so:
//   - all operations on one name serialize on that name's shard lock
//   - operations on names in different shards run in parallel
//   - every critical section is a map lookup plus a few field writes
//
// A rename touches two shards; both are locked in index order so two
// concurrent renames can never deadlock.
//
// EXPIRY:
// There is no background sweeper. Whichever operation first sees an expired
// entry deletes it while holding the shard lock (lazy eviction), and then
// behaves as if the name were absent.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/sakif/snippets/internal/apperror"
	"github.com/sakif/snippets/internal/expiry"
	"github.com/sakif/snippets/internal/model"
	"github.com/sakif/snippets/internal/repository"
)

var _ repository.SnippetRepository = (*Store)(nil)

// DefaultShards is the shard count used when none is configured.
const DefaultShards = 64

type shard struct {
	mu      sync.Mutex
	entries map[string]*model.Snippet
}

// Store is the sharded snippet map. The zero value is not usable; call New.
type Store struct {
	shards []*shard
	mask   uint64
	grace  time.Duration
	now    func() time.Time // injectable for deterministic tests
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithGrace sets how far Get, Like and a delta-less Edit extend expiry.
func WithGrace(grace time.Duration) Option {
	return func(s *Store) {
		if grace > 0 {
			s.grace = grace
		}
	}
}

// WithShards sets the shard count, rounded up to a power of two.
func WithShards(n int) Option {
	return func(s *Store) { s.shards = makeShards(n) }
}

// WithLogger sets the logger used for eviction events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		grace:  expiry.DefaultGrace,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.shards == nil {
		s.shards = makeShards(DefaultShards)
	}
	s.mask = uint64(len(s.shards) - 1)
	return s
}

func makeShards(n int) []*shard {
	size := 1
	for size < n {
		size <<= 1
	}
	shards := make([]*shard, size)
	for i := range shards {
		shards[i] = &shard{entries: make(map[string]*model.Snippet)}
	}
	return shards
}

func (s *Store) index(name string) uint64 {
	return xxhash.Sum64String(name) & s.mask
}

// live returns the entry for name if it has not expired at now, evicting it
// if it has. The caller must hold sh.mu.
func (s *Store) live(sh *shard, name string, now time.Time) (*model.Snippet, bool) {
	sn, ok := sh.entries[name]
	if !ok {
		return nil, false
	}
	if sn.Expired(now) {
		delete(sh.entries, name)
		s.logger.Debug("snippet evicted",
			slog.String("name", name),
			slog.String("id", sn.ID),
			slog.Time("expired_at", sn.ExpiresAt),
		)
		return nil, false
	}
	return sn, true
}

// Create inserts snippet unless a live snippet already holds its name.
func (s *Store) Create(_ context.Context, snippet *model.Snippet, ttl time.Duration) (*model.Snippet, error) {
	sh := s.shards[s.index(snippet.Name)]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := s.now()
	if _, taken := s.live(sh, snippet.Name, now); taken {
		return nil, apperror.Conflict("snippet", snippet.Name)
	}

	stored := *snippet
	stored.ExpiresAt = expiry.Initial(now, ttl)
	sh.entries[stored.Name] = &stored

	out := stored
	return &out, nil
}

// Get returns the live snippet after extending it by the grace period.
func (s *Store) Get(_ context.Context, name string) (*model.Snippet, error) {
	return s.update(name, func(sn *model.Snippet) error {
		sn.Touch(s.grace)
		return nil
	})
}

// Like increments the like count and extends expiry under one lock hold.
func (s *Store) Like(_ context.Context, name string) (*model.Snippet, error) {
	return s.update(name, func(sn *model.Snippet) error {
		sn.Like(s.grace)
		return nil
	})
}

// Edit applies e, re-keying the entry when it carries a new name.
func (s *Store) Edit(_ context.Context, name string, e model.Edit) (*model.Snippet, error) {
	if e.NewName == nil || *e.NewName == name {
		return s.update(name, func(sn *model.Snippet) error {
			if !sn.Editable(e.Candidate) {
				return apperror.Forbidden("password does not match")
			}
			sn.Apply(e, s.grace)
			return nil
		})
	}
	return s.rename(name, *e.NewName, e)
}

// Delete removes a live snippet the caller may edit.
func (s *Store) Delete(_ context.Context, name, candidate string) error {
	sh := s.shards[s.index(name)]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sn, ok := s.live(sh, name, s.now())
	if !ok {
		return apperror.NotFound("snippet", name)
	}
	if !sn.Editable(candidate) {
		return apperror.Forbidden("password does not match")
	}
	delete(sh.entries, name)
	return nil
}

// Len counts stored entries across all shards.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}

// update runs fn on the live entry for name and returns a copy of the result.
func (s *Store) update(name string, fn func(*model.Snippet) error) (*model.Snippet, error) {
	sh := s.shards[s.index(name)]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sn, ok := s.live(sh, name, s.now())
	if !ok {
		return nil, apperror.NotFound("snippet", name)
	}
	if err := fn(sn); err != nil {
		return nil, err
	}

	out := *sn
	return &out, nil
}

func (s *Store) rename(from, to string, e model.Edit) (*model.Snippet, error) {
	src, dst := s.index(from), s.index(to)
	unlock := s.lockPair(src, dst)
	defer unlock()

	now := s.now()
	sn, ok := s.live(s.shards[src], from, now)
	if !ok {
		return nil, apperror.NotFound("snippet", from)
	}
	if !sn.Editable(e.Candidate) {
		return nil, apperror.Forbidden("password does not match")
	}
	if _, taken := s.live(s.shards[dst], to, now); taken {
		return nil, apperror.Conflict("snippet", to)
	}

	delete(s.shards[src].entries, from)
	sn.Name = to
	sn.Apply(e, s.grace)
	s.shards[dst].entries[to] = sn

	out := *sn
	return &out, nil
}

// lockPair locks shards a and b in index order and returns the unlock func.
func (s *Store) lockPair(a, b uint64) func() {
	if a == b {
		s.shards[a].mu.Lock()
		return s.shards[a].mu.Unlock
	}
	if a > b {
		a, b = b, a
	}
	s.shards[a].mu.Lock()
	s.shards[b].mu.Lock()
	return func() {
		s.shards[b].mu.Unlock()
		s.shards[a].mu.Unlock()
	}
}
