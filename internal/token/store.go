package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrTokenNotFound is returned when a mint is not in the store.
var ErrTokenNotFound = errors.New("token not found in store")

// ErrTokenExists is returned on a duplicate insert. Callers treat it
// as benign; entries are append-only for the process lifetime.
var ErrTokenExists = errors.New("token already exists")

// ErrUnavailable wraps upstream failures while fetching metadata.
var ErrUnavailable = errors.New("token is not available")

// Store is the in-memory mint -> metadata map shared by all sessions.
// Many readers or one writer; lookups never touch the network.
type Store struct {
	mu     sync.RWMutex
	tokens map[string]Info
}

// NewStore creates an empty token store.
func NewStore() *Store {
	return &Store{
		tokens: make(map[string]Info),
	}
}

// Add inserts token metadata. Re-adding the same mint reports
// ErrTokenExists and leaves the original entry untouched.
func (s *Store) Add(info Info) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[info.ID]; ok {
		return ErrTokenExists
	}
	s.tokens[info.ID] = info
	return nil
}

// Get returns the metadata for a mint or ErrTokenNotFound.
func (s *Store) Get(mint string) (Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.tokens[mint]
	if !ok {
		return Info{}, ErrTokenNotFound
	}
	return info, nil
}

// Has reports whether a mint is cached.
func (s *Store) Has(mint string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tokens[mint]
	return ok
}

// Size returns the number of cached tokens.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// Source fetches token metadata in batches. Missing mints produce no
// entry rather than an error.
type Source interface {
	GetTokens(ctx context.Context, mints []string) ([]Info, error)
}

// Prime fetches metadata for every mint not yet cached and stores it.
// A fetch failure surfaces as ErrUnavailable; duplicate inserts are
// ignored.
func Prime(ctx context.Context, mints []string, src Source, store *Store) error {
	var missing []string
	for _, mint := range mints {
		if !store.Has(mint) {
			missing = append(missing, mint)
		}
	}

	if len(missing) == 0 {
		return nil
	}

	infos, err := src.GetTokens(ctx, missing)
	if err != nil {
		log.Error().Err(err).Int("mints", len(missing)).Msg("failed to fetch tokens")
		return fmt.Errorf("%w: %s", ErrUnavailable, err)
	}

	for _, info := range infos {
		if err := store.Add(info); err != nil && !errors.Is(err, ErrTokenExists) {
			return err
		}
	}

	return nil
}
