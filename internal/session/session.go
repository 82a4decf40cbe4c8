package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"solana-wallet-trace/internal/websocket"
)

// ErrNotFound means no session exists for the given client id.
var ErrNotFound = errors.New("session not found")

// Session is the per-client state created at Init. The streamer is set
// while the session is streaming and nil while it is idle.
type Session struct {
	Wallet string
	Tokens []string

	// TokenAccounts maps each watched mint to the wallet's derived
	// associated token account.
	TokenAccounts map[string]string

	mu       sync.Mutex
	streamer websocket.LogStreamer
}

// New derives the token-account map and builds an idle session.
func New(wallet string, tokens []string) (*Session, error) {
	owner, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return nil, fmt.Errorf("parse wallet: %w", err)
	}

	accounts := make(map[string]string, len(tokens))
	for _, mint := range tokens {
		mintKey, err := solana.PublicKeyFromBase58(mint)
		if err != nil {
			return nil, fmt.Errorf("parse mint %s: %w", mint, err)
		}
		ata, _, err := solana.FindAssociatedTokenAddress(owner, mintKey)
		if err != nil {
			return nil, fmt.Errorf("derive token account for %s: %w", mint, err)
		}
		accounts[mint] = ata.String()
	}

	return &Session{
		Wallet:        wallet,
		Tokens:        tokens,
		TokenAccounts: accounts,
	}, nil
}

// Streaming reports whether the session currently holds an upstream
// subscription.
func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamer != nil
}

// Attach transitions Idle to Streaming. It fails when a subscription
// is already attached.
func (s *Session) Attach(streamer websocket.LogStreamer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streamer != nil {
		return errors.New("already streaming")
	}

	s.streamer = streamer
	return nil
}

// Detach transitions Streaming to Idle and returns the streamer so the
// caller can unsubscribe it. Detaching an idle session returns nil.
func (s *Session) Detach() websocket.LogStreamer {
	s.mu.Lock()
	defer s.mu.Unlock()

	streamer := s.streamer
	s.streamer = nil
	return streamer
}

// Registry maps client ids to sessions. Sessions are inserted at Init
// and live until the process exits.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uuid.UUID]*Session)}
}

// Insert registers a session under a fresh client id.
func (r *Registry) Insert(s *Session) uuid.UUID {
	id := uuid.New()

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	return id
}

// Get returns the session for a client id.
func (r *Registry) Get(id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Len reports the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
