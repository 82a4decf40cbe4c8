package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"

	"solana-wallet-trace/internal/blockchain"
	"solana-wallet-trace/internal/session"
	"solana-wallet-trace/internal/token"
	"solana-wallet-trace/internal/trade"
	"solana-wallet-trace/internal/websocket"
)

// downstreamCap bounds each subscription's event channel; when the
// consumer falls behind, events are dropped rather than blocking the
// upstream reader.
const downstreamCap = 10

// ChainClient is the on-chain JSON-RPC surface the service needs.
type ChainClient interface {
	GetTransaction(ctx context.Context, signature string) (*blockchain.TransactionResult, error)
	GetTokenAccountBalance(ctx context.Context, tokenAccount string) (*blockchain.TokenAmount, error)
	GetBalance(ctx context.Context, pubkey string) (uint64, error)
}

// Service implements the five wallet-trace operations on top of the
// session registry, the token store and the upstream clients.
type Service struct {
	registry *session.Registry
	store    *token.Store
	onChain  ChainClient
	offChain trade.MetadataClient
	decoder  *trade.Decoder
	factory  websocket.Factory
}

// NewService wires the operation layer.
func NewService(onChain ChainClient, offChain trade.MetadataClient, factory websocket.Factory) *Service {
	store := token.NewStore()
	return &Service{
		registry: session.NewRegistry(),
		store:    store,
		onChain:  onChain,
		offChain: offChain,
		decoder:  trade.NewDecoder(onChain, offChain, store),
		factory:  factory,
	}
}

// Init validates the subscription input, primes token metadata and
// registers an idle session, returning its client id.
func (s *Service) Init(ctx context.Context, wallet string, tokens []string) (uuid.UUID, error) {
	if serr := validateInput(wallet, tokens); serr != nil {
		return uuid.Nil, serr
	}

	watchlist := withWrappedNative(tokens)

	if err := token.Prime(ctx, watchlist, s.offChain, s.store); err != nil {
		return uuid.Nil, statusErrorf(CodeUnavailable, "Token is not available: %s", err)
	}

	sess, err := session.New(wallet, watchlist)
	if err != nil {
		return uuid.Nil, statusErrorf(CodeInternal, "failed to build session: %s", err)
	}

	id := s.registry.Insert(sess)
	log.Info().
		Str("wallet", wallet).
		Int("tokens", len(watchlist)).
		Str("clientID", id.String()).
		Msg("session initialized")

	return id, nil
}

// withWrappedNative appends the wrapped-native mint unless it is
// already on the list, deduplicating the rest on the way.
func withWrappedNative(tokens []string) []string {
	out := make([]string, 0, len(tokens)+1)
	seen := make(map[string]struct{}, len(tokens)+1)
	for _, mint := range append(tokens, token.WSOL) {
		if _, ok := seen[mint]; ok {
			continue
		}
		seen[mint] = struct{}{}
		out = append(out, mint)
	}
	return out
}

// Subscribe opens the upstream log subscription for a session and
// returns the downstream event channel. The channel is closed when the
// upstream reader terminates.
func (s *Service) Subscribe(ctx context.Context, id uuid.UUID) (<-chan string, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, statusErrorf(CodeNotFound, "Client not found")
	}
	if sess.Streaming() {
		return nil, statusErrorf(CodeFailedPrecondition, "Subscription already exists")
	}

	stream := make(chan string, downstreamCap)
	wallet := sess.Wallet

	streamer, err := s.factory.Subscribe(ctx, wallet, websocket.Callbacks{
		OnSignature: func(signature string) {
			tr, err := s.decoder.Decode(context.Background(), signature, wallet)
			if err != nil {
				log.Warn().Err(err).Str("sig", signature).Msg("trade decode failed")
				return
			}
			if tr == nil {
				return
			}
			offer(stream, tr.String())
		},
		OnUnsubscribed: func(result bool) {
			offer(stream, fmt.Sprintf("Unsubscription success: %t", result))
		},
		OnError: func(message string) {
			offer(stream, "Error response: "+message)
		},
		OnClose: func() {
			close(stream)
		},
	})
	if err != nil {
		return nil, statusErrorf(CodeUnavailable, "upstream subscription failed: %s", err)
	}

	if err := sess.Attach(streamer); err != nil {
		// Lost the race against a concurrent Subscribe; release the
		// extra upstream subscription.
		if uerr := streamer.Unsubscribe(); uerr != nil {
			log.Warn().Err(uerr).Msg("failed to release duplicate subscription")
		}
		return nil, statusErrorf(CodeFailedPrecondition, "Subscription already exists")
	}

	log.Info().
		Str("clientID", id.String()).
		Uint64("subID", streamer.SubID()).
		Msg("subscription started")

	return stream, nil
}

// offer drops the message when the consumer is behind. All calls run
// on the upstream reader goroutine, before the channel is closed.
func offer(stream chan string, msg string) {
	select {
	case stream <- msg:
	default:
		log.Warn().Msg("downstream channel full, dropping event")
	}
}

// Unsubscribe detaches and releases the session's upstream
// subscription. Calling it on an idle session succeeds.
func (s *Service) Unsubscribe(ctx context.Context, id uuid.UUID) (string, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return "", statusErrorf(CodeNotFound, "Client not found")
	}

	if streamer := sess.Detach(); streamer != nil {
		if err := streamer.Unsubscribe(); err != nil {
			log.Warn().Err(err).Str("clientID", id.String()).Msg("upstream unsubscribe failed")
		}
	}

	return "Unsubscribed successfully", nil
}

// GetTrade decodes the trade behind one signature for the session's
// wallet. A nil trade means the signature does not pertain to it.
func (s *Service) GetTrade(ctx context.Context, id uuid.UUID, signature string) (*trade.Trade, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, statusErrorf(CodeNotFound, "Client not found")
	}

	if raw, err := base58.Decode(signature); err != nil || len(raw) != 64 {
		return nil, statusErrorf(CodeInvalidArgument, "Invalid signature")
	}

	tr, err := s.decoder.Decode(ctx, signature, sess.Wallet)
	if err != nil {
		return nil, statusErrorf(CodeInternal, "trade decode failed: %s", err)
	}
	return tr, nil
}
