package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"

	"solana-wallet-trace/internal/token"
)

// DefaultBaseURL is the public lite endpoint of the Jupiter token API.
const DefaultBaseURL = "https://lite-api.jup.ag"

// maxIDsPerRequest is the token API's cap on ids per call; larger
// batches are split transparently.
const maxIDsPerRequest = 100

// Client fetches token metadata and USD prices from the Jupiter API
// with HTTP/2 pooling and optional API key rotation.
type Client struct {
	tokenAPIURL string
	priceAPIURL string
	clientPool  *HTTPClientPool
	apiKeys     []string
	keyIdx      atomic.Uint32
}

// HTTPClientPool provides HTTP/2 connection pooling.
type HTTPClientPool struct {
	clients []*http.Client
	mu      sync.Mutex
	idx     uint32
}

// NewHTTPClientPool creates an HTTP/2 optimized client pool.
func NewHTTPClientPool(size int, timeout time.Duration) *HTTPClientPool {
	pool := &HTTPClientPool{
		clients: make([]*http.Client, size),
	}

	for i := 0; i < size; i++ {
		transport := &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}

		http2.ConfigureTransport(transport)

		pool.clients[i] = &http.Client{
			Transport: transport,
			Timeout:   timeout,
		}
	}

	return pool
}

func (p *HTTPClientPool) Get() *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	client := p.clients[p.idx%uint32(len(p.clients))]
	p.idx++
	return client
}

// NewClient creates a Jupiter API client. An empty baseURL selects the
// public lite endpoint; API keys are read from JUPITER_API_KEYS.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	var apiKeys []string
	if envKeys := os.Getenv("JUPITER_API_KEYS"); envKeys != "" {
		apiKeys = strings.Split(envKeys, ",")
	}

	return &Client{
		tokenAPIURL: fmt.Sprintf("%s/tokens/v2", baseURL),
		priceAPIURL: fmt.Sprintf("%s/price/v3", baseURL),
		clientPool:  NewHTTPClientPool(4, timeout),
		apiKeys:     apiKeys,
	}
}

// getAPIKey returns the next API key (round-robin), or "" when none
// are configured.
func (c *Client) getAPIKey() string {
	if len(c.apiKeys) == 0 {
		return ""
	}
	idx := c.keyIdx.Add(1) % uint32(len(c.apiKeys))
	return c.apiKeys[idx]
}

// GetTokens fetches metadata for the given mints. The result is
// best-effort: mints unknown to the API are simply absent.
func (c *Client) GetTokens(ctx context.Context, mints []string) ([]token.Info, error) {
	var infos []token.Info

	for _, chunk := range chunkIDs(mints, maxIDsPerRequest) {
		start := time.Now()

		var batch []token.Info
		if err := c.get(ctx, c.tokenAPIURL, "query", chunk, &batch); err != nil {
			return nil, fmt.Errorf("token search: %w", err)
		}
		infos = append(infos, batch...)

		log.Debug().
			Dur("latency", time.Since(start)).
			Int("requested", len(chunk)).
			Int("returned", len(batch)).
			Msg("jupiter token search")
	}

	return infos, nil
}

// GetPrices fetches fresh USD prices keyed by mint. Partial results
// are expected; absent mints carry no price.
func (c *Client) GetPrices(ctx context.Context, mints []string) (map[string]token.Price, error) {
	prices := make(map[string]token.Price, len(mints))

	for _, chunk := range chunkIDs(mints, maxIDsPerRequest) {
		batch := make(map[string]token.Price)
		if err := c.get(ctx, c.priceAPIURL, "ids", chunk, &batch); err != nil {
			return nil, fmt.Errorf("price lookup: %w", err)
		}
		for mint, price := range batch {
			prices[mint] = price
		}
	}

	return prices, nil
}

func (c *Client) get(ctx context.Context, endpoint, param string, ids []string, result interface{}) error {
	reqURL := fmt.Sprintf("%s?%s=%s", endpoint, param, url.QueryEscape(strings.Join(ids, ",")))

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if key := c.getAPIKey(); key != "" {
		req.Header.Set("x-api-key", key)
	}

	client := c.clientPool.Get()
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed (%d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// chunkIDs splits ids into slices of at most size elements, preserving
// order so the union of chunked responses equals the unchunked one.
func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}
