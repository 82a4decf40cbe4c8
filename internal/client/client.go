package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"solana-wallet-trace/internal/gateway"
)

// Client talks to the wallet-trace server. Init stores the issued
// client id; every later call sends it on the client-id header.
type Client struct {
	baseURL  string
	clientID string
	http     *http.Client
	// stream has no timeout; subscriptions are long-lived.
	stream *http.Client
}

// New creates an API client for the given server base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		stream:  &http.Client{},
	}
}

// ClientID returns the id issued by Init, or "" before it.
func (c *Client) ClientID() string {
	return c.clientID
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return fmt.Errorf("%s", body.Error)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body *bytes.Buffer
	if payload != nil {
		body = &bytes.Buffer{}
		if err := json.NewEncoder(body).Encode(payload); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.clientID != "" {
		req.Header.Set("client-id", c.clientID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Init registers the wallet and watchlist, keeping the issued id.
func (c *Client) Init(ctx context.Context, wallet string, tokens []string) (string, error) {
	payload := map[string]interface{}{"wallet": wallet, "tokens": tokens}
	var out struct {
		ClientID string `json:"client_id"`
	}
	if err := c.do(ctx, "POST", "/v1/init", payload, &out); err != nil {
		return "", err
	}
	c.clientID = out.ClientID
	return out.ClientID, nil
}

// Subscribe opens the event stream. Messages arrive on the returned
// channel until the server ends the stream or ctx is cancelled; the
// channel is then closed.
func (c *Client) Subscribe(ctx context.Context) (<-chan string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/v1/subscribe", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("client-id", c.clientID)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	stream := make(chan string)
	go func() {
		defer close(stream)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			select {
			case stream <- strings.TrimPrefix(line, "data: "):
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			log.Debug().Err(err).Msg("event stream ended")
		}
	}()

	return stream, nil
}

// Unsubscribe tears down the server-side subscription.
func (c *Client) Unsubscribe(ctx context.Context) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, "POST", "/v1/unsubscribe", nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Holdings fetches the wallet's current snapshot.
func (c *Client) Holdings(ctx context.Context) ([]gateway.Holding, error) {
	var out struct {
		Holdings []gateway.Holding `json:"holdings"`
	}
	if err := c.do(ctx, "GET", "/v1/holdings", nil, &out); err != nil {
		return nil, err
	}
	return out.Holdings, nil
}

// TradeResult is the decoded response of GetTrade.
type TradeResult struct {
	Trade   json.RawMessage `json:"trade"`
	Kind    string          `json:"kind"`
	Message string          `json:"message"`
}

// GetTrade decodes one signature. A nil result means the transaction
// does not pertain to the wallet.
func (c *Client) GetTrade(ctx context.Context, signature string) (*TradeResult, error) {
	var out TradeResult
	if err := c.do(ctx, "GET", "/v1/trade/"+signature, nil, &out); err != nil {
		return nil, err
	}
	if len(out.Trade) == 0 || string(out.Trade) == "null" {
		return nil, nil
	}
	return &out, nil
}
