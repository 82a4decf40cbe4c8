package health

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"
)

// Status represents the health status of one upstream dependency
type Status struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// Checker periodically probes the JSON-RPC node and the token metadata
// service
type Checker struct {
	mu       sync.RWMutex
	statuses []Status
	rpcURL   string
	metaURL  string
}

// NewChecker creates a health checker
func NewChecker(rpcURL, metaURL string) *Checker {
	return &Checker{
		rpcURL:  rpcURL,
		metaURL: metaURL,
	}
}

// Start begins periodic health checks
func (c *Checker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.check()
			}
		}
	}()

	// Initial check
	c.check()
}

func (c *Checker) check() {
	statuses := []Status{
		c.checkRPC(),
		c.checkMetadata(),
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

func (c *Checker) checkRPC() Status {
	start := time.Now()

	client := &http.Client{Timeout: 5 * time.Second}
	body := bytes.NewBufferString(`{"jsonrpc":"2.0","id":1,"method":"getHealth"}`)
	req, _ := http.NewRequest("POST", c.rpcURL, body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	latency := time.Since(start)
	if resp != nil {
		resp.Body.Close()
	}

	status := Status{
		Name:    "RPC",
		Latency: latency,
		Healthy: err == nil,
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}

func (c *Checker) checkMetadata() Status {
	start := time.Now()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(c.metaURL)
	latency := time.Since(start)
	if resp != nil {
		resp.Body.Close()
	}

	status := Status{
		Name:    "Metadata",
		Latency: latency,
		Healthy: err == nil,
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}

// GetStatuses returns current health statuses
func (c *Checker) GetStatuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.statuses
}

// Healthy reports whether every probed dependency is up
func (c *Checker) Healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}
