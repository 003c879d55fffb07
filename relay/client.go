// Package relay implements a resilient JSON-RPC 2.0 client for a SNIP-29
// sponsoring paymaster.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/vitwit/x402-starknet/logger"
	"github.com/vitwit/x402-starknet/metrics"
)

const (
	methodBuildTransaction   = "paymaster_buildTransaction"
	methodExecuteTransaction = "paymaster_executeTransaction"
	methodGetSupportedTokens = "paymaster_getSupportedTokens"
	methodIsAvailable        = "paymaster_isAvailable"

	// APIKeyHeader carries the optional relay credential.
	APIKeyHeader = "x-paymaster-api-key"

	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 10
)

// Client is a JSON-RPC client bound to one relay endpoint. Request ids are
// strictly increasing per instance; the counter is the only state shared
// between in-flight calls.
type Client struct {
	endpoint string
	network  string
	apiKey   string

	http    *http.Client
	log     logger.Logger
	metrics metrics.Recorder

	maxRetries int
	nextID     atomic.Int64

	// sleep is swapped out in tests to avoid waiting out the real schedule.
	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = r
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// NewClient creates a relay client for the given endpoint and network name.
func NewClient(endpoint, network string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		network:    network,
		http:       &http.Client{Timeout: defaultTimeout},
		log:        logger.NoopLogger{},
		metrics:    metrics.NoopRecorder{},
		maxRetries: defaultMaxRetries,
		sleep:      sleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BuildTransaction asks the relay to assemble the typed data for a set of calls.
func (c *Client) BuildTransaction(ctx context.Context, params *BuildParams) (*BuildResult, error) {
	var out BuildResult
	if err := c.call(ctx, methodBuildTransaction, []interface{}{params}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExecuteTransaction submits a signed authorization for sponsored execution.
func (c *Client) ExecuteTransaction(ctx context.Context, params *ExecuteParams) (*ExecuteResult, error) {
	var out ExecuteResult
	if err := c.call(ctx, methodExecuteTransaction, []interface{}{params}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSupportedTokens lists the gas tokens the relay accepts.
func (c *Client) GetSupportedTokens(ctx context.Context) ([]SupportedToken, error) {
	var out []SupportedToken
	if err := c.call(ctx, methodGetSupportedTokens, []interface{}{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IsAvailable reports whether the relay is accepting transactions.
func (c *Client) IsAvailable(ctx context.Context) (bool, error) {
	var out bool
	if err := c.call(ctx, methodIsAvailable, []interface{}{}, &out); err != nil {
		return false, err
	}
	return out, nil
}

// call runs one JSON-RPC method under the retry policy: transport failures
// and 5xx responses are retried on the tiered backoff schedule, 4xx statuses
// and relay-classified errors are terminal.
func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt - 1)
			c.log.Debug("retrying relay call", map[string]any{
				"method":  method,
				"attempt": attempt,
				"delay":   delay.String(),
			})
			c.metrics.IncCounter("relay_retry", map[string]string{"network": c.network})

			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
		}

		err := c.callOnce(ctx, method, params, result)
		if err == nil {
			c.metrics.ObserveLatency("relay_"+method, time.Since(start), map[string]string{"network": c.network})
			return nil
		}

		if !retryable(err) || ctx.Err() != nil {
			c.metrics.IncCounter("relay_error", map[string]string{"network": c.network})
			return err
		}

		lastErr = err
	}

	c.metrics.IncCounter("relay_exhausted", map[string]string{"network": c.network})
	c.log.Error("relay call exhausted retries", map[string]any{
		"method": method,
		"error":  lastErr.Error(),
	})

	return &RelayError{Method: method, Attempts: c.maxRetries + 1, Err: lastErr}
}

func (c *Client) callOnce(ctx context.Context, method string, params, result interface{}) error {
	body, err := json.Marshal(&Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return &ApplicationError{Method: method, Message: fmt.Sprintf("encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return &ApplicationError{Method: method, Message: fmt.Sprintf("build request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Method: method, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return &TransportError{Method: method, StatusCode: resp.StatusCode}
	}

	var envelope Response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &ApplicationError{Method: method, Message: fmt.Sprintf("malformed response: %v", err)}
	}

	if envelope.Error != nil {
		return &ApplicationError{
			Method:  method,
			Code:    envelope.Error.Code,
			Message: envelope.Error.Message,
			Data:    envelope.Error.Data,
		}
	}

	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		// The relay answered without a result or an error.
		return &ApplicationError{Method: method, Message: "protocol violation: response carries no result"}
	}

	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return &ApplicationError{Method: method, Message: fmt.Sprintf("decode result: %v", err)}
	}

	return nil
}

func retryable(err error) bool {
	if te, ok := err.(*TransportError); ok {
		return te.Retryable()
	}
	return false
}

// backoffDelay computes the delay before retry i (0-based). The fast phase
// absorbs transient blips, the middle phase gives an upstream circuit breaker
// time to trip, the long phase covers failover to a backup relay instance.
func backoffDelay(i int) time.Duration {
	var ms int
	switch {
	case i < 3:
		ms = 1000 << i
	case i < 6:
		ms = 8000 + (i-3)*7000
	default:
		ms = 30000 + (i-6)*15000
		if ms > 60000 {
			ms = 60000
		}
	}
	return time.Duration(ms) * time.Millisecond
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
