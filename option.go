package x402starknet

import (
	"time"

	"github.com/vitwit/x402-starknet/logger"
	"github.com/vitwit/x402-starknet/metrics"
)

type Option func(*X402)

func WithLogger(l logger.Logger) Option {
	return func(x *X402) {
		x.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(x *X402) {
		x.metrics = r
	}
}

// WithTimeout bounds selection and verification calls.
func WithTimeout(t time.Duration) Option {
	return func(x *X402) {
		x.timeout = t
	}
}

// WithPollInterval sets the settlement confirmation polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(x *X402) {
		x.pollInterval = d
	}
}

// WithAPIKey sets the relay credential attached to paymaster calls.
func WithAPIKey(key string) Option {
	return func(x *X402) {
		x.apiKey = key
	}
}
