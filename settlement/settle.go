// Package settlement drives a verified payment authorization through the
// sponsoring relay and on to chain confirmation.
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/vitwit/x402-starknet/clients"
	"github.com/vitwit/x402-starknet/logger"
	"github.com/vitwit/x402-starknet/metrics"
	"github.com/vitwit/x402-starknet/relay"
	"github.com/vitwit/x402-starknet/types"
	"github.com/vitwit/x402-starknet/utils"
	"github.com/vitwit/x402-starknet/verification"
)

const defaultPollInterval = 2 * time.Second

// Service settles payments against one chain.
type Service struct {
	reader   clients.ChainReader
	verifier verification.Verifier
	log      logger.Logger
	metrics  metrics.Recorder

	pollInterval time.Duration
	apiKey       string
}

type Option func(*Service)

func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *Service) {
		s.metrics = r
	}
}

// WithPollInterval sets the chain confirmation polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		s.pollInterval = d
	}
}

// WithAPIKey sets the default relay credential.
func WithAPIKey(key string) Option {
	return func(s *Service) {
		s.apiKey = key
	}
}

// NewService creates a settlement service over the given reader and verifier.
func NewService(reader clients.ChainReader, verifier verification.Verifier, opts ...Option) *Service {
	s := &Service{
		reader:       reader,
		verifier:     verifier,
		log:          logger.NoopLogger{},
		metrics:      metrics.NoopRecorder{},
		pollInterval: defaultPollInterval,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Options are per-call overrides. An explicit PaymasterURL takes precedence
// over the endpoint embedded in the payload at creation time.
type Options struct {
	PaymasterURL string
	APIKey       string
	PollInterval time.Duration
}

// TransferCall builds the transfer invocation a requirement describes: the
// token's transfer entrypoint with the recipient and the amount's two limbs.
func TransferCall(requirements *types.PaymentRequirements) (*relay.Call, error) {
	low, high, err := utils.SplitAmountHex(requirements.MaxAmountRequired)
	if err != nil {
		return nil, fmt.Errorf("transfer amount: %w", err)
	}

	return &relay.Call{
		ContractAddress: utils.NormalizeAddress(requirements.Asset),
		EntryPoint:      "transfer",
		Calldata:        []string{utils.NormalizeAddress(requirements.PayTo), low, high},
	}, nil
}

// Settle re-verifies the payload, submits it through the relay and waits for
// the chain to accept the transaction. It never returns an error: everything
// after verification begins is folded into the result. There is no
// application-level replay protection; concurrent settlement of the same
// authorization is resolved by the chain nonce.
func (s *Service) Settle(
	ctx context.Context,
	payload *types.PaymentPayload,
	requirements *types.PaymentRequirements,
	opts *Options,
) (result *types.SettlementResult) {
	start := time.Now()
	if opts == nil {
		opts = &Options{}
	}

	network := ""
	if requirements != nil {
		network = requirements.Network
	}

	payer := ""
	defer func() {
		if r := recover(); r != nil {
			result = s.failure(network, payer, fmt.Sprint(r))
		}

		s.observe(result, network, start)
	}()

	// 1. Verify. No relay or chain interaction happens for an invalid payload.
	vr := s.verifier.Verify(ctx, payload, requirements)
	payer = vr.Payer
	if !vr.IsValid {
		return s.failure(network, payer, vr.InvalidReason)
	}

	// 2. Resolve the relay endpoint and the signing artifact.
	endpoint := opts.PaymasterURL
	if endpoint == "" {
		endpoint = payload.PaymasterURL
	}
	if endpoint == "" {
		return s.failure(network, payer, types.ErrorReasonMissingPaymaster)
	}

	if len(payload.TypedData) == 0 {
		return s.failure(network, payer, types.ErrorReasonMissingTypedData)
	}

	// 3. Relay client bound to this settlement.
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = s.apiKey
	}

	client := relay.NewClient(endpoint, network,
		relay.WithAPIKey(apiKey),
		relay.WithLogger(s.log),
		relay.WithMetrics(s.metrics),
	)

	// 4. The transfer this settlement performs.
	call, err := TransferCall(requirements)
	if err != nil {
		return s.failure(network, payer, err.Error())
	}

	s.log.Debug("settling payment", map[string]any{
		"network":   network,
		"payer":     payer,
		"asset":     call.ContractAddress,
		"recipient": requirements.PayTo,
		"amount":    requirements.MaxAmountRequired,
	})

	// 5. Sponsored execution through the relay.
	exec, err := client.ExecuteTransaction(ctx, &relay.ExecuteParams{
		UserAddress: utils.NormalizeAddress(payer),
		TypedData:   payload.TypedData,
		Signature:   payload.Signature,
		FeeMode:     relay.FeeMode{Mode: relay.FeeModeSponsored},
	})
	if err != nil {
		return s.failure(network, payer, err.Error())
	}

	// 6. Wait for a terminal accepted state.
	poll := opts.PollInterval
	if poll <= 0 {
		poll = s.pollInterval
	}

	status, err := s.reader.WaitForAcceptance(ctx, exec.TransactionHash, poll, clients.AcceptedStatuses)
	if err != nil {
		return s.failure(network, payer, err.Error())
	}

	// 7. Done.
	return &types.SettlementResult{
		Success:     true,
		Transaction: exec.TransactionHash,
		Network:     network,
		Payer:       payer,
		Status:      status.FinalityStatus,
		BlockNumber: status.BlockNumber,
		BlockHash:   status.BlockHash,
	}
}

func (s *Service) failure(network, payer, reason string) *types.SettlementResult {
	return &types.SettlementResult{
		Success:     false,
		ErrorReason: reason,
		Transaction: "",
		Network:     network,
		Payer:       payer,
	}
}

func (s *Service) observe(result *types.SettlementResult, network string, start time.Time) {
	labels := map[string]string{"network": network}

	if result != nil && result.Success {
		s.metrics.IncCounter("settle_ok", labels)
	} else {
		s.metrics.IncCounter("settle_failed", labels)
	}

	s.metrics.ObserveLatency("settle", time.Since(start), labels)
}
