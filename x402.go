// Package x402starknet implements the x402 payment protocol core for
// Starknet: requirement selection, authorization verification and settlement
// through a SNIP-29 sponsoring paymaster.
package x402starknet

import (
	"context"
	"time"

	"github.com/vitwit/x402-starknet/clients"
	"github.com/vitwit/x402-starknet/logger"
	"github.com/vitwit/x402-starknet/metrics"
	"github.com/vitwit/x402-starknet/relay"
	"github.com/vitwit/x402-starknet/selector"
	"github.com/vitwit/x402-starknet/settlement"
	"github.com/vitwit/x402-starknet/types"
	"github.com/vitwit/x402-starknet/verification"
)

// X402 is the main struct that provides all x402 functionality.
type X402 struct {
	reader clients.ChainReader

	verificationService *verification.Service
	settlementService   *settlement.Service
	selectorService     *selector.Service

	logger       logger.Logger
	metrics      metrics.Recorder
	timeout      time.Duration
	pollInterval time.Duration
	apiKey       string
}

// New creates a new X402 instance over the given chain reader.
func New(reader clients.ChainReader, opts ...Option) *X402 {
	x := &X402{
		reader:       reader,
		logger:       logger.NoopLogger{},
		metrics:      metrics.NoopRecorder{},
		timeout:      30 * time.Second,
		pollInterval: 2 * time.Second,
	}

	for _, opt := range opts {
		opt(x)
	}

	x.verificationService = verification.NewService(reader,
		verification.WithLogger(x.logger),
		verification.WithMetrics(x.metrics),
	)
	x.selectorService = selector.NewService(reader,
		selector.WithLogger(x.logger),
		selector.WithMetrics(x.metrics),
	)
	x.settlementService = settlement.NewService(reader, x.verificationService,
		settlement.WithLogger(x.logger),
		settlement.WithMetrics(x.metrics),
		settlement.WithPollInterval(x.pollInterval),
		settlement.WithAPIKey(x.apiKey),
	)

	return x
}

// SelectRequirement chooses the best of the offered payment requirements for
// the payer.
func (x *X402) SelectRequirement(
	ctx context.Context,
	candidates []types.PaymentRequirements,
	payer string,
) (*types.PaymentRequirements, error) {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	return x.selectorService.Select(ctx, candidates, payer)
}

// Verify verifies a payment payload against requirements and chain state.
func (x *X402) Verify(
	ctx context.Context,
	payload *types.PaymentPayload,
	requirements *types.PaymentRequirements,
) *types.VerificationResult {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	return x.verificationService.Verify(ctx, payload, requirements)
}

// Settle settles a verified payment through the sponsoring relay.
func (x *X402) Settle(
	ctx context.Context,
	payload *types.PaymentPayload,
	requirements *types.PaymentRequirements,
	opts *settlement.Options,
) *types.SettlementResult {
	return x.settlementService.Settle(ctx, payload, requirements, opts)
}

// BuildPaymentTransaction asks the relay named by the requirement to assemble
// the typed data for its transfer, ready to be signed by the payer.
func (x *X402) BuildPaymentTransaction(
	ctx context.Context,
	paymasterURL string,
	requirements *types.PaymentRequirements,
	payer string,
) (*relay.BuildResult, error) {
	call, err := settlement.TransferCall(requirements)
	if err != nil {
		return nil, err
	}

	client := relay.NewClient(paymasterURL, requirements.Network,
		relay.WithAPIKey(x.apiKey),
		relay.WithLogger(x.logger),
		relay.WithMetrics(x.metrics),
	)

	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	return client.BuildTransaction(ctx, &relay.BuildParams{
		UserAddress: payer,
		Calls:       []relay.Call{*call},
		FeeMode:     relay.FeeMode{Mode: relay.FeeModeSponsored},
	})
}

// Supported returns the payment kinds this implementation accepts.
func (x *X402) Supported() *types.SupportedResponse {
	networks := []types.Network{types.NetworkMainnet, types.NetworkSepolia, types.NetworkDevnet}

	kinds := make([]types.SupportedItem, 0, len(networks))
	for _, n := range networks {
		kinds = append(kinds, types.SupportedItem{
			X402Version: int(types.X402Version1),
			Scheme:      string(types.SchemeExact),
			Network:     n.String(),
		})
	}

	return &types.SupportedResponse{Kinds: kinds}
}

// Version information
const (
	Version         = "1.0.0"
	ProtocolVersion = 1
)

// GetVersion returns version information
func GetVersion() map[string]interface{} {
	return map[string]interface{}{
		"library_version":  Version,
		"protocol_version": ProtocolVersion,
		"supported_networks": []string{
			"starknet", "sepolia", "devnet",
		},
		"supported_schemes": []string{
			"exact",
		},
	}
}
