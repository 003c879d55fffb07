// Package verification checks a payment payload against the requirements and
// current chain state. Verification is read-only and never returns an error:
// every outcome, including unexpected internal failures, comes back as a
// structured result.
package verification

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/vitwit/x402-starknet/clients"
	"github.com/vitwit/x402-starknet/logger"
	"github.com/vitwit/x402-starknet/metrics"
	"github.com/vitwit/x402-starknet/types"
	"github.com/vitwit/x402-starknet/utils"
)

// Verifier is the contract consumed by settlement.
type Verifier interface {
	Verify(ctx context.Context, payload *types.PaymentPayload, requirements *types.PaymentRequirements) *types.VerificationResult
}

// Service verifies payments against one chain.
type Service struct {
	reader   clients.ChainReader
	validate func(*types.PaymentPayload) error
	log      logger.Logger
	metrics  metrics.Recorder
	now      func() time.Time
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

// WithValidator replaces the structural validator. Any mechanism returning
// pass/fail plus a diagnostic message satisfies the contract.
func WithValidator(v func(*types.PaymentPayload) error) Option {
	return func(s *Service) {
		s.validate = v
	}
}

// NewService creates a verification service over the given chain reader.
func NewService(reader clients.ChainReader, opts ...Option) *Service {
	s := &Service{
		reader:   reader,
		validate: utils.ValidatePayload,
		log:      logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Verify runs the ordered check sequence and returns the first failure, or a
// valid result carrying the payer and observed balance. Signature validity is
// deliberately not checked here; the chain enforces it when settlement submits
// the authorization for execution.
func (s *Service) Verify(
	ctx context.Context,
	payload *types.PaymentPayload,
	requirements *types.PaymentRequirements,
) (result *types.VerificationResult) {
	start := time.Now()

	network := ""
	if requirements != nil {
		network = requirements.Network
	}

	// Whatever goes wrong past the structural check must surface as a result,
	// never as a panic crossing the boundary.
	payer := ""
	defer func() {
		if r := recover(); r != nil {
			result = &types.VerificationResult{
				IsValid:       false,
				InvalidReason: types.ReasonUnexpectedVerify,
				Payer:         payer,
				Details:       types.ExtraData{"error": fmt.Sprint(r)},
			}
		}

		s.observe(result, network, start)
	}()

	if requirements == nil {
		return &types.VerificationResult{
			IsValid:       false,
			InvalidReason: types.ReasonStructuralInvalid,
			Details:       types.ExtraData{"error": "payment requirements are nil"},
		}
	}

	// 1. Structural check. The shape is not trusted enough to extract a payer.
	if err := s.validate(payload); err != nil {
		return &types.VerificationResult{
			IsValid:       false,
			InvalidReason: types.ReasonStructuralInvalid,
			Details:       types.ExtraData{"error": err.Error()},
		}
	}

	// 2. Extract payer.
	auth := &payload.Authorization
	payer = auth.From

	// 3. Network check.
	if payload.Network != requirements.Network {
		return &types.VerificationResult{
			IsValid:       false,
			InvalidReason: types.ReasonNetworkMismatch,
			Payer:         payer,
		}
	}

	// 4. Scheme check: a no-op while "exact" is the only scheme. The slot is
	// kept so multi-scheme support lands without reordering the sequence.

	// 5. Asset check. The failure reuses the network mismatch code; consumers
	// already branch on it.
	if !utils.AddressesEqual(auth.Token, requirements.Asset) {
		return &types.VerificationResult{
			IsValid:       false,
			InvalidReason: types.ReasonNetworkMismatch,
			Payer:         payer,
		}
	}

	// 6. Recipient check. Same compatibility quirk, amount mismatch code.
	if !utils.AddressesEqual(auth.To, requirements.PayTo) {
		return &types.VerificationResult{
			IsValid:       false,
			InvalidReason: types.ReasonAmountMismatch,
			Payer:         payer,
		}
	}

	// 7. Amount check: exact equality under unbounded precision.
	cmp, err := utils.CompareAmounts(auth.Amount, requirements.MaxAmountRequired)
	if err != nil {
		return s.unexpected(payer, err)
	}
	if cmp != 0 {
		return &types.VerificationResult{
			IsValid:       false,
			InvalidReason: types.ReasonAmountMismatch,
			Payer:         payer,
		}
	}

	// 8. Expiry check: equality with the current second still passes.
	validUntil, ok := new(big.Int).SetString(auth.ValidUntil, 10)
	if !ok {
		return s.unexpected(payer, fmt.Errorf("malformed validUntil %q", auth.ValidUntil))
	}

	now := s.now().Unix()
	if big.NewInt(now).Cmp(validUntil) > 0 {
		return &types.VerificationResult{
			IsValid:       false,
			InvalidReason: types.ReasonExpired,
			Payer:         payer,
			Details: types.ExtraData{
				"validUntil": auth.ValidUntil,
				"now":        strconv.FormatInt(now, 10),
			},
		}
	}

	// 9. Balance check.
	balance, err := clients.BalanceOf(ctx, s.reader, requirements.Asset, payer)
	if err != nil {
		return s.unexpected(payer, err)
	}

	required, ok := new(big.Int).SetString(requirements.MaxAmountRequired, 10)
	if !ok {
		return s.unexpected(payer, fmt.Errorf("malformed maxAmountRequired %q", requirements.MaxAmountRequired))
	}

	if balance.Cmp(required) < 0 {
		return &types.VerificationResult{
			IsValid:       false,
			InvalidReason: types.ReasonInsufficientFunds,
			Payer:         payer,
			Details:       types.ExtraData{"balance": balance.String()},
		}
	}

	// 10. Success.
	return &types.VerificationResult{
		IsValid: true,
		Payer:   payer,
		Details: types.ExtraData{"balance": balance.String()},
	}
}

func (s *Service) unexpected(payer string, err error) *types.VerificationResult {
	s.log.Warn("verification hit an unexpected failure", map[string]any{"error": err.Error()})

	return &types.VerificationResult{
		IsValid:       false,
		InvalidReason: types.ReasonUnexpectedVerify,
		Payer:         payer,
		Details:       types.ExtraData{"error": err.Error()},
	}
}

func (s *Service) observe(result *types.VerificationResult, network string, start time.Time) {
	labels := map[string]string{"network": network}

	if result != nil && result.IsValid {
		s.metrics.IncCounter("verify_valid", labels)
	} else {
		s.metrics.IncCounter("verify_invalid", labels)
	}

	s.metrics.ObserveLatency("verify", time.Since(start), labels)
}
