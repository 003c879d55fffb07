// Package selector chooses the best payment requirement among the candidates
// a resource server offers.
package selector

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vitwit/x402-starknet/clients"
	"github.com/vitwit/x402-starknet/logger"
	"github.com/vitwit/x402-starknet/metrics"
	"github.com/vitwit/x402-starknet/types"
)

// FallbackNetwork is used when the chain-id lookup itself fails. Sepolia keeps
// a misconfigured reader on a testnet rather than pointing at mainnet funds.
const FallbackNetwork = types.NetworkSepolia

// Service selects requirements against one chain reader.
type Service struct {
	reader  clients.ChainReader
	log     logger.Logger
	metrics metrics.Recorder
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

// NewService creates a selector over the given chain reader.
func NewService(reader clients.ChainReader, opts ...Option) *Service {
	s := &Service{
		reader:  reader,
		log:     logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type candidate struct {
	req        types.PaymentRequirements
	amount     decimal.Decimal
	balance    *big.Int
	affordable bool
}

// Select returns the cheapest requirement compatible with the payer's network
// that the payer can afford, ties broken by the shortest timeout. Failures are
// *types.X402Error values: they indicate caller misuse or an unpayable offer,
// not a transient fault.
func (s *Service) Select(
	ctx context.Context,
	candidates []types.PaymentRequirements,
	payer string,
) (*types.PaymentRequirements, error) {
	start := time.Now()

	if len(candidates) == 0 {
		return nil, &types.X402Error{
			Code:    types.ErrNoRequirements,
			Message: "no payment requirements offered",
		}
	}

	network := s.resolveNetwork(ctx)

	// Filter to the payer's network.
	compatible := make([]candidate, 0, len(candidates))
	offered := make([]string, 0, len(candidates))
	for _, req := range candidates {
		offered = append(offered, req.Network)
		if req.Network != network.String() {
			continue
		}

		amount, err := decimal.NewFromString(req.MaxAmountRequired)
		if err != nil {
			// A malformed amount can never be afforded; skip it the same way
			// an unreadable balance is skipped below.
			continue
		}

		compatible = append(compatible, candidate{req: req, amount: amount})
	}

	if len(compatible) == 0 {
		return nil, &types.X402Error{
			Code:    types.ErrNetworkMismatch,
			Message: "no requirement matches network " + network.String(),
			Data: map[string]interface{}{
				"resolved": network.String(),
				"offered":  offered,
			},
		}
	}

	// One balance read per compatible candidate, order-independent.
	var wg sync.WaitGroup
	for i := range compatible {
		wg.Add(1)
		go func(c *candidate) {
			defer wg.Done()

			balance, err := clients.BalanceOf(ctx, s.reader, c.req.Asset, payer)
			if err != nil {
				// An unreadable balance makes the candidate unaffordable
				// rather than failing the whole selection.
				s.log.Warn("balance read failed during selection", map[string]any{
					"asset": c.req.Asset,
					"error": err.Error(),
				})
				return
			}

			c.balance = balance
			c.affordable = balance.Cmp(c.amount.BigInt()) >= 0
		}(&compatible[i])
	}
	wg.Wait()

	affordable := compatible[:0:0]
	for _, c := range compatible {
		if c.affordable {
			affordable = append(affordable, c)
		}
	}

	if len(affordable) == 0 {
		first := compatible[0]
		observed := "0"
		if first.balance != nil {
			observed = first.balance.String()
		}

		return nil, &types.X402Error{
			Code:    types.ErrInsufficientFunds,
			Message: "payer cannot afford any offered requirement",
			Data: map[string]interface{}{
				"required": first.req.MaxAmountRequired,
				"balance":  observed,
			},
		}
	}

	sort.SliceStable(affordable, func(i, j int) bool {
		if cmp := affordable[i].amount.Cmp(affordable[j].amount); cmp != 0 {
			return cmp < 0
		}
		return affordable[i].req.MaxTimeoutSeconds < affordable[j].req.MaxTimeoutSeconds
	})

	selected := affordable[0].req

	s.metrics.IncCounter("select_ok", map[string]string{"network": network.String()})
	s.metrics.ObserveLatency("select", time.Since(start), map[string]string{"network": network.String()})

	return &selected, nil
}

// resolveNetwork maps the reader's chain id to a network name. An unrecognized
// id classifies as devnet; a failed lookup falls back to the fixed default.
func (s *Service) resolveNetwork(ctx context.Context) types.Network {
	chainID, err := s.reader.ChainID(ctx)
	if err != nil {
		s.log.Warn("chain id lookup failed, using fallback network", map[string]any{
			"fallback": FallbackNetwork.String(),
			"error":    err.Error(),
		})
		return FallbackNetwork
	}

	return types.NetworkFromChainID(chainID)
}
