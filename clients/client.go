// Package clients provides the chain-read capability the verification,
// selection and settlement services consume.
package clients

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/vitwit/x402-starknet/utils"
)

// Transaction finality statuses reported by the chain.
const (
	StatusAcceptedOnL2 = "ACCEPTED_ON_L2"
	StatusAcceptedOnL1 = "ACCEPTED_ON_L1"
	StatusRejected     = "REJECTED"
)

// AcceptedStatuses are the finality states settlement treats as success.
var AcceptedStatuses = []string{StatusAcceptedOnL2, StatusAcceptedOnL1}

// TxStatus is the terminal state of a watched transaction.
type TxStatus struct {
	FinalityStatus  string
	ExecutionStatus string
	BlockNumber     uint64
	BlockHash       string
}

// ChainReader is the read-only chain capability. Implementations must be safe
// for concurrent use.
type ChainReader interface {
	// ChainID returns the chain identifier felt (e.g. the SN_SEPOLIA shortstring).
	ChainID(ctx context.Context) (string, error)

	// CallContract invokes a view entrypoint and returns the raw felt results.
	CallContract(ctx context.Context, contract, entrypoint string, calldata []string) ([]string, error)

	// WaitForAcceptance polls the transaction at the given interval until its
	// finality status is one of the terminal set, or the context ends.
	WaitForAcceptance(ctx context.Context, txHash string, poll time.Duration, terminal []string) (*TxStatus, error)
}

// BalanceOf reads the u256 token balance of owner. The result comes back as
// two 128-bit limbs combined as low + high*2^128.
func BalanceOf(ctx context.Context, r ChainReader, token, owner string) (*big.Int, error) {
	res, err := r.CallContract(ctx, token, "balanceOf", []string{utils.NormalizeAddress(owner)})
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}

	if len(res) < 2 {
		return nil, fmt.Errorf("balanceOf returned %d felts, want 2", len(res))
	}

	bal, err := utils.CombineLimbHex(res[0], res[1])
	if err != nil {
		return nil, fmt.Errorf("balanceOf result: %w", err)
	}

	return bal, nil
}
