package selector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/x402-starknet/clients"
	"github.com/vitwit/x402-starknet/types"
	"github.com/vitwit/x402-starknet/utils"
)

type fakeReader struct {
	chainID    string
	chainIDErr error
	balances   map[string]string // normalized token -> decimal balance
	oracleErrs map[string]error  // normalized token -> read failure
}

func (f *fakeReader) ChainID(context.Context) (string, error) {
	if f.chainIDErr != nil {
		return "", f.chainIDErr
	}
	if f.chainID == "" {
		return types.ChainIDSepolia, nil
	}
	return f.chainID, nil
}

func (f *fakeReader) CallContract(_ context.Context, contract, _ string, _ []string) ([]string, error) {
	token := utils.NormalizeAddress(contract)

	if err, ok := f.oracleErrs[token]; ok {
		return nil, err
	}

	bal, ok := f.balances[token]
	if !ok {
		bal = "0"
	}

	low, high, err := utils.SplitAmountHex(bal)
	if err != nil {
		return nil, err
	}
	return []string{low, high}, nil
}

func (f *fakeReader) WaitForAcceptance(context.Context, string, time.Duration, []string) (*clients.TxStatus, error) {
	return nil, errors.New("not implemented")
}

func requirement(network, asset, amount string, timeout int) types.PaymentRequirements {
	return types.PaymentRequirements{
		Scheme:            "exact",
		Network:           network,
		MaxAmountRequired: amount,
		PayTo:             "0x2222",
		Asset:             asset,
		MaxTimeoutSeconds: timeout,
	}
}

func TestSelect_EmptyCandidates(t *testing.T) {
	s := NewService(&fakeReader{})

	_, err := s.Select(context.Background(), nil, "0x1111")
	require.Error(t, err)

	var x402Err *types.X402Error
	require.ErrorAs(t, err, &x402Err)
	assert.Equal(t, types.ErrNoRequirements, x402Err.Code)
}

func TestSelect_PicksCheapestAffordable(t *testing.T) {
	reader := &fakeReader{balances: map[string]string{
		"0xaaa": "10000000",
	}}
	s := NewService(reader)

	candidates := []types.PaymentRequirements{
		requirement("sepolia", "0xaaa", "1000000", 60),
		requirement("sepolia", "0xaaa", "500000", 60),
	}

	got, err := s.Select(context.Background(), candidates, "0x1111")
	require.NoError(t, err)
	assert.Equal(t, "500000", got.MaxAmountRequired)
}

func TestSelect_TieBrokenByTimeout(t *testing.T) {
	reader := &fakeReader{balances: map[string]string{
		"0xaaa": "10000000",
	}}
	s := NewService(reader)

	candidates := []types.PaymentRequirements{
		requirement("sepolia", "0xaaa", "500000", 120),
		requirement("sepolia", "0xaaa", "500000", 30),
		requirement("sepolia", "0xaaa", "500000", 60),
	}

	got, err := s.Select(context.Background(), candidates, "0x1111")
	require.NoError(t, err)
	assert.Equal(t, 30, got.MaxTimeoutSeconds)
}

func TestSelect_NetworkFilter(t *testing.T) {
	reader := &fakeReader{balances: map[string]string{
		"0xaaa": "10000000",
		"0xbbb": "10000000",
	}}
	s := NewService(reader)

	candidates := []types.PaymentRequirements{
		requirement("starknet", "0xbbb", "1", 60), // cheaper but wrong network
		requirement("sepolia", "0xaaa", "500000", 60),
	}

	got, err := s.Select(context.Background(), candidates, "0x1111")
	require.NoError(t, err)
	assert.Equal(t, "sepolia", got.Network)
}

func TestSelect_NoNetworkMatch(t *testing.T) {
	s := NewService(&fakeReader{})

	candidates := []types.PaymentRequirements{
		requirement("starknet", "0xaaa", "500000", 60),
		requirement("devnet", "0xbbb", "500000", 60),
	}

	_, err := s.Select(context.Background(), candidates, "0x1111")
	require.Error(t, err)

	var x402Err *types.X402Error
	require.ErrorAs(t, err, &x402Err)
	assert.Equal(t, types.ErrNetworkMismatch, x402Err.Code)

	data := x402Err.Data.(map[string]interface{})
	assert.Equal(t, "sepolia", data["resolved"])
	assert.ElementsMatch(t, []string{"starknet", "devnet"}, data["offered"])
}

func TestSelect_InsufficientFunds(t *testing.T) {
	reader := &fakeReader{balances: map[string]string{
		"0xaaa": "499999",
	}}
	s := NewService(reader)

	candidates := []types.PaymentRequirements{
		requirement("sepolia", "0xaaa", "500000", 60),
	}

	_, err := s.Select(context.Background(), candidates, "0x1111")
	require.Error(t, err)

	var x402Err *types.X402Error
	require.ErrorAs(t, err, &x402Err)
	assert.Equal(t, types.ErrInsufficientFunds, x402Err.Code)

	data := x402Err.Data.(map[string]interface{})
	assert.Equal(t, "500000", data["required"])
	assert.Equal(t, "499999", data["balance"])
}

func TestSelect_BalanceEqualToAmountIsAffordable(t *testing.T) {
	reader := &fakeReader{balances: map[string]string{
		"0xaaa": "500000",
	}}
	s := NewService(reader)

	got, err := s.Select(context.Background(),
		[]types.PaymentRequirements{requirement("sepolia", "0xaaa", "500000", 60)}, "0x1111")
	require.NoError(t, err)
	assert.Equal(t, "500000", got.MaxAmountRequired)
}

func TestSelect_OracleFailureMeansUnaffordable(t *testing.T) {
	reader := &fakeReader{
		balances:   map[string]string{"0xbbb": "10000000"},
		oracleErrs: map[string]error{"0xaaa": errors.New("node flaked")},
	}
	s := NewService(reader)

	candidates := []types.PaymentRequirements{
		requirement("sepolia", "0xaaa", "1", 60), // cheaper, but its balance is unreadable
		requirement("sepolia", "0xbbb", "500000", 60),
	}

	got, err := s.Select(context.Background(), candidates, "0x1111")
	require.NoError(t, err)
	assert.Equal(t, "0xbbb", got.Asset)
}

func TestSelect_UnknownChainIDClassifiesAsDevnet(t *testing.T) {
	reader := &fakeReader{
		chainID:  "0x12345",
		balances: map[string]string{"0xaaa": "10000000"},
	}
	s := NewService(reader)

	candidates := []types.PaymentRequirements{
		requirement("devnet", "0xaaa", "500000", 60),
		requirement("sepolia", "0xaaa", "500000", 60),
	}

	got, err := s.Select(context.Background(), candidates, "0x1111")
	require.NoError(t, err)
	assert.Equal(t, "devnet", got.Network)
}

func TestSelect_ChainIDFailureUsesFallback(t *testing.T) {
	reader := &fakeReader{
		chainIDErr: errors.New("chain id unavailable"),
		balances:   map[string]string{"0xaaa": "10000000"},
	}
	s := NewService(reader)

	candidates := []types.PaymentRequirements{
		requirement("devnet", "0xaaa", "500000", 60),
		requirement("sepolia", "0xaaa", "500000", 60),
	}

	got, err := s.Select(context.Background(), candidates, "0x1111")
	require.NoError(t, err)
	assert.Equal(t, FallbackNetwork.String(), got.Network)
}
