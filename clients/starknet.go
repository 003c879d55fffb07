package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vitwit/x402-starknet/logger"
)

// selectorMask truncates sn_keccak to 250 bits.
var selectorMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))

// StarknetReader is a ChainReader backed by a Starknet JSON-RPC node.
type StarknetReader struct {
	endpoint string
	http     *http.Client
	log      logger.Logger
	nextID   atomic.Int64
}

type ReaderOption func(*StarknetReader)

func WithReaderLogger(l logger.Logger) ReaderOption {
	return func(r *StarknetReader) {
		r.log = l
	}
}

// NewStarknetReader creates a reader for the given node endpoint.
func NewStarknetReader(endpoint string, httpClient *http.Client, opts ...ReaderOption) *StarknetReader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	r := &StarknetReader{
		endpoint: endpoint,
		http:     httpClient,
		log:      logger.NoopLogger{},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *StarknetReader) ChainID(ctx context.Context) (string, error) {
	var id string
	if err := r.rpc(ctx, "starknet_chainId", []interface{}{}, &id); err != nil {
		return "", err
	}
	return id, nil
}

func (r *StarknetReader) CallContract(ctx context.Context, contract, entrypoint string, calldata []string) ([]string, error) {
	if calldata == nil {
		calldata = []string{}
	}

	request := map[string]interface{}{
		"contract_address":     contract,
		"entry_point_selector": entryPointSelector(entrypoint),
		"calldata":             calldata,
	}

	var out []string
	if err := r.rpc(ctx, "starknet_call", []interface{}{request, "latest"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *StarknetReader) WaitForAcceptance(ctx context.Context, txHash string, poll time.Duration, terminal []string) (*TxStatus, error) {
	if poll <= 0 {
		poll = 2 * time.Second
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		var status struct {
			FinalityStatus  string `json:"finality_status"`
			ExecutionStatus string `json:"execution_status"`
		}
		err := r.rpc(ctx, "starknet_getTransactionStatus", []interface{}{txHash}, &status)
		if err != nil {
			// Keep polling; a persistently failing endpoint must still be
			// visible in the logs rather than look like a slow chain.
			r.log.Warn("transaction status poll failed", map[string]any{
				"txHash": txHash,
				"error":  err.Error(),
			})
		} else {
			if status.FinalityStatus == StatusRejected {
				return nil, fmt.Errorf("transaction %s rejected", txHash)
			}

			for _, want := range terminal {
				if status.FinalityStatus == want {
					out := &TxStatus{
						FinalityStatus:  status.FinalityStatus,
						ExecutionStatus: status.ExecutionStatus,
					}
					// Block info is best effort; the receipt may lag the status.
					if receipt, rerr := r.receipt(ctx, txHash); rerr == nil {
						out.BlockNumber = receipt.BlockNumber
						out.BlockHash = receipt.BlockHash
					}
					return out, nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

type txReceipt struct {
	BlockNumber uint64 `json:"block_number"`
	BlockHash   string `json:"block_hash"`
}

func (r *StarknetReader) receipt(ctx context.Context, txHash string) (*txReceipt, error) {
	var out txReceipt
	if err := r.rpc(ctx, "starknet_getTransactionReceipt", []interface{}{txHash}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *StarknetReader) rpc(ctx context.Context, method string, params, result interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      r.nextID.Add(1),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: http status %d", method, resp.StatusCode)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%s: malformed response: %w", method, err)
	}

	if envelope.Error != nil {
		return fmt.Errorf("%s: %s (code %d)", method, envelope.Error.Message, envelope.Error.Code)
	}

	if len(envelope.Result) == 0 {
		return fmt.Errorf("%s: response carries no result", method)
	}

	return json.Unmarshal(envelope.Result, result)
}

// entryPointSelector computes the sn_keccak selector of an entrypoint name.
func entryPointSelector(name string) string {
	h := crypto.Keccak256([]byte(name))
	n := new(big.Int).SetBytes(h)
	n.And(n, selectorMask)
	return hexutil.EncodeBig(n)
}
