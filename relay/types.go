package relay

import "encoding/json"

// JSON-RPC 2.0 request structure
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      int64       `json:"id"`
}

// JSON-RPC 2.0 response structure
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      int64           `json:"id"`
}

// JSON-RPC 2.0 error structure
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Call describes a single contract invocation inside a paymaster transaction.
type Call struct {
	ContractAddress string   `json:"contractAddress"`
	EntryPoint      string   `json:"entrypoint"`
	Calldata        []string `json:"calldata"`
}

// FeeMode selects who pays execution fees. The sponsored mode makes the relay
// cover gas; the default mode names a gas token the payer funds.
type FeeMode struct {
	Mode     string `json:"mode"`
	GasToken string `json:"gasToken,omitempty"`
}

const FeeModeSponsored = "sponsored"

// BuildParams are the parameters for paymaster_buildTransaction.
type BuildParams struct {
	UserAddress string  `json:"userAddress"`
	Calls       []Call  `json:"calls"`
	FeeMode     FeeMode `json:"feeMode"`
}

// BuildResult carries the typed data the payer must sign for the relay to
// execute on their behalf.
type BuildResult struct {
	Type       string          `json:"type"`
	TypedData  json.RawMessage `json:"typedData"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// ExecuteParams are the parameters for paymaster_executeTransaction.
type ExecuteParams struct {
	UserAddress string          `json:"userAddress"`
	TypedData   json.RawMessage `json:"typedData"`
	Signature   []string        `json:"signature"`
	FeeMode     FeeMode         `json:"feeMode"`
}

// ExecuteResult is the relay's acknowledgement of a submitted transaction.
type ExecuteResult struct {
	TransactionHash string `json:"transactionHash"`
	TrackingID      string `json:"trackingId,omitempty"`
}

// SupportedToken describes a gas token accepted by the relay.
type SupportedToken struct {
	Address     string `json:"address"`
	Symbol      string `json:"symbol,omitempty"`
	Decimals    int    `json:"decimals,omitempty"`
	PriceInSTRK string `json:"priceInStrk,omitempty"`
}
