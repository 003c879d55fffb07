package types

import (
	"encoding/json"
	"fmt"
)

// X402Version represents the version of the x402 protocol
type X402Version int

const (
	X402Version1 X402Version = 1
)

// PaymentScheme represents different payment schemes
type PaymentScheme string

const (
	SchemeExact PaymentScheme = "exact"
)

type SupportedItem struct {
	X402Version int    `json:"x402Version"`
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`
}

type SupportedResponse struct {
	Kinds []SupportedItem `json:"kinds"`
}

// PaymentRequirements defines the requirements a resource server accepts for payment.
type PaymentRequirements struct {
	// Scheme of the payment protocol to use (currently only "exact").
	Scheme string `json:"scheme" validate:"required"`

	// Network of the chain to send payment on (e.g., "sepolia").
	Network string `json:"network" validate:"required"`

	// Maximum amount required to pay for the resource in atomic units of the asset.
	// Represented as a digit-only decimal string because Go does not support uint256.
	MaxAmountRequired string `json:"maxAmountRequired" validate:"required,uintstr"`

	// URL of the resource to pay for.
	Resource string `json:"resource"`

	// Description of the resource being purchased.
	Description string `json:"description,omitempty"`

	// MIME type of the resource response (e.g., "application/json").
	MimeType string `json:"mimeType,omitempty"`

	// Address to which the payment must be sent.
	PayTo string `json:"payTo" validate:"required,felt"`

	// Address of the token contract the payment is denominated in.
	Asset string `json:"asset" validate:"required,felt"`

	// Maximum time in seconds for the resource server to respond.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds,omitempty"`

	// Extra information about payment details specific to the scheme.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// PaymentAuthorization is the signed commitment binding a payer to transfer a
// specific amount of a specific token to a specific recipient. Immutable once
// signed; replay protection comes from the chain-enforced nonce.
type PaymentAuthorization struct {
	From       string `json:"from" validate:"required,felt"`
	To         string `json:"to" validate:"required,felt"`
	Amount     string `json:"amount" validate:"required,uintstr"`
	Token      string `json:"token" validate:"required,felt"`
	Nonce      string `json:"nonce" validate:"required,felt"`
	ValidUntil string `json:"validUntil" validate:"required,uintstr"` // unix seconds
}

// PaymentPayload is the decoded payment header produced by the client.
// PaymasterURL and TypedData are attached out-of-band during creation and are
// consumed by settlement, never by verification.
type PaymentPayload struct {
	X402Version int `json:"x402Version" validate:"required,gt=0"`

	Scheme string `json:"scheme" validate:"required"`

	Network string `json:"network" validate:"required"`

	Authorization PaymentAuthorization `json:"authorization"`

	// Signature felt components over the paymaster typed data.
	Signature []string `json:"signature" validate:"required,min=1,dive,felt"`

	// Paymaster endpoint the payload was built against.
	PaymasterURL string `json:"paymasterUrl,omitempty"`

	// Paymaster-specific signing artifact (SNIP-12 typed data), kept opaque.
	TypedData json.RawMessage `json:"typedData,omitempty"`
}

// VerifyRequest represents the payload sent to a facilitator to verify a payment.
type VerifyRequest struct {
	// Version of the x402 payment protocol.
	X402Version int `json:"x402Version"`

	// Decoded payment header from the client.
	PaymentPayload PaymentPayload `json:"paymentPayload"`

	// Payment requirements being verified against.
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// ExtraData contains additional operation-specific detail
type ExtraData map[string]interface{}

// VerificationResult contains the result of payment verification.
// Details may carry the observed balance, expiry timestamps, or raw error text.
type VerificationResult struct {
	IsValid       bool      `json:"isValid"`
	InvalidReason string    `json:"invalidReason,omitempty"`
	Payer         string    `json:"payer,omitempty"`
	Details       ExtraData `json:"details,omitempty"`
}

// SettlementResult contains the result of payment settlement.
// Either Success is true and Transaction carries a hash, or Success is false
// and Transaction is empty; no partial state is ever produced.
type SettlementResult struct {
	Success     bool      `json:"success"`
	ErrorReason string    `json:"errorReason,omitempty"`
	Transaction string    `json:"transaction"`
	Network     string    `json:"network,omitempty"`
	Payer       string    `json:"payer,omitempty"`
	Status      string    `json:"status,omitempty"`
	BlockNumber uint64    `json:"blockNumber,omitempty"`
	BlockHash   string    `json:"blockHash,omitempty"`
	Extra       ExtraData `json:"extra,omitempty"`
}

// X402Error is a typed error for caller-misuse and configuration failures.
type X402Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *X402Error) Error() string {
	return e.Message
}

// Validate checks that the VerifyRequest contains all required fields.
func (v *VerifyRequest) Validate() error {
	if v.X402Version <= 0 {
		return fmt.Errorf("x402Version must be greater than 0")
	}

	if err := v.PaymentPayload.Validate(); err != nil {
		return err
	}

	return v.PaymentRequirements.Validate()
}

// Validate performs the presence checks that do not need the schema validator.
func (p *PaymentPayload) Validate() error {
	if p.X402Version <= 0 {
		return fmt.Errorf("paymentPayload.x402Version must be greater than 0")
	}

	if p.Scheme == "" {
		return fmt.Errorf("paymentPayload.scheme is required")
	}

	if p.Network == "" {
		return fmt.Errorf("paymentPayload.network is required")
	}

	if len(p.Signature) == 0 {
		return fmt.Errorf("paymentPayload.signature is required")
	}

	return nil
}

func (pr *PaymentRequirements) Validate() error {
	if pr.Scheme == "" {
		return fmt.Errorf("paymentRequirements.scheme is required")
	}

	if pr.Network == "" {
		return fmt.Errorf("paymentRequirements.network is required")
	}

	if pr.MaxAmountRequired == "" {
		return fmt.Errorf("paymentRequirements.maxAmountRequired is required")
	}

	if pr.PayTo == "" {
		return fmt.Errorf("paymentRequirements.payTo is required")
	}

	if pr.Asset == "" {
		return fmt.Errorf("paymentRequirements.asset is required")
	}

	return nil
}
