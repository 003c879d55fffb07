package utils

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vitwit/x402-starknet/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Register custom validators
	_ = validate.RegisterValidation("uintstr", validateUintStringTag)
	_ = validate.RegisterValidation("felt", validateFeltTag)
}

// ValidatePayload performs the structural check on a decoded payment payload.
// It returns nil on pass, or an error whose message is the diagnostic string.
// Nothing beyond shape is checked here; semantic checks belong to verification.
func ValidatePayload(p *types.PaymentPayload) error {
	if p == nil {
		return fmt.Errorf("payment payload is nil")
	}

	if err := p.Validate(); err != nil {
		return err
	}

	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("payload validation failed: %v", err)
	}

	return nil
}

// ValidateRequirements performs the structural check on payment requirements.
func ValidateRequirements(r *types.PaymentRequirements) error {
	if r == nil {
		return fmt.Errorf("payment requirements are nil")
	}

	if err := r.Validate(); err != nil {
		return err
	}

	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("requirements validation failed: %v", err)
	}

	return nil
}

// ParsePaymentRequirements parses and validates PaymentRequirements from JSON.
func ParsePaymentRequirements(data []byte) (*types.PaymentRequirements, error) {
	var req types.PaymentRequirements

	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &types.X402Error{
			Code:    types.ReasonStructuralInvalid,
			Message: fmt.Sprintf("failed to parse payment requirements: %v", err),
		}
	}

	if err := ValidateRequirements(&req); err != nil {
		return nil, &types.X402Error{
			Code:    types.ReasonStructuralInvalid,
			Message: err.Error(),
		}
	}

	return &req, nil
}

// ParsePaymentPayload parses and validates a PaymentPayload from JSON. The
// framing layer is expected to have rejected anything that is not a plain
// object before the bytes arrive here.
func ParsePaymentPayload(data []byte) (*types.PaymentPayload, error) {
	var p types.PaymentPayload

	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &types.X402Error{
			Code:    types.ReasonStructuralInvalid,
			Message: fmt.Sprintf("failed to parse payment payload: %v", err),
		}
	}

	if err := ValidatePayload(&p); err != nil {
		return nil, &types.X402Error{
			Code:    types.ReasonStructuralInvalid,
			Message: err.Error(),
		}
	}

	return &p, nil
}

// uintstr: digit-only decimal string, no sign, no fraction.
func validateUintStringTag(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return false
	}

	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}

// feltPrime is the Starknet field modulus, 2^251 + 17*2^192 + 1.
var feltPrime, _ = new(big.Int).SetString(
	"800000000000011000000000000000000000000000000000000000000000001", 16)

// felt: 0x-prefixed hex of at most 64 nibbles whose value is below the field
// prime. Leading zeros are fine; the standard Starknet rendering pads
// addresses to 64 characters.
func validateFeltTag(fl validator.FieldLevel) bool {
	s := fl.Field().String()

	t := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if t == "" || len(t) > 64 {
		return false
	}

	n, ok := new(big.Int).SetString(t, 16)
	if !ok || n.Sign() < 0 {
		return false
	}

	return n.Cmp(feltPrime) < 0
}
