package utils

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/x402-starknet/types"
)

func validPayload() *types.PaymentPayload {
	return &types.PaymentPayload{
		X402Version: 1,
		Scheme:      "exact",
		Network:     "sepolia",
		Authorization: types.PaymentAuthorization{
			From:       "0x1111",
			To:         "0x2222",
			Amount:     "1000000",
			Token:      "0x3333",
			Nonce:      "0x4444",
			ValidUntil: "1900000000",
		},
		Signature: []string{"0xaa", "0xbb"},
	}
}

func TestValidatePayload_OK(t *testing.T) {
	assert.NoError(t, ValidatePayload(validPayload()))
}

func TestValidatePayload_AcceptsPaddedAddresses(t *testing.T) {
	// The standard Starknet rendering zero-pads addresses to 64 nibbles.
	p := validPayload()
	p.Authorization.Token = "0x" + strings.Repeat("0", 61) + "333"
	p.Authorization.From = "0x" + strings.Repeat("0", 60) + "1111"

	assert.NoError(t, ValidatePayload(p))
}

func TestValidatePayload_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.PaymentPayload)
	}{
		{"nil payload handled by caller", nil},
		{"missing scheme", func(p *types.PaymentPayload) { p.Scheme = "" }},
		{"missing network", func(p *types.PaymentPayload) { p.Network = "" }},
		{"zero version", func(p *types.PaymentPayload) { p.X402Version = 0 }},
		{"empty signature", func(p *types.PaymentPayload) { p.Signature = nil }},
		{"signed amount", func(p *types.PaymentPayload) { p.Authorization.Amount = "-5" }},
		{"fractional amount", func(p *types.PaymentPayload) { p.Authorization.Amount = "1.5" }},
		{"hex amount", func(p *types.PaymentPayload) { p.Authorization.Amount = "0x10" }},
		{"non-numeric validUntil", func(p *types.PaymentPayload) { p.Authorization.ValidUntil = "soon" }},
		{"missing from", func(p *types.PaymentPayload) { p.Authorization.From = "" }},
		{"non-hex token", func(p *types.PaymentPayload) { p.Authorization.Token = "USDC" }},
		{"oversized felt", func(p *types.PaymentPayload) {
			// 65 nibbles, one past the padded-address width.
			p.Authorization.To = "0x" + strings.Repeat("1", 65)
		}},
		{"felt above field prime", func(p *types.PaymentPayload) {
			// 2^256-1, well beyond the Starknet field modulus.
			p.Authorization.To = "0x" + strings.Repeat("f", 64)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.mutate == nil {
				assert.Error(t, ValidatePayload(nil))
				return
			}

			p := validPayload()
			tt.mutate(p)

			err := ValidatePayload(p)
			require.Error(t, err)
			assert.NotEmpty(t, err.Error())
		})
	}
}

func TestValidateRequirements(t *testing.T) {
	req := &types.PaymentRequirements{
		Scheme:            "exact",
		Network:           "sepolia",
		MaxAmountRequired: "1000000",
		Resource:          "https://example.com/report",
		PayTo:             "0x2222",
		Asset:             "0x3333",
		MaxTimeoutSeconds: 60,
	}
	assert.NoError(t, ValidateRequirements(req))

	bad := *req
	bad.MaxAmountRequired = "1,000"
	assert.Error(t, ValidateRequirements(&bad))

	assert.Error(t, ValidateRequirements(nil))
}

func TestParsePaymentPayload(t *testing.T) {
	raw, err := json.Marshal(validPayload())
	require.NoError(t, err)

	p, err := ParsePaymentPayload(raw)
	require.NoError(t, err)
	assert.Equal(t, "0x1111", p.Authorization.From)

	_, err = ParsePaymentPayload([]byte(`{"x402Version": 1}`))
	require.Error(t, err)

	var x402Err *types.X402Error
	require.ErrorAs(t, err, &x402Err)
	assert.Equal(t, types.ReasonStructuralInvalid, x402Err.Code)
}

func TestParsePaymentRequirements(t *testing.T) {
	data := []byte(`{
		"scheme": "exact",
		"network": "sepolia",
		"maxAmountRequired": "1000000",
		"resource": "https://example.com/report",
		"payTo": "0x2222",
		"asset": "0x3333",
		"maxTimeoutSeconds": 60
	}`)

	req, err := ParsePaymentRequirements(data)
	require.NoError(t, err)
	assert.Equal(t, "1000000", req.MaxAmountRequired)

	_, err = ParsePaymentRequirements([]byte(`not json`))
	assert.Error(t, err)
}
