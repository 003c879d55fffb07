package types

// Verification invalid reasons. Asset and recipient mismatches deliberately
// reuse the network/amount codes; downstream consumers already branch on these
// strings, so introducing dedicated codes would change observable behavior.
const (
	ReasonStructuralInvalid = "invalid_payload_structure"
	ReasonNetworkMismatch   = "network_mismatch"
	ReasonAmountMismatch    = "amount_mismatch"
	ReasonExpired           = "authorization_expired"
	ReasonInsufficientFunds = "insufficient_funds"
	ReasonUnexpectedVerify  = "unexpected_verify_error"
)

// Selector preflight error codes, raised as *X402Error since they indicate
// caller misuse rather than an external failure.
const (
	ErrNoRequirements    = "no_requirements"
	ErrNetworkMismatch   = "network_mismatch"
	ErrInsufficientFunds = "insufficient_funds"
)

// Settlement error reasons for failures after verification succeeded.
const (
	ErrorReasonMissingPaymaster = "missing_paymaster_url"
	ErrorReasonMissingTypedData = "missing_typed_data"
	ErrorReasonSettleFailed     = "settle_failed"
)
