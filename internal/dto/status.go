package dto

// Status reports the business outcome of a ledger operation. Insufficient
// funds is a successful exchange carrying a rejection resource, never a
// transport-level failure.
type Status string

const (
	StatusSuccess           Status = "SUCCESS"
	StatusSuccessOverdraft  Status = "SUCCESS_OVERDRAFT"
	StatusInsufficientFunds Status = "INSUFFICIENT_FUNDS"
)
