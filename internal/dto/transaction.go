package dto

import "github.com/qslv/transaction-engine/internal/core/domain"

// TransactionRequest records a direct (single-phase) transaction against an
// account or a debit card. Exactly one of AccountNumber/DebitCardNumber must
// be set; that rule is enforced by the service, not the binding.
type TransactionRequest struct {
	RequestUUID             string `json:"requestUuid" binding:"required,uuid"`
	AccountNumber           string `json:"accountNumber"`
	DebitCardNumber         string `json:"debitCardNumber"`
	TransactionAmount       int64  `json:"transactionAmount"`
	TransactionMetadataJSON string `json:"transactionMetaDataJson" binding:"required"`
	AuthorizeAgainstBalance bool   `json:"authorizeAgainstBalance"`
	ProtectAgainstOverdraft bool   `json:"protectAgainstOverdraft"`
	// Version is required on asynchronous fulfillment payloads only.
	Version string `json:"version,omitempty"`
}

// TransactionResponse carries the ordered list of ledger rows the operation
// produced. Direct transactions yield one row; the overdraft-protected
// fulfillment path can yield up to five.
type TransactionResponse struct {
	Status       Status                       `json:"status"`
	Transactions []domain.TransactionResource `json:"transactions"`
}
