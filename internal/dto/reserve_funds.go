package dto

import "github.com/qslv/transaction-engine/internal/core/domain"

// ReserveFundsRequest reserves funds with optional overdraft protection. When
// ProtectAgainstOverdraft is set and the primary account lacks funds, the
// cascade walks the account's overdraft chain.
type ReserveFundsRequest struct {
	RequestUUID             string `json:"requestUuid" binding:"required,uuid"`
	AccountNumber           string `json:"accountNumber"`
	DebitCardNumber         string `json:"debitCardNumber"`
	TransactionAmount       int64  `json:"transactionAmount"`
	TransactionMetadataJSON string `json:"transactionMetaDataJson" binding:"required"`
	ProtectAgainstOverdraft bool   `json:"protectAgainstOverdraft"`
}

// ReserveFundsResponse carries the complete ordered per-account audit trail:
// zero or more rejections followed by the terminal reservation, or all
// rejections when no account could cover the amount.
type ReserveFundsResponse struct {
	Status       Status                       `json:"status"`
	Transactions []domain.TransactionResource `json:"transactions"`
}
