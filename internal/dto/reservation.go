package dto

import "github.com/qslv/transaction-engine/internal/core/domain"

// ReservationRequest places a provisional hold against an account or debit
// card. The amount is negative for a hold; zero is rejected before any
// mutation.
type ReservationRequest struct {
	RequestUUID             string `json:"requestUuid" binding:"required,uuid"`
	AccountNumber           string `json:"accountNumber"`
	DebitCardNumber         string `json:"debitCardNumber"`
	TransactionAmount       int64  `json:"transactionAmount"`
	TransactionMetadataJSON string `json:"transactionMetaDataJson" binding:"required"`
	AuthorizeAgainstBalance bool   `json:"authorizeAgainstBalance"`
	Version                 string `json:"version,omitempty"`
}

// ReservationResponse returns the RESERVATION row, or the
// REJECTED_TRANSACTION row when authorization failed.
type ReservationResponse struct {
	Status   Status                      `json:"status"`
	Resource *domain.TransactionResource `json:"resource"`
}

// CommitReservationRequest finalizes a reservation, optionally adjusting the
// held amount to the settled amount.
type CommitReservationRequest struct {
	RequestUUID             string `json:"requestUuid" binding:"required,uuid"`
	ReservationUUID         string `json:"reservationUuid" binding:"required,uuid"`
	TransactionAmount       int64  `json:"transactionAmount"`
	TransactionMetadataJSON string `json:"transactionMetaDataJson" binding:"required"`
	Version                 string `json:"version,omitempty"`
}

// CommitReservationResponse returns the RESERVATION_COMMIT row.
type CommitReservationResponse struct {
	Status   Status                      `json:"status"`
	Resource *domain.TransactionResource `json:"resource"`
}

// CancelReservationRequest reverses a reservation's balance effect entirely.
type CancelReservationRequest struct {
	RequestUUID             string `json:"requestUuid" binding:"required,uuid"`
	ReservationUUID         string `json:"reservationUuid" binding:"required,uuid"`
	TransactionMetadataJSON string `json:"transactionMetaDataJson" binding:"required"`
	Version                 string `json:"version,omitempty"`
}

// CancelReservationResponse returns the RESERVATION_CANCEL row.
type CancelReservationResponse struct {
	Status   Status                      `json:"status"`
	Resource *domain.TransactionResource `json:"resource"`
}
