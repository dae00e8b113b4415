package dto

import "github.com/qslv/transaction-engine/internal/core/domain"

// TransferFundsRequest moves funds between two accounts: a synchronous hold on
// the source followed by asynchronous fulfillment on the destination.
type TransferFundsRequest struct {
	RequestUUID             string `json:"requestUuid" binding:"required,uuid"`
	FromAccountNumber       string `json:"fromAccountNumber" binding:"required"`
	ToAccountNumber         string `json:"toAccountNumber" binding:"required"`
	TransactionAmount       int64  `json:"transactionAmount" binding:"required,gt=0"`
	TransactionMetadataJSON string `json:"transactionMetaDataJson" binding:"required"`
}

// TransferFulfillmentMessage instructs the asynchronous consumer to complete
// the second leg of a transfer: credit the destination, then commit the source
// reservation. RequestUUID equals the reservation's transaction UUID so the
// whole fulfillment is idempotent under redelivery.
type TransferFulfillmentMessage struct {
	Version                 string `json:"version"`
	RequestUUID             string `json:"requestUuid"`
	ReservationUUID         string `json:"reservationUuid"`
	FromAccountNumber       string `json:"fromAccountNumber"`
	ToAccountNumber         string `json:"toAccountNumber"`
	TransactionAmount       int64  `json:"transactionAmount"`
	TransactionMetadataJSON string `json:"transactionMetaDataJson"`
}

// TransferFulfillmentVersion is the only version the consumer accepts.
const TransferFulfillmentVersion = "v1_0"

// TransferFundsResponse returns the source reservation and the fulfillment
// message that was published for it.
type TransferFundsResponse struct {
	Status      Status                      `json:"status"`
	Reservation *domain.TransactionResource `json:"reservation"`
	Fulfillment *TransferFulfillmentMessage `json:"fulfillmentMessage"`
}

// TransferAndTransactRequest treats a caller-supplied reservation as already
// held and performs, in order, a commit of that reservation and a direct
// transaction, both under one request UUID.
type TransferAndTransactRequest struct {
	RequestUUID         string                      `json:"requestUuid" binding:"required,uuid"`
	TransferReservation *domain.TransactionResource `json:"transferReservation" binding:"required"`
	TransactionRequest  *TransactionRequest         `json:"transactionRequest" binding:"required"`
}

// TransferAndTransactResponse returns the commit row and the transaction row,
// in that order.
type TransferAndTransactResponse struct {
	Status       Status                       `json:"status"`
	Transactions []domain.TransactionResource `json:"transactions"`
}
