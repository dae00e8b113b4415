package domain

import "time"

// TransactionTypeCode classifies a ledger row.
type TransactionTypeCode string

const (
	TypeNormal              TransactionTypeCode = "NORMAL"
	TypeReservation         TransactionTypeCode = "RESERVATION"
	TypeReservationCommit   TransactionTypeCode = "RESERVATION_COMMIT"
	TypeReservationCancel   TransactionTypeCode = "RESERVATION_CANCEL"
	TypeRejectedTransaction TransactionTypeCode = "REJECTED_TRANSACTION"
)

// TransactionResource is a single immutable ledger row. Amounts are signed
// integers in minor currency units. RunningBalanceAmount is the account balance
// immediately after this row was applied; for a rejected row it is the
// unchanged balance observed at the time of rejection.
type TransactionResource struct {
	TransactionUUID         string              `json:"transactionUuid"`
	RequestUUID             string              `json:"requestUuid"`
	AccountNumber           string              `json:"accountNumber"`
	DebitCardNumber         string              `json:"debitCardNumber,omitempty"`
	TransactionAmount       int64               `json:"transactionAmount"`
	TransactionTypeCode     TransactionTypeCode `json:"transactionTypeCode"`
	RunningBalanceAmount    int64               `json:"runningBalanceAmount"`
	ReservationUUID         string              `json:"reservationUuid,omitempty"`
	TransactionMetadataJSON string              `json:"transactionMetaDataJson"`
	InsertTimestamp         time.Time           `json:"insertTimestamp"`
}

// IsRejected reports whether this row records a refused authorization.
func (t TransactionResource) IsRejected() bool {
	return t.TransactionTypeCode == TypeRejectedTransaction
}

// Posting is the instruction handed to a ledger repository. The repository
// applies it atomically against the account balance: the balance read, the
// authorization check, the row insert, and the balance update happen under one
// transaction. When AuthorizeAgainstBalance is set and the post-posting balance
// would be negative, a REJECTED_TRANSACTION row is recorded instead and the
// balance is left untouched.
type Posting struct {
	RequestUUID             string
	AccountNumber           string
	DebitCardNumber         string
	Amount                  int64
	TypeCode                TransactionTypeCode
	AuthorizeAgainstBalance bool
	ReservationUUID         string
	MetadataJSON            string
}
