package domain

// LifecycleStatus is the two-letter lifecycle code carried by accounts, debit
// cards, and overdraft instructions.
type LifecycleStatus string

const (
	StatusEffective LifecycleStatus = "EF"
	StatusClosed    LifecycleStatus = "CL"
)

// IsEffective reports whether the entity is usable for new transactions.
func (s LifecycleStatus) IsEffective() bool {
	return s == StatusEffective
}

// Account holds the per-account running balance. The balance is mutated only
// through ledger postings; provisioning happens outside this service.
type Account struct {
	AccountNumber   string          `json:"accountNumber"`
	LifecycleStatus LifecycleStatus `json:"lifecycleStatus"`
	RunningBalance  int64           `json:"runningBalance"`
}

// DebitCard is an alternative identifier for an account.
type DebitCard struct {
	DebitCardNumber string          `json:"debitCardNumber"`
	AccountNumber   string          `json:"accountNumber"`
	LifecycleStatus LifecycleStatus `json:"lifecycleStatus"`
}
