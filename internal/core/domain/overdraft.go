package domain

import "time"

// OverdraftInstruction links a primary account to a fallback account consulted
// when the primary lacks funds. Instructions are read-only to the cascade;
// Sequence orders candidates ascending.
type OverdraftInstruction struct {
	AccountNumber          string          `json:"accountNumber"`
	OverdraftAccountNumber string          `json:"overdraftAccountNumber"`
	LifecycleStatus        LifecycleStatus `json:"lifecycleStatus"`
	EffectiveStart         time.Time       `json:"effectiveStart"`
	EffectiveEnd           time.Time       `json:"effectiveEnd"`
	Sequence               int             `json:"sequence"`
}

// EffectiveAt reports whether the instruction itself is usable at the given
// instant: its own status is effective and the instant falls inside the
// [EffectiveStart, EffectiveEnd] window.
func (o OverdraftInstruction) EffectiveAt(now time.Time) bool {
	if !o.LifecycleStatus.IsEffective() {
		return false
	}
	return !now.Before(o.EffectiveStart) && !now.After(o.EffectiveEnd)
}
