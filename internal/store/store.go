package store

// FinalizeOutcome is the result of reconciling a webhook delivery against
// a pending deposit.
type FinalizeOutcome int

const (
	// FinalizeCredited means the wallet was credited and the transaction
	// marked success, in one durable unit.
	FinalizeCredited FinalizeOutcome = iota
	// FinalizeDuplicate means the reference was already claimed; nothing
	// was mutated and the delivery should be acked.
	FinalizeDuplicate
	// FinalizeFailed means the transaction was marked failed (amount
	// mismatch or processor-reported failure) with no balance effect.
	FinalizeFailed
)

func (o FinalizeOutcome) String() string {
	switch o {
	case FinalizeCredited:
		return "credited"
	case FinalizeDuplicate:
		return "duplicate"
	case FinalizeFailed:
		return "failed"
	}
	return "unknown"
}
