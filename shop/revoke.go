package shop

// RevocationState is the two-state lifecycle of a revocable ledger row
// (purchases and payoffs): Active -> Revoked, never back.
type RevocationState bool

const (
	Active  RevocationState = false
	Revoked RevocationState = true
)

// Transition is what an update has to do to the ledger.
type Transition int

const (
	// TransitionNone leaves the balances untouched.
	TransitionNone Transition = iota
	// TransitionRevoke reverses the financial effect of the row.
	TransitionRevoke
)

// NextRevocation decides the transition for a requested revoked flag.
//
//	requested  current   result
//	unset      any       none
//	false      Active    none
//	true       Active    revoke
//	true       Revoked   ErrCanOnlyBeRevokedOnce
//	false      Revoked   ErrRevokeIsFinal
func NextRevocation(current RevocationState, requested Opt[bool]) (Transition, error) {
	want, ok := requested.Get()
	if !ok {
		return TransitionNone, nil
	}
	switch {
	case want && current == Revoked:
		return TransitionNone, ErrCanOnlyBeRevokedOnce
	case !want && current == Revoked:
		return TransitionNone, ErrRevokeIsFinal
	case want:
		return TransitionRevoke, nil
	default:
		return TransitionNone, nil
	}
}
