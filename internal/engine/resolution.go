package engine

// ResolveMarket transitions the engine into wind-down mode: trading,
// deposits, new accounts, and insurance top-ups are blocked from this point
// on; withdraw and close_account remain available so users can exit; the
// keeper cycle's resolution branch begins force-closing every open
// position at resolutionPrice in its next cranks.
func (e *Engine) ResolveMarket(resolutionPrice uint64) error {
	if e.Resolved {
		return ErrAlreadyResolved
	}
	if resolutionPrice == 0 {
		return ErrInvalidOracle
	}
	e.Resolved = true
	e.ResolutionPrice = resolutionPrice
	return nil
}
