package engine

import "riskslab/internal/i128"

// Deposit credits amount to an account's capital and the vault. Blocked
// once the market is resolved.
func (e *Engine) Deposit(idx uint16, amount i128.U128, nowSlot uint64) error {
	if e.Resolved {
		return ErrAlreadyResolved
	}
	acc, err := e.account(idx)
	if err != nil {
		return err
	}
	if err := e.touchFull(idx, acc.EntryPrice, nowSlot); err != nil {
		return err
	}
	e.setCapital(idx, acc.capital.Add(amount))
	e.Vault = e.Vault.Add(amount)
	return nil
}

// Withdraw debits amount from an account's capital and the vault, after a
// full touch at oraclePrice, requiring post-withdrawal equity to clear
// initial margin (the conservative bound, since a withdrawal is always
// risk-increasing relative to the account's own solvency).
func (e *Engine) Withdraw(idx uint16, amount i128.U128, oraclePrice uint64, nowSlot uint64) error {
	acc, err := e.account(idx)
	if err != nil {
		return err
	}
	if err := e.touchFull(idx, oraclePrice, nowSlot); err != nil {
		return err
	}
	if amount.Cmp(acc.capital) > 0 {
		return ErrInsufficientCapital
	}
	projected := acc.capital.Sub(amount)
	eq := effectiveEquityAfterCapital(e, acc, projected)
	imReq := marginRequirement(acc.PositionSize, oraclePrice, e.Params.InitialMarginBps)
	if eq.Cmp(imReq) < 0 {
		return ErrBelowInitialMargin
	}
	e.setCapital(idx, projected)
	e.Vault = e.Vault.Sub(amount)
	return nil
}

// effectiveEquityAfterCapital recomputes effective equity as if capital had
// already been replaced by projectedCapital, without mutating the account —
// used by Withdraw's pre-check.
func effectiveEquityAfterCapital(e *Engine, acc *Account, projectedCapital i128.U128) i128.U128 {
	hNum, hDen := e.haircutRatio()
	eq := i128.FromU128(projectedCapital)
	if neg := i128.MaxOfZero(acc.pnl.Neg()); !neg.IsZero() {
		eq = eq.Sub(neg)
	}
	eq = eq.Add(i128.FromU128(effectivePositivePnL(acc.pnl, hNum, hDen)))
	eq = eq.Sub(i128.FromU128(feeDebt(acc.FeeCredits)))
	if eq.Sign() < 0 {
		return i128.ZeroU128
	}
	return eq.ToU128()
}

// CloseAccount fully settles an account and frees its slot. Requires a flat
// position. After the full touch pnl is never negative (loss settlement
// paid it from capital or wrote it off); any positive pnl that warmup has
// not yet converted is set to zero, and the remaining capital leaves the
// vault.
func (e *Engine) CloseAccount(idx uint16, oraclePrice uint64, nowSlot uint64) error {
	acc, err := e.account(idx)
	if err != nil {
		return err
	}
	if err := e.touchFull(idx, oraclePrice, nowSlot); err != nil {
		return err
	}
	if !acc.PositionSize.IsZero() {
		return ErrPositionsRemain
	}
	remaining := acc.capital
	if !remaining.IsZero() {
		e.Vault = e.Vault.Sub(remaining)
		e.setCapital(idx, i128.ZeroU128)
	}
	if !acc.pnl.IsZero() {
		e.setPnL(idx, i128.ZeroI128)
	}
	if acc.IsLP() {
		e.untrackLP(acc)
	}
	e.freeSlot(idx)
	return nil
}

// TopUpInsurance credits the insurance reserve and the vault directly, the
// operator-funded top-up path. Blocked once resolved.
func (e *Engine) TopUpInsurance(amount i128.U128) error {
	if e.Resolved {
		return ErrAlreadyResolved
	}
	e.Insurance = e.Insurance.Add(amount)
	e.Vault = e.Vault.Add(amount)
	return nil
}

// WithdrawInsurance releases the insurance reserve to the operator. Only
// permitted post-resolution, once every used account carries a flat
// position, which this method checks by scanning the used accounts.
func (e *Engine) WithdrawInsurance() (i128.U128, error) {
	if !e.Resolved {
		return i128.ZeroU128, ErrNotResolved
	}
	var positionsRemain bool
	forEachUsed(e.usedBitmap, uint16(len(e.Accounts)), func(idx uint16) {
		if !e.Accounts[idx].PositionSize.IsZero() {
			positionsRemain = true
		}
	})
	if positionsRemain {
		return i128.ZeroU128, ErrPositionsRemain
	}
	amount := e.Insurance
	e.Insurance = i128.ZeroU128
	e.Vault = e.Vault.Sub(amount)
	return amount, nil
}

// SetRiskReductionThreshold sets the insurance level below which the
// keeper cycle enters the force-realize (insurance-exhausted) regime.
func (e *Engine) SetRiskReductionThreshold(v i128.U128) { e.RiskReductionThreshold = v }

// SetMaintenanceFee updates the per-slot maintenance fee rate.
func (e *Engine) SetMaintenanceFee(v i128.U128) { e.Params.MaintenanceFeePerSlot = v }

// UpdateParams replaces the engine's risk parameters wholesale. The host is
// responsible for only ever widening bounds in a way that does not
// retroactively invalidate in-flight accounts; the engine itself does not
// attempt to re-validate existing state against the new parameters.
func (e *Engine) UpdateParams(p RiskParams) { e.Params = p }
