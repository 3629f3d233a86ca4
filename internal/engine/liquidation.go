package engine

import "riskslab/internal/i128"

// dustAbsPosition is the minimum residual position magnitude below which a
// partial close is promoted to a full close rather than leaving a sliver
// position too small to be worth the bookkeeping.
var dustAbsPosition = i128.U128FromUint64(1)

// LiquidateAtOracle checks eligibility and, if the account is below
// maintenance margin, closes enough of its position (closed-form, no
// iteration) to restore it above maintenance plus a buffer. The close
// always prices at the oracle, never at a counterparty's price.
func (e *Engine) LiquidateAtOracle(idx uint16, oraclePrice uint64, nowSlot uint64) error {
	acc, err := e.account(idx)
	if err != nil {
		return err
	}
	if err := e.touchFull(idx, oraclePrice, nowSlot); err != nil {
		return err
	}
	if acc.PositionSize.IsZero() {
		return nil
	}
	mmReq := marginRequirement(acc.PositionSize, oraclePrice, e.Params.MaintenanceMarginBps)
	eq := e.effectiveEquity(acc, i128.ZeroI128)
	if eq.Cmp(mmReq) > 0 {
		return nil
	}
	return e.closePosition(idx, oraclePrice, nowSlot, e.sizeToClose(acc, oraclePrice, eq))
}

// sizeToClose is the closed-form partial-close size: the smallest |close|
// that restores equity to MM_req plus a one-unit conservative buffer,
// derived directly rather than iterated, since margin-after-close is
// linear in the amount closed for a fixed oracle price. Falls back to a
// full close if the arithmetic cannot be solved safely or if the residual
// position would be dust.
func (e *Engine) sizeToClose(acc *Account, oraclePrice uint64, eq i128.U128) i128.I128 {
	absPos := acc.PositionSize.AbsToU128()
	mmBps := uint64(e.Params.MaintenanceMarginBps)

	// Solve for delta (base units closed) such that:
	//   (eq + delta*sign_against*oracle_price/1e6)   [equity gained by closing]
	//     >= (|pos|-delta) * oracle_price/1e6 * mmBps/10000 + buffer(1 unit)
	// Rearranged: delta * oracle_price/1e6 * (1 + mmBps/10000)
	//     >= |pos|*oracle_price/1e6*mmBps/10000 + buffer - eq
	// i.e. delta >= (mmReqFull - eq + buffer) / (price/1e6 * (1+mmBps/10000))
	mmReqFull := marginRequirement(acc.PositionSize, oraclePrice, e.Params.MaintenanceMarginBps)
	shortfall, ok := mmReqFull.SubChecked(eq)
	if !ok {
		shortfall = i128.ZeroU128
	}
	shortfall = shortfall.Add(i128.U128FromUint64(1)) // conservative rounding guard

	denomNum := oraclePrice
	denomBps := bpsDenom + mmBps // scaled (1 + mmBps/10000) by 10000
	// delta = shortfall * 1e6 * 10000 / (oraclePrice * denomBps)
	numerator, ok := shortfall.MulChecked(i128.U128FromUint64(priceScale))
	if !ok {
		return i128.FromU128(absPos).Mul(signOf(acc.PositionSize))
	}
	numerator, ok = numerator.MulChecked(i128.U128FromUint64(bpsDenom))
	if !ok {
		return i128.FromU128(absPos).Mul(signOf(acc.PositionSize))
	}
	denom := denomNum * denomBps
	if denom == 0 {
		return i128.FromU128(absPos).Mul(signOf(acc.PositionSize))
	}
	delta := i128.MulDivUp(numerator, 1, denom)

	if delta.Cmp(absPos) >= 0 {
		delta = absPos
	}
	residual, ok := absPos.SubChecked(delta)
	if ok && !residual.IsZero() && residual.Cmp(dustAbsPosition) <= 0 {
		delta = absPos
	}

	closeSize := i128.FromU128(delta).Mul(signOf(acc.PositionSize)).Neg()
	return closeSize
}

func signOf(x i128.I128) i128.I128 {
	if x.Sign() < 0 {
		return i128.I128FromInt64(-1)
	}
	return i128.I128FromInt64(1)
}

// closePosition realizes closeSize (signed, applied to the account's own
// position — e.g. a negative closeSize reduces a long) against oraclePrice,
// charges a capped liquidation fee, and runs the remaining touch steps.
// closeSize == 0 is a no-op; a magnitude equal to |position| is a full
// close.
func (e *Engine) closePosition(idx uint16, oraclePrice uint64, nowSlot uint64, closeSize i128.I128) error {
	acc := &e.Accounts[idx]
	if closeSize.IsZero() {
		return nil
	}
	oldPos := acc.PositionSize
	newPos, ok := oldPos.AddChecked(closeSize)
	if !ok {
		newPos = i128.ZeroI128 // overflow on a close can only mean "go flat"
	}

	priceDelta := i128.I128FromInt64(int64(oraclePrice)).Sub(i128.I128FromInt64(int64(acc.EntryPrice)))
	closedMagnitude := closeSize.Neg() // base units removed from the position
	markRaw, ok := closedMagnitude.MulChecked(priceDelta)
	var mark i128.I128
	if ok {
		mark = i128.FloorDiv(markRaw, priceScale)
	} else {
		mark = i128.FromU128(acc.capital).Neg() // fail-safe: worst-case loss
	}
	e.setPnL(idx, acc.pnl.Add(mark))

	e.adjustOpenInterest(oldPos, newPos)
	if acc.IsLP() {
		e.trackLPPosition(oldPos, newPos)
	}
	acc.PositionSize = newPos

	absClosedNotional := notional(closedMagnitude, oraclePrice)
	fee := i128.MulDivDown(absClosedNotional, uint64(e.Params.LiquidationFeeBps), bpsDenom)
	fee = fee.Min(e.Params.LiquidationFeeCap).Min(acc.capital)
	if !fee.IsZero() {
		e.setCapital(idx, acc.capital.Sub(fee))
		e.Insurance = e.Insurance.Add(fee)
	}

	e.settleLoss(idx)
	if err := e.convertWarmup(idx, nowSlot); err != nil {
		return err
	}
	e.sweepFeeDebt(idx)
	return nil
}

// forceRealize is the insurance-exhausted-regime close: it unconditionally
// realizes the entire position at the oracle price (profit routes through
// the haircut, loss realizes from own capital), without requiring the
// maintenance-margin eligibility check LiquidateAtOracle applies. It is
// used only from the keeper cycle once insurance has fallen to or below
// risk_reduction_threshold.
func (e *Engine) forceRealize(idx uint16, oraclePrice uint64, nowSlot uint64) error {
	acc, err := e.account(idx)
	if err != nil {
		return err
	}
	if err := e.touchFull(idx, oraclePrice, nowSlot); err != nil {
		return err
	}
	if acc.PositionSize.IsZero() {
		return nil
	}
	full := acc.PositionSize.Neg()
	return e.closePosition(idx, oraclePrice, nowSlot, full)
}
