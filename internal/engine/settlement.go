package engine

import "riskslab/internal/i128"

// touchFull is the canonical settlement sequence invoked before every
// value-changing operation on an account. Step order is load-bearing and
// must never be reordered:
//
//  1. advance current_slot
//  2. accrue global funding (stored rate)
//  3. settle per-account funding into pnl
//  4. settle mark-to-oracle into pnl, bump warmup slope if pnl increased
//  5. charge accrued maintenance fee (credits first, then capital)
//  6. loss settlement
//  7. warmup/profit conversion
//  8. fee-debt sweep
func (e *Engine) touchFull(idx uint16, oraclePrice uint64, nowSlot uint64) error {
	e.CurrentSlot = nowSlot
	if err := e.accrueTo(nowSlot, oraclePrice); err != nil {
		return err
	}
	if err := e.settleFunding(idx); err != nil {
		return err
	}
	if err := e.settleMark(idx, oraclePrice); err != nil {
		return err
	}
	e.chargeMaintenanceFee(idx, nowSlot)
	e.settleLoss(idx)
	if err := e.convertWarmup(idx, nowSlot); err != nil {
		return err
	}
	e.sweepFeeDebt(idx)
	return nil
}

// settleMark realizes mark-to-oracle PnL for the elapsed price move since
// the account's last recorded entry_price, then rebases entry_price to the
// oracle price. An overflowing mark computation wipes equity rather than
// erroring, so that a single numerically extreme position can never wedge
// a touch.
func (e *Engine) settleMark(idx uint16, oraclePrice uint64) error {
	acc := &e.Accounts[idx]
	if acc.PositionSize.IsZero() {
		acc.EntryPrice = oraclePrice
		return nil
	}
	priceDelta := i128.I128FromInt64(int64(oraclePrice)).Sub(i128.I128FromInt64(int64(acc.EntryPrice)))
	before := acc.pnl
	raw, ok := acc.PositionSize.MulChecked(priceDelta)
	if ok {
		mark := i128.FloorDiv(raw, priceScale)
		newPnL, ok2 := acc.pnl.AddChecked(mark)
		if !ok2 {
			e.wipeEquity(idx)
		} else {
			e.setPnL(idx, newPnL)
		}
	} else {
		e.wipeEquity(idx)
	}
	acc.EntryPrice = oraclePrice
	if i128.MaxOfZero(acc.pnl).Cmp(i128.MaxOfZero(before)) > 0 {
		e.recomputeWarmupSlope(idx, e.CurrentSlot)
	}
	return nil
}

// chargeMaintenanceFee debits fee_per_slot * elapsed_slots, spending fee
// credits first (which may go negative, becoming fee debt) and only then
// capital. The portion actually paid from capital is routed to insurance;
// pure-credit consumption never touches insurance, since it was never
// capital to begin with.
func (e *Engine) chargeMaintenanceFee(idx uint16, nowSlot uint64) {
	acc := &e.Accounts[idx]
	if nowSlot <= acc.LastFeeSlot {
		acc.LastFeeSlot = nowSlot
		return
	}
	dt := nowSlot - acc.LastFeeSlot
	acc.LastFeeSlot = nowSlot
	due := e.Params.MaintenanceFeePerSlot.Mul(i128.U128FromUint64(dt))
	if due.IsZero() {
		return
	}

	dueI := i128.FromU128(due)
	acc.FeeCredits = acc.FeeCredits.Sub(dueI)
	if acc.FeeCredits.Sign() >= 0 {
		return
	}
	// Fee credits went negative: the magnitude beyond zero is the portion
	// that must actually be paid from capital.
	shortfall := acc.FeeCredits.Neg().ToU128()
	paidFromCapital := shortfall.Min(acc.capital)
	if paidFromCapital.IsZero() {
		return
	}
	e.setCapital(idx, acc.capital.Sub(paidFromCapital))
	acc.FeeCredits = acc.FeeCredits.Add(i128.FromU128(paidFromCapital))
	e.Insurance = e.Insurance.Add(paidFromCapital)
}

// settleLoss pays min(-pnl, capital) from capital into pnl when pnl is
// negative. Any residual negative pnl beyond what capital can cover is
// written off to zero pnl — it is never hidden: it shows up as the vault
// no longer exactly covering c_tot + insurance + Σ positive pnl, which the
// conservation checker is built to detect, not as a silent clamp.
func (e *Engine) settleLoss(idx uint16) {
	acc := &e.Accounts[idx]
	if acc.pnl.Sign() >= 0 {
		return
	}
	loss := acc.pnl.Neg().ToU128()
	paid := loss.Min(acc.capital)
	if !paid.IsZero() {
		e.setCapital(idx, acc.capital.Sub(paid))
	}
	e.setPnL(idx, i128.ZeroI128)
}

// convertWarmup moves warmed-up profit from pnl into capital, at the
// haircut ratio computed immediately before the mutation (never after,
// since the mutation itself changes the ratio's inputs).
func (e *Engine) convertWarmup(idx uint16, nowSlot uint64) error {
	acc := &e.Accounts[idx]
	pos := i128.MaxOfZero(acc.pnl).ToU128()
	reserved := i128.U128FromUint64(acc.ReservedPnL)
	availGross, ok := pos.SubChecked(reserved)
	if !ok {
		availGross = i128.ZeroU128
	}
	elapsed := slotsSince(nowSlot, acc.WarmupStartedAtSlot)
	capacity := acc.WarmupSlopePerSlot.Mul(i128.U128FromUint64(elapsed))
	warmable := availGross.Min(capacity)
	if warmable.IsZero() {
		return nil
	}

	hNum, hDen := e.haircutRatio()
	var y i128.U128
	if e.pnlPosTot.IsZero() {
		y = warmable
	} else {
		y = i128.MulDivDownU128(warmable, hNum, hDen)
	}

	newPnL := acc.pnl.Sub(i128.FromU128(warmable))
	e.setPnL(idx, newPnL)
	e.setCapital(idx, acc.capital.Add(y))
	acc.WarmupStartedAtSlot = nowSlot
	e.recomputeWarmupSlope(idx, nowSlot)
	return nil
}

// recomputeWarmupSlope recomputes warmup_slope_per_slot: zero if there is
// nothing available to warm, else max(1, avail_gross/warmup_period_slots),
// with the minimum-of-1 floor preventing a zombie account with tiny PnL
// from parking at a permanently zero slope. Always resets
// warmup_started_at_slot to now.
func (e *Engine) recomputeWarmupSlope(idx uint16, nowSlot uint64) {
	acc := &e.Accounts[idx]
	pos := i128.MaxOfZero(acc.pnl).ToU128()
	reserved := i128.U128FromUint64(acc.ReservedPnL)
	availGross, ok := pos.SubChecked(reserved)
	if !ok {
		availGross = i128.ZeroU128
	}
	acc.WarmupStartedAtSlot = nowSlot
	if availGross.IsZero() {
		acc.WarmupSlopePerSlot = i128.ZeroU128
		return
	}
	if e.Params.WarmupPeriodSlots == 0 {
		acc.WarmupSlopePerSlot = availGross
		return
	}
	slope := i128.MulDivDown(availGross, 1, e.Params.WarmupPeriodSlots)
	if slope.IsZero() {
		slope = i128.U128FromUint64(1)
	}
	acc.WarmupSlopePerSlot = slope
}

// sweepFeeDebt closes the intra-slot fee-bypass loophole: if fee_credits is
// still negative after the maintenance-fee charge and loss settlement have
// run, pay off as much debt as capital allows and route the same amount to
// insurance, since it represents fee revenue the account owed but had not
// yet paid from capital.
func (e *Engine) sweepFeeDebt(idx uint16) {
	acc := &e.Accounts[idx]
	if acc.FeeCredits.Sign() >= 0 {
		return
	}
	debt := acc.FeeCredits.Neg().ToU128()
	paid := debt.Min(acc.capital)
	if paid.IsZero() {
		return
	}
	e.setCapital(idx, acc.capital.Sub(paid))
	acc.FeeCredits = acc.FeeCredits.Add(i128.FromU128(paid))
	e.Insurance = e.Insurance.Add(paid)
}
