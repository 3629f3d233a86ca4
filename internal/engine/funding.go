package engine

import "riskslab/internal/i128"

// accrueTo advances the global funding index to slot s using the rate that
// was in effect as of last_funding_slot — never a rate set after the fact.
// dt=0 (s == last_funding_slot, or a same-slot re-entry) is a no-op, which
// is what makes multiple keeper cranks per slot safe.
//
// priceSample is the reference price the rate is denominated against
// (typically the oracle price at the moment of accrual); it is supplied by
// the caller rather than fetched here, since the engine never acquires
// oracle data itself.
func (e *Engine) accrueTo(s uint64, priceSample uint64) error {
	if s <= e.LastFundingSlot {
		e.LastFundingSlot = s
		return nil
	}
	dt := s - e.LastFundingSlot
	if dt > e.Params.MaxFundingDt {
		dt = e.Params.MaxFundingDt
	}

	rate := e.FundingRateLast
	if rate == 0 || dt == 0 {
		e.LastFundingSlot = s
		return nil
	}

	price := i128.I128FromInt64(int64(priceSample))
	rateI := i128.I128FromInt64(rate)
	dtI := i128.I128FromInt64(int64(dt))

	step1, ok := price.MulChecked(rateI)
	if !ok {
		return ErrOverflow
	}
	step2, ok := step1.MulChecked(dtI)
	if !ok {
		return ErrOverflow
	}
	delta := i128.MulDivUpMagnitude(step2, 1, bpsDenom)

	newIndex, ok := e.FundingIndex.AddChecked(delta)
	if !ok {
		return ErrOverflow
	}
	e.FundingIndex = newIndex
	e.LastFundingSlot = s
	return nil
}

// settleFunding applies the account's share of funding accrued since its
// last snapshot into pnl, then re-snapshots. Rounding is floor division:
// an account that owes funding sees its debt rounded toward more negative
// (floor), and an account that receives funding sees the same floor
// truncate its gain toward zero — the conservative direction in both
// cases, since the vault never pays out more than it accrued.
func (e *Engine) settleFunding(idx uint16) error {
	acc := &e.Accounts[idx]
	delta := e.FundingIndex.Sub(acc.FundingIndexSnap)
	if delta.IsZero() || acc.PositionSize.IsZero() {
		acc.FundingIndexSnap = e.FundingIndex
		return nil
	}
	raw, ok := acc.PositionSize.MulChecked(delta)
	if !ok {
		e.wipeEquity(idx)
		acc.FundingIndexSnap = e.FundingIndex
		return nil
	}
	payment := i128.FloorDiv(raw, priceScale)
	newPnL, ok := acc.pnl.AddChecked(payment)
	if !ok {
		e.wipeEquity(idx)
	} else {
		e.setPnL(idx, newPnL)
	}
	acc.FundingIndexSnap = e.FundingIndex
	return nil
}

// wipeEquity is the fail-safe applied whenever an arithmetic step that
// should adjust pnl overflows: rather than propagate an error that could
// wedge the engine, the account is conservatively treated as having
// suffered its worst-case loss, so the following loss-settlement step
// consumes its capital and leaves pnl at (or below) zero.
func (e *Engine) wipeEquity(idx uint16) {
	acc := &e.Accounts[idx]
	if acc.pnl.Sign() > 0 {
		e.setPnL(idx, i128.ZeroI128)
	}
	worstCase := i128.FromU128(acc.capital).Neg()
	e.setPnL(idx, worstCase)
}

// setFundingRate writes the rate that will apply starting at the next
// accrual interval. The engine never decides what this rate should be —
// it only ever applies whatever the host-facing admin surface hands it —
// and the anti-retroactivity guarantee depends on every caller having
// already accrued to the current slot with the old rate first.
func (e *Engine) setFundingRate(rate int64) {
	if rate > e.Params.FundingMaxBpsPerSlot {
		rate = e.Params.FundingMaxBpsPerSlot
	}
	if rate < -e.Params.FundingMaxBpsPerSlot {
		rate = -e.Params.FundingMaxBpsPerSlot
	}
	e.FundingRateLast = rate
}
