package engine

import "riskslab/internal/i128"

// haircutRatio computes the global socialization ratio (h_num, h_den) over
// junior (positive) PnL claims, bounded by what the vault actually has left
// after senior claims (c_tot, insurance) are covered. Pure read over the
// aggregates — no mutation, O(1).
func (e *Engine) haircutRatio() (hNum, hDen i128.U128) {
	senior := e.cTot.Add(e.Insurance)
	residual := e.Vault.Sub(senior) // saturates to zero if vault < senior
	if e.pnlPosTot.IsZero() {
		return i128.U128FromUint64(1), i128.U128FromUint64(1)
	}
	return residual.Min(e.pnlPosTot), e.pnlPosTot
}

// effectivePositivePnL applies the haircut ratio to one account's positive
// PnL claim, floor-rounded.
func effectivePositivePnL(pnl i128.I128, hNum, hDen i128.U128) i128.U128 {
	pos := i128.MaxOfZero(pnl).ToU128()
	if pos.IsZero() {
		return i128.ZeroU128
	}
	if hDen.IsZero() {
		// haircutRatio never returns a zero denominator when pnl_pos_tot > 0,
		// but guard anyway: a zero ratio is the safe direction.
		return i128.ZeroU128
	}
	return i128.MulDivDownU128(pos, hNum, hDen)
}

// feeDebt returns the outstanding fee debt (the magnitude of negative
// fee_credits), or zero if the account is fee-current.
func feeDebt(feeCredits i128.I128) i128.U128 {
	if feeCredits.Sign() >= 0 {
		return i128.ZeroU128
	}
	return feeCredits.Neg().ToU128()
}

// effectiveEquity computes Eq_mtm_net = max(0, capital + min(pnl,0) +
// effective_positive_pnl + extraMarkPnL - fee_debt). extraMarkPnL is zero
// for a post-touch account; the trade executor's projected margin check
// passes a not-yet-committed mark delta through it.
func (e *Engine) effectiveEquity(acc *Account, extraMarkPnL i128.I128) i128.U128 {
	hNum, hDen := e.haircutRatio()
	return effectiveEquityWithRatio(acc, hNum, hDen, extraMarkPnL)
}

func effectiveEquityWithRatio(acc *Account, hNum, hDen i128.U128, extraMarkPnL i128.I128) i128.U128 {
	eq := i128.FromU128(acc.capital)
	if neg := i128.MaxOfZero(acc.pnl.Neg()); !neg.IsZero() {
		eq = eq.Sub(neg)
	}
	eq = eq.Add(i128.FromU128(effectivePositivePnL(acc.pnl, hNum, hDen)))
	eq = eq.Add(extraMarkPnL)
	eq = eq.Sub(i128.FromU128(feeDebt(acc.FeeCredits)))
	if eq.Sign() < 0 {
		return i128.ZeroU128
	}
	return eq.ToU128()
}

// notional returns |position| * price / 10^6, saturating on overflow since
// margin requirements only ever need a conservative (large) notional, never
// an exact one past the point of overflow.
func notional(position i128.I128, price uint64) i128.U128 {
	abs := position.AbsToU128()
	return i128.MulDivDown(abs.Mul(i128.U128FromUint64(price)), 1, priceScale)
}

// marginRequirement returns notional * bps / 10_000, floor-rounded.
func marginRequirement(position i128.I128, price uint64, bps uint32) i128.U128 {
	n := notional(position, price)
	return i128.MulDivDown(n, uint64(bps), bpsDenom)
}
