package engine

import "riskslab/internal/i128"

// ExecuteTrade is the two-account atomic trade executor: a user taking
// liquidity against a single counterparty LP, valued against the oracle
// rather than the matcher's own price so a matcher cannot manipulate
// valuation. execPrice/execSize come from a matcher proposal and are
// independently re-validated here, never trusted.
func (e *Engine) ExecuteTrade(userIdx, lpIdx uint16, oraclePrice, execPrice uint64, execSize, requestedSize i128.I128, nowSlot uint64) error {
	if e.Resolved {
		return ErrAlreadyResolved
	}

	user, err := e.account(userIdx)
	if err != nil {
		return err
	}
	lp, err := e.account(lpIdx)
	if err != nil {
		return err
	}
	if !lp.IsLP() {
		return ErrInvalidMatcherOutput
	}

	if err := e.validateMatcherOutput(oraclePrice, execPrice, execSize, requestedSize); err != nil {
		return err
	}

	riskIncreasingAny := isRiskIncreasing(user.PositionSize, user.PositionSize.Add(execSize)) ||
		isRiskIncreasing(lp.PositionSize, lp.PositionSize.Sub(execSize))
	if err := e.checkTimingGuards(nowSlot, riskIncreasingAny); err != nil {
		return err
	}
	if e.RiskReductionOnly && riskIncreasingAny {
		return ErrRiskReductionOnly
	}

	// Step 3: touch both sides at the oracle price, user first then LP.
	if err := e.touchFull(userIdx, oraclePrice, nowSlot); err != nil {
		return err
	}
	if err := e.touchFull(lpIdx, oraclePrice, nowSlot); err != nil {
		return err
	}

	userOldPos := user.PositionSize
	lpOldPos := lp.PositionSize
	userNewPos, ok := userOldPos.AddChecked(execSize)
	if !ok {
		return ErrOverflow
	}
	lpNewPos, ok := lpOldPos.SubChecked(execSize)
	if !ok {
		return ErrOverflow
	}
	if userNewPos.AbsToU128().Cmp(e.Params.MaxPositionAbs) > 0 || lpNewPos.AbsToU128().Cmp(e.Params.MaxPositionAbs) > 0 {
		return ErrOverflow
	}

	// Step 5: trade_pnl measured against the oracle, splits the two sides
	// symmetrically before fees.
	priceDelta := i128.I128FromInt64(int64(oraclePrice)).Sub(i128.I128FromInt64(int64(execPrice)))
	tradePnlRaw, ok := execSize.MulChecked(priceDelta)
	if !ok {
		return ErrOverflow
	}
	userTradePnL := i128.FloorDiv(tradePnlRaw, priceScale)
	lpTradePnL := userTradePnL.Neg()

	// Step 6: ceiling-rounded trading fee on notional, charged to the user,
	// credited to insurance. Ceiling division guarantees a non-zero trade
	// never pays a zero fee.
	absSize := execSize.AbsToU128()
	product, ok := absSize.MulChecked(i128.U128FromUint64(execPrice))
	if !ok {
		return ErrOverflow
	}
	fee := i128.MulDivUp(product, uint64(e.Params.TradingFeeBps), feeDenom)

	// Step 7: projected haircut / margin check before commit.
	userRiskIncreasing := isRiskIncreasing(userOldPos, userNewPos)
	lpRiskIncreasing := isRiskIncreasing(lpOldPos, lpNewPos)

	projectedPnLPosTot := e.projectedPnLPosTot(userIdx, user.pnl.Add(userTradePnL), lpIdx, lp.pnl.Add(lpTradePnL))
	hNum, hDen := e.haircutRatioFor(projectedPnLPosTot)

	userProjectedCapital := user.capital.Sub(fee.Min(user.capital))
	if fee.Cmp(user.capital) > 0 {
		return ErrInsufficientCapital
	}
	userEq := projectedEquity(user, userProjectedCapital, userTradePnL, hNum, hDen)
	lpEq := projectedEquity(lp, lp.capital, lpTradePnL, hNum, hDen)

	userMM := marginRequirement(userNewPos, oraclePrice, e.Params.MaintenanceMarginBps)
	lpMM := marginRequirement(lpNewPos, oraclePrice, e.Params.MaintenanceMarginBps)
	if userEq.Cmp(userMM) <= 0 {
		return ErrBelowMaintenanceMargin
	}
	if lpEq.Cmp(lpMM) <= 0 {
		return ErrBelowMaintenanceMargin
	}
	if userRiskIncreasing {
		if userEq.Cmp(marginRequirement(userNewPos, oraclePrice, e.Params.InitialMarginBps)) < 0 {
			return ErrBelowInitialMargin
		}
	}
	if lpRiskIncreasing {
		if lpEq.Cmp(marginRequirement(lpNewPos, oraclePrice, e.Params.InitialMarginBps)) < 0 {
			return ErrBelowInitialMargin
		}
	}

	// Step 8: commit. Both accounts' deltas were computed above before any
	// write. pnl and capital are written through setCapital/setPnL like
	// everywhere else (no bypass of the aggregate helpers), so c_tot and
	// pnl_pos_tot move with each write rather than in one batch at the end.
	e.setCapital(userIdx, userProjectedCapital)
	e.Insurance = e.Insurance.Add(fee)

	e.setPnL(userIdx, user.pnl.Add(userTradePnL))
	e.setPnL(lpIdx, lp.pnl.Add(lpTradePnL))

	e.adjustOpenInterest(userOldPos, userNewPos)
	e.adjustOpenInterest(lpOldPos, lpNewPos)
	e.trackLPPosition(lpOldPos, lpNewPos)

	user.PositionSize = userNewPos
	user.EntryPrice = oraclePrice
	lp.PositionSize = lpNewPos
	lp.EntryPrice = oraclePrice

	// Step 9: two-pass settlement — loss on both sides first (this is the
	// step that increases the residual the haircut is computed against),
	// then warmup conversion on both. Running profit conversion before loss
	// settlement would read a haircut that has not yet seen the losing
	// side's capital reduction.
	e.settleLoss(userIdx)
	e.settleLoss(lpIdx)
	if err := e.convertWarmup(userIdx, nowSlot); err != nil {
		return err
	}
	if err := e.convertWarmup(lpIdx, nowSlot); err != nil {
		return err
	}

	return nil
}

// isRiskIncreasing reports whether a position change grows exposure or
// flips sign — a sign flip is semantically close-then-open-opposite and
// must clear initial margin like any other risk-increasing change.
func isRiskIncreasing(oldPos, newPos i128.I128) bool {
	if newPos.AbsToU128().Cmp(oldPos.AbsToU128()) > 0 {
		return true
	}
	if oldPos.Sign() != 0 && newPos.Sign() != 0 && oldPos.Sign() != newPos.Sign() {
		return true
	}
	return false
}

func (e *Engine) validateMatcherOutput(oraclePrice, execPrice uint64, execSize, requestedSize i128.I128) error {
	if oraclePrice == 0 || oraclePrice > e.Params.MaxOraclePrice {
		return ErrInvalidOracle
	}
	if execPrice == 0 || execPrice > e.Params.MaxOraclePrice {
		return ErrInvalidMatcherOutput
	}
	if execSize.IsZero() || execSize.IsMin() {
		return ErrInvalidMatcherOutput
	}
	if requestedSize.Sign() != 0 && execSize.Sign() != requestedSize.Sign() {
		return ErrInvalidMatcherOutput
	}
	if execSize.AbsToU128().Cmp(requestedSize.AbsToU128()) > 0 {
		return ErrInvalidMatcherOutput
	}
	if execSize.AbsToU128().Cmp(e.Params.MaxPositionAbs) > 0 {
		return ErrInvalidMatcherOutput
	}
	return nil
}

func (e *Engine) checkTimingGuards(nowSlot uint64, riskIncreasing bool) error {
	if slotsSince(nowSlot, e.LastCrankSlot) > e.Params.MaxCrankStalenessSlots {
		return ErrStaleCrank
	}
	if riskIncreasing && slotsSince(nowSlot, e.SweepLastCompletedSlot) > e.Params.MaxSweepStalenessSlots {
		return ErrStaleSweep
	}
	return nil
}

// slotsSince returns now-since, saturating at zero if since is somehow in
// the future (defends the timing guards against underflow on uint64).
func slotsSince(now, since uint64) uint64 {
	if since >= now {
		return 0
	}
	return now - since
}

// projectedPnLPosTot recomputes what pnl_pos_tot would be if both
// accounts' pnl were replaced by the given projected values, without
// mutating either account — used only to derive a projected haircut ratio
// ahead of commit.
func (e *Engine) projectedPnLPosTot(userIdx uint16, userProjected i128.I128, lpIdx uint16, lpProjected i128.I128) i128.U128 {
	total := e.pnlPosTot
	adjust := func(old, new_ i128.I128) {
		oldPos := i128.MaxOfZero(old).ToU128()
		newPos := i128.MaxOfZero(new_).ToU128()
		if newPos.Cmp(oldPos) >= 0 {
			total = total.Add(newPos.Sub(oldPos))
		} else {
			total = total.Sub(oldPos.Sub(newPos))
		}
	}
	adjust(e.Accounts[userIdx].pnl, userProjected)
	adjust(e.Accounts[lpIdx].pnl, lpProjected)
	return total
}

func (e *Engine) haircutRatioFor(pnlPosTot i128.U128) (hNum, hDen i128.U128) {
	senior := e.cTot.Add(e.Insurance)
	residual := e.Vault.Sub(senior)
	if pnlPosTot.IsZero() {
		return i128.U128FromUint64(1), i128.U128FromUint64(1)
	}
	return residual.Min(pnlPosTot), pnlPosTot
}

// projectedEquity mirrors effectiveEquityWithRatio but takes the projected
// capital and the not-yet-committed mark/trade delta explicitly, since the
// account has not been mutated yet at the point this is called.
func projectedEquity(acc *Account, projectedCapital i128.U128, extraMarkPnL i128.I128, hNum, hDen i128.U128) i128.U128 {
	eq := i128.FromU128(projectedCapital)
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

// adjustOpenInterest updates total_open_interest for one account's position
// change.
func (e *Engine) adjustOpenInterest(oldPos, newPos i128.I128) {
	oldAbs := oldPos.AbsToU128()
	newAbs := newPos.AbsToU128()
	if newAbs.Cmp(oldAbs) >= 0 {
		e.TotalOpenInterest = e.TotalOpenInterest.Add(newAbs.Sub(oldAbs))
	} else {
		e.TotalOpenInterest = e.TotalOpenInterest.Sub(oldAbs.Sub(newAbs))
	}
}
