package engine

import "riskslab/internal/i128"

// KeeperCrank runs one bounded maintenance pass: global funding accrual,
// then up to AccountsPerCrank per-account touches (ResolutionBatch once the
// market is resolved) starting from the persistent cursor, interleaving liquidation/force-realize arbitration and
// (in resolution mode) forced closes, followed by a bounded GC pass. It is
// correct under arbitrary scheduling: any number of cranks per slot is
// safe, since funding accrual and same-slot settlement are both no-ops at
// dt=0.
func (e *Engine) KeeperCrank(oraclePrice uint64, nowSlot uint64) error {
	if err := e.accrueTo(nowSlot, oraclePrice); err != nil {
		return err
	}
	e.LastCrankSlot = nowSlot

	capacity := uint16(len(e.Accounts))
	if capacity == 0 {
		return nil
	}

	liqBudget := LiqBudget
	forceBudget := ForceRealizeBudget
	touched := 0
	steps := 0
	cursor := e.CrankCursor
	fullLap := false
	limit := AccountsPerCrank
	if e.Resolved {
		limit = ResolutionBatch
	}

	for touched < limit && steps < int(capacity) {
		steps++
		if bitTest(e.usedBitmap, cursor) {
			touched++

			if e.Resolved {
				e.forceCloseForResolution(cursor, nowSlot)
			} else {
				// best-effort maintenance fee + touch: an error is discarded
				// (not counted) rather than returned, so one poisoned account
				// cannot block the rest of the sweep.
				_ = e.touchFull(cursor, oraclePrice, nowSlot)

				insuranceExhausted := e.Insurance.Cmp(e.RiskReductionThreshold) <= 0
				handled := false
				if insuranceExhausted && forceBudget > 0 {
					acc := &e.Accounts[cursor]
					if !acc.PositionSize.IsZero() {
						if err := e.forceRealize(cursor, oraclePrice, nowSlot); err == nil {
							forceBudget--
							handled = true
						}
					}
				}
				if !handled && !e.RiskReductionOnly && liqBudget > 0 {
					if err := e.LiquidateAtOracle(cursor, oraclePrice, nowSlot); err == nil {
						liqBudget--
					}
				}
			}
		}

		cursor = nextCursor(cursor, capacity)
		if cursor == e.SweepStartCursor {
			fullLap = true
		}
	}
	e.CrankCursor = cursor

	if fullLap {
		e.SweepLastCompletedSlot = nowSlot
		e.SweepStartCursor = cursor
	}

	e.GarbageCollectDust(GCCloseBudget)
	return nil
}

func nextCursor(cursor, capacity uint16) uint16 {
	if cursor+1 >= capacity {
		return 0
	}
	return cursor + 1
}

// forceCloseForResolution is the keeper's wind-down branch: it zeroes the
// account's position at the fixed resolution price via setPnL, never by
// direct field assignment, and updates OI/LP aggregates the same way a live
// close would.
func (e *Engine) forceCloseForResolution(idx uint16, nowSlot uint64) {
	acc := &e.Accounts[idx]
	if acc.PositionSize.IsZero() {
		return
	}
	_ = e.closePosition(idx, e.ResolutionPrice, nowSlot, acc.PositionSize.Neg())
}

// GarbageCollectDust frees up to budget accounts that are fully wound down:
// zero capital, zero position, zero reserved PnL, non-positive PnL. LPs are
// never garbage collected, since their matcher bindings are host-managed,
// not engine-managed.
func (e *Engine) GarbageCollectDust(budget int) int {
	capacity := uint16(len(e.Accounts))
	closed := 0
	var toClose []uint16
	forEachUsed(e.usedBitmap, capacity, func(idx uint16) {
		if closed+len(toClose) >= budget {
			return
		}
		acc := &e.Accounts[idx]
		if acc.IsLP() {
			return
		}
		if !acc.capital.IsZero() || !acc.PositionSize.IsZero() || acc.ReservedPnL != 0 {
			return
		}
		if acc.pnl.Sign() > 0 {
			return
		}
		toClose = append(toClose, idx)
	})
	for _, idx := range toClose {
		acc := &e.Accounts[idx]
		if !acc.pnl.IsZero() {
			e.setPnL(idx, i128.ZeroI128)
		}
		e.freeSlot(idx)
		closed++
	}
	return closed
}
