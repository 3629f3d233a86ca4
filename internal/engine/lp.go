package engine

import "riskslab/internal/i128"

// trackLPPosition updates the LP inventory aggregates (net_lp_pos,
// lp_sum_abs, lp_max_abs) for one LP whose position moved from oldPos to
// newPos. net_lp_pos and lp_sum_abs update in O(1). lp_max_abs updates in
// O(1) whenever the new magnitude is at least as large as the running max;
// it only falls back to a full rescan over the (typically tiny) LP bitmap
// when the account that just shrank used to hold the max — the one case an
// O(1) update cannot determine locally.
func (e *Engine) trackLPPosition(oldPos, newPos i128.I128) {
	if oldPos.Cmp(newPos) == 0 {
		return
	}
	e.NetLPPos = e.NetLPPos.Sub(oldPos).Add(newPos)

	oldAbs := oldPos.AbsToU128()
	newAbs := newPos.AbsToU128()
	if newAbs.Cmp(oldAbs) >= 0 {
		e.LPSumAbs = e.LPSumAbs.Add(newAbs.Sub(oldAbs))
	} else {
		e.LPSumAbs = e.LPSumAbs.Sub(oldAbs.Sub(newAbs))
	}

	switch {
	case newAbs.Cmp(e.LPMaxAbs) >= 0:
		e.LPMaxAbs = newAbs
	case oldAbs.Cmp(e.LPMaxAbs) == 0:
		e.rescanLPMaxAbs()
	}
}

func (e *Engine) rescanLPMaxAbs() {
	max := i128.ZeroU128
	forEachUsed(e.lpBitmap, uint16(len(e.Accounts)), func(idx uint16) {
		abs := e.Accounts[idx].PositionSize.AbsToU128()
		if abs.Cmp(max) > 0 {
			max = abs
		}
	})
	e.LPMaxAbs = max
}

// untrackLP removes a closing LP's contribution to the inventory
// aggregates; called by CloseAccount before the slot is freed.
func (e *Engine) untrackLP(acc *Account) {
	e.trackLPPosition(acc.PositionSize, i128.ZeroI128)
}
