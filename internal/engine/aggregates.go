package engine

import "riskslab/internal/i128"

// setPnL and setCapital are the only two functions in this package allowed
// to write Account.pnl / Account.capital. Every settlement step, the trade
// executor, liquidation, and the keeper cycle route through these two so
// that c_tot and pnl_pos_tot can never drift from the per-account sums they
// summarize. aggregates_test.go re-derives both aggregates by brute force
// after randomized operation sequences and compares, standing in for the
// compile-time guarantee Go cannot express here.
//
// The two-account trade commit in trade.go pre-computes both accounts'
// deltas before writing either, and then writes them through these two
// helpers as well; it does not bypass them.

func (e *Engine) setPnL(idx uint16, newPnL i128.I128) {
	acc := &e.Accounts[idx]
	oldPos := i128.MaxOfZero(acc.pnl).ToU128()
	newPos := i128.MaxOfZero(newPnL).ToU128()
	if newPos.Cmp(oldPos) >= 0 {
		e.pnlPosTot = e.pnlPosTot.Add(newPos.Sub(oldPos))
	} else {
		e.pnlPosTot = e.pnlPosTot.Sub(oldPos.Sub(newPos))
	}
	acc.pnl = newPnL
}

func (e *Engine) setCapital(idx uint16, newCapital i128.U128) {
	acc := &e.Accounts[idx]
	old := acc.capital
	if newCapital.Cmp(old) >= 0 {
		e.cTot = e.cTot.Add(newCapital.Sub(old))
	} else {
		e.cTot = e.cTot.Sub(old.Sub(newCapital))
	}
	acc.capital = newCapital
}
