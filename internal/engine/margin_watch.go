package engine

import "riskslab/internal/i128"

// EstimateLiquidationTriggerPrice returns an approximate oracle price at
// which idx's open position would first breach maintenance margin, for
// ops tooling such as the Redis margin-proximity index. Unlike every other
// computation in this package it deliberately uses float64: it is a
// dashboard estimate, never consulted by the engine itself, and ignores the
// haircut ratio's own dependence on price (exact only at the margin, not
// worth the closed-form complexity for an advisory number). Returns
// ok=false for a flat position, where there is nothing to trigger on.
func (e *Engine) EstimateLiquidationTriggerPrice(idx uint16) (price uint64, ok bool) {
	acc, err := e.account(idx)
	if err != nil || acc.PositionSize.IsZero() {
		return 0, false
	}

	pos := float64(acc.PositionSize.AbsToU128().Uint64Saturating())
	if acc.PositionSize.Sign() < 0 {
		pos = -pos
	}
	entry := float64(acc.EntryPrice)
	eq0 := float64(e.effectiveEquity(acc, i128.ZeroI128).Uint64Saturating())
	mmFrac := float64(e.Params.MaintenanceMarginBps) / float64(bpsDenom)

	coeff := pos/priceScale*mmFrac*sign(pos) - pos/priceScale
	if coeff == 0 {
		return 0, false
	}
	p := (eq0 - pos*entry/priceScale) / coeff
	if p <= 0 {
		return 0, false
	}
	return uint64(p), true
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
