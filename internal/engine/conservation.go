package engine

import (
	"fmt"

	"riskslab/internal/i128"
)

// ConservationReport is the result of a full-scan audit: the recomputed
// aggregates alongside the pass/fail verdict. It is a plain value so the
// ambient audit-snapshot component can persist it without depending on
// engine internals.
type ConservationReport struct {
	RecomputedCTot       i128.U128
	RecomputedPnLPosTot  i128.U128
	RecomputedOpenInterest i128.U128
	PositivePnLAccounts  int

	PrimaryHolds  bool
	ExtendedHolds bool
	Slack         i128.U128
}

// CheckConservation recomputes every aggregate from scratch by walking the
// account table and asserts both the primary invariant (vault >= c_tot +
// insurance) and the extended invariant (vault >= c_tot + insurance + Σ
// effective_positive_pnl, within a rounding slack bounded by the count of
// positive-PnL accounts). It is an auditor, not a gate: callers decide what
// to do with a failing report, the engine's own operations never consult
// it.
func (e *Engine) CheckConservation() ConservationReport {
	var report ConservationReport
	hNum, hDen := e.haircutRatio()

	var sumEffPos i128.U128
	forEachUsed(e.usedBitmap, uint16(len(e.Accounts)), func(idx uint16) {
		acc := &e.Accounts[idx]
		report.RecomputedCTot = report.RecomputedCTot.Add(acc.capital)
		pos := i128.MaxOfZero(acc.pnl).ToU128()
		report.RecomputedPnLPosTot = report.RecomputedPnLPosTot.Add(pos)
		report.RecomputedOpenInterest = report.RecomputedOpenInterest.Add(acc.PositionSize.AbsToU128())
		if !pos.IsZero() {
			report.PositivePnLAccounts++
			sumEffPos = sumEffPos.Add(effectivePositivePnL(acc.pnl, hNum, hDen))
		}
	})

	senior := e.cTot.Add(e.Insurance)
	report.PrimaryHolds = e.Vault.Cmp(senior) >= 0

	extendedLHS := senior.Add(sumEffPos)
	if e.Vault.Cmp(extendedLHS) >= 0 {
		report.ExtendedHolds = true
		report.Slack = i128.ZeroU128
	} else {
		report.Slack = extendedLHS.Sub(e.Vault)
		report.ExtendedHolds = report.Slack.Cmp(i128.U128FromUint64(uint64(report.PositivePnLAccounts))) <= 0 &&
			report.Slack.Cmp(i128.U128FromUint64(e.Params.MaxRoundingSlack)) <= 0
	}
	return report
}

// String renders a one-line summary suitable for logging.
func (r ConservationReport) String() string {
	return fmt.Sprintf(
		"conservation[primary=%t extended=%t slack=%s c_tot=%s pnl_pos_tot=%s oi=%s positive_pnl_accounts=%d]",
		r.PrimaryHolds, r.ExtendedHolds, r.Slack, r.RecomputedCTot, r.RecomputedPnLPosTot,
		r.RecomputedOpenInterest, r.PositivePnLAccounts,
	)
}
