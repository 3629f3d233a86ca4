package engine

import "riskslab/internal/i128"

// Scaling constants shared by every price/fee computation in the package.
const (
	priceScale  = 1_000_000 // prices and the funding index are scaled by 10^6
	bpsDenom    = 10_000    // basis-point denominator
	feeDenom    = bpsDenom * priceScale
	fundingBase = priceScale
)

// Budget constants for the keeper cycle. A harness may run a smaller
// account table with the same budgets without correctness changing, since
// every loop is bounded by min(budget, accounts actually present).
const (
	AccountsPerCrank   = 256
	LiqBudget          = 120
	ForceRealizeBudget = 32
	GCCloseBudget      = 32
	ResolutionBatch    = 64
)

// sentinelFree marks a free-list slot or head as "no next slot" / "empty
// list". Capacity must stay below this value.
const sentinelFree = ^uint16(0)

// RiskParams is the engine's configuration, immutable after Init except
// through the explicit admin setters (SetMaintenanceFee,
// SetRiskReductionThreshold, UpdateParams).
type RiskParams struct {
	InitialMarginBps      uint32
	MaintenanceMarginBps  uint32
	TradingFeeBps         uint32
	LiquidationFeeBps     uint32
	LiquidationFeeCap     i128.U128
	WarmupPeriodSlots     uint64
	MaintenanceFeePerSlot i128.U128

	MaxCrankStalenessSlots uint64
	MaxSweepStalenessSlots uint64

	FundingMaxBpsPerSlot  int64
	FundingMaxPremiumBps  int64
	MaxFundingDt          uint64
	MaxRoundingSlack      uint64

	MaxOraclePrice uint64
	MaxPositionAbs i128.U128
}

// DefaultRiskParams returns a configuration suitable for simulation and
// tests: 10x initial leverage, 5% maintenance margin, modest fees.
func DefaultRiskParams() RiskParams {
	return RiskParams{
		InitialMarginBps:      1_000, // 10%
		MaintenanceMarginBps:  500,   // 5%... conservative relative to 10x
		TradingFeeBps:         10,    // 0.10%
		LiquidationFeeBps:     50,    // 0.50%
		LiquidationFeeCap:     i128.U128FromUint64(1_000_000_000),
		WarmupPeriodSlots:     7_200, // ~ one day at 12s slots
		MaintenanceFeePerSlot: i128.ZeroU128,

		MaxCrankStalenessSlots: 150,
		MaxSweepStalenessSlots: 450,

		FundingMaxBpsPerSlot: 10,
		FundingMaxPremiumBps: 500,
		MaxFundingDt:         2_628_000, // ~ one year at 12s slots

		MaxRoundingSlack: 4096,

		MaxOraclePrice: 1_000_000_000_000,
		MaxPositionAbs: i128.U128FromUint64(1_000_000_000_000_000),
	}
}
