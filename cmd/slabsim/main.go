// Command slabsim is a deterministic simulation driver that exercises the
// risk engine end to end: it initializes an Engine, seeds a handful of
// users and one LP with initial capital, then runs a scripted sequence of
// trades and keeper cranks, logging a summary at the end, all single-threaded and
// synchronous rather than driven by goroutines and tickers.
package main

import (
	"math/rand"
	"os"

	"riskslab/internal/engine"
	"riskslab/internal/i128"
	"riskslab/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logger := telemetry.NewLogger("slabsim")
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())

	params := engine.DefaultRiskParams()
	eng := engine.Init(params, 64)

	const numUsers = 8
	rng := rand.New(rand.NewSource(42))

	var users []uint16
	for i := 0; i < numUsers; i++ {
		owner := ownerTag(byte(i + 1))
		idx, err := eng.AddUser(owner, i128.U128FromUint64(10_000_000_000), 0)
		if err != nil {
			logger.Error().Err(err).Msg("add_user failed")
			os.Exit(1)
		}
		users = append(users, idx)
	}
	lpOwner := ownerTag(0xFF)
	lpIdx, err := eng.AddLP(lpOwner, [32]byte{}, [32]byte{}, i128.U128FromUint64(1_000_000_000_000), 0)
	if err != nil {
		logger.Error().Err(err).Msg("add_lp failed")
		os.Exit(1)
	}

	oraclePrice := uint64(50_000_000_000) // $50,000.000000
	slot := uint64(1)

	eng.LastCrankSlot = slot
	if err := eng.KeeperCrank(oraclePrice, slot); err != nil {
		logger.Error().Err(err).Msg("initial crank failed")
		os.Exit(1)
	}

	for tick := 0; tick < 200; tick++ {
		slot++
		walk := int64(rng.Intn(2_000_001)) - 1_000_000 // +/- $1.00 random walk
		next := int64(oraclePrice) + walk
		if next < 1_000_000 {
			next = 1_000_000
		}
		oraclePrice = uint64(next)

		user := users[rng.Intn(len(users))]
		direction := int64(1)
		if rng.Intn(2) == 0 {
			direction = -1
		}
		size := i128.I128FromInt64(direction * int64(rng.Intn(100)+1) * 1_000)

		err := eng.ExecuteTrade(user, lpIdx, oraclePrice, oraclePrice, size, size, slot)
		outcome := "ok"
		if err != nil {
			outcome = "rejected"
		}
		metrics.TradesExecuted.WithLabelValues(outcome).Inc()

		if tick%10 == 0 {
			if err := eng.KeeperCrank(oraclePrice, slot); err != nil {
				logger.Warn().Err(err).Msg("crank returned an error")
			}
		}
	}

	report := eng.CheckConservation()
	logger.Info().
		Str("report", report.String()).
		Uint64("final_slot", slot).
		Uint64("final_oracle_price", oraclePrice).
		Msg("simulation complete")

	metrics.Vault.Set(float64(eng.Vault.Uint64Saturating()))
	metrics.CTot.Set(float64(eng.CTot().Uint64Saturating()))
	metrics.PnLPosTot.Set(float64(eng.PnLPosTot().Uint64Saturating()))
	metrics.Insurance.Set(float64(eng.Insurance.Uint64Saturating()))

	if !report.PrimaryHolds {
		logger.Error().Msg("primary conservation invariant violated")
		os.Exit(1)
	}
}

func ownerTag(b byte) [32]byte {
	var owner [32]byte
	owner[0] = b
	return owner
}
