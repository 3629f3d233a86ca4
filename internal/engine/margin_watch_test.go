package engine

import (
	"testing"

	"riskslab/internal/i128"

	"github.com/stretchr/testify/require"
)

func TestMarginWatch_NoTriggerOnFlatPosition(t *testing.T) {
	e := Init(DefaultRiskParams(), 4)
	owner := [32]byte{1}
	idx, err := e.AddUser(owner, i128.U128FromUint64(1_000), 0)
	require.NoError(t, err)

	_, ok := e.EstimateLiquidationTriggerPrice(idx)
	require.False(t, ok)
}

func TestMarginWatch_LongPositionTriggersBelowEntry(t *testing.T) {
	e := Init(DefaultRiskParams(), 4)
	owner := [32]byte{1}
	// Notional at entry is 1,000 * 50,000.000000 == 50,000,000; this capital
	// clears the 10% initial margin requirement (5,000,000) comfortably.
	idx, err := e.AddUser(owner, i128.U128FromUint64(6_000_000), 0)
	require.NoError(t, err)

	acc := &e.Accounts[idx]
	acc.PositionSize = i128.I128FromInt64(1_000)
	acc.EntryPrice = 50_000_000_000

	price, ok := e.EstimateLiquidationTriggerPrice(idx)
	require.True(t, ok)
	require.Less(t, price, acc.EntryPrice, "a long position's estimated trigger must sit below its entry price")
}

func TestMarginWatch_ShortPositionTriggersAboveEntry(t *testing.T) {
	e := Init(DefaultRiskParams(), 4)
	owner := [32]byte{1}
	idx, err := e.AddUser(owner, i128.U128FromUint64(6_000_000), 0)
	require.NoError(t, err)

	acc := &e.Accounts[idx]
	acc.PositionSize = i128.I128FromInt64(-1_000)
	acc.EntryPrice = 50_000_000_000

	price, ok := e.EstimateLiquidationTriggerPrice(idx)
	require.True(t, ok)
	require.Greater(t, price, acc.EntryPrice, "a short position's estimated trigger must sit above its entry price")
}
