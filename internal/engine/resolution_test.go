package engine

import (
	"testing"

	"riskslab/internal/i128"

	"github.com/stretchr/testify/require"
)

func TestResolution_BlocksTradingDepositsAndNewAccounts(t *testing.T) {
	e := Init(DefaultRiskParams(), 4)
	owner := [32]byte{1}
	userIdx, err := e.AddUser(owner, i128.U128FromUint64(1_000_000), 0)
	require.NoError(t, err)
	lpIdx, err := e.AddLP(owner, [32]byte{}, [32]byte{}, i128.U128FromUint64(1_000_000_000), 0)
	require.NoError(t, err)

	require.NoError(t, e.ResolveMarket(50_000_000_000))

	_, err = e.AddUser(owner, i128.ZeroU128, 1)
	require.ErrorIs(t, err, ErrAlreadyResolved)

	err = e.Deposit(userIdx, i128.U128FromUint64(100), 1)
	require.ErrorIs(t, err, ErrAlreadyResolved)

	err = e.TopUpInsurance(i128.U128FromUint64(100))
	require.ErrorIs(t, err, ErrAlreadyResolved)

	size := i128.I128FromInt64(10)
	err = e.ExecuteTrade(userIdx, lpIdx, 50_000_000_000, 50_000_000_000, size, size, 1)
	require.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestResolution_CannotResolveTwice(t *testing.T) {
	e := Init(DefaultRiskParams(), 4)
	require.NoError(t, e.ResolveMarket(50_000_000_000))
	err := e.ResolveMarket(51_000_000_000)
	require.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestResolution_RejectsZeroResolutionPrice(t *testing.T) {
	e := Init(DefaultRiskParams(), 4)
	err := e.ResolveMarket(0)
	require.ErrorIs(t, err, ErrInvalidOracle)
}

func TestResolution_KeeperForceClosesOpenPositionsAfterResolution(t *testing.T) {
	e := Init(DefaultRiskParams(), 8)
	owner := [32]byte{1}
	idx, err := e.AddUser(owner, i128.U128FromUint64(1_000_000_000), 0)
	require.NoError(t, err)
	e.Accounts[idx].PositionSize = i128.I128FromInt64(1_000)
	e.Accounts[idx].EntryPrice = 50_000_000_000

	require.NoError(t, e.ResolveMarket(50_000_000_000))
	require.NoError(t, e.KeeperCrank(50_000_000_000, 1))

	require.True(t, e.Accounts[idx].PositionSize.IsZero(), "resolution crank must force-close remaining positions")
}

func TestResolution_WithdrawInsuranceBlockedUntilPositionsAreFlat(t *testing.T) {
	e := Init(DefaultRiskParams(), 8)
	owner := [32]byte{1}
	idx, err := e.AddUser(owner, i128.U128FromUint64(1_000_000_000), 0)
	require.NoError(t, err)
	e.Accounts[idx].PositionSize = i128.I128FromInt64(1_000)

	require.NoError(t, e.ResolveMarket(50_000_000_000))

	_, err = e.WithdrawInsurance()
	require.ErrorIs(t, err, ErrPositionsRemain)

	e.Accounts[idx].PositionSize = i128.ZeroI128
	_, err = e.WithdrawInsurance()
	require.NoError(t, err)
}

func TestResolution_WithdrawInsuranceRequiresResolvedState(t *testing.T) {
	e := Init(DefaultRiskParams(), 4)
	_, err := e.WithdrawInsurance()
	require.ErrorIs(t, err, ErrNotResolved)
}
