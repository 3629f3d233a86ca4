package engine

import (
	"testing"

	"riskslab/internal/i128"

	"github.com/stretchr/testify/require"
)

func TestAccount_AllocAndFree_ThreadsFreeList(t *testing.T) {
	e := Init(DefaultRiskParams(), 4)
	var owner [32]byte
	idx1, err := e.AddUser(owner, i128.ZeroU128, 0)
	require.NoError(t, err)
	idx2, err := e.AddUser(owner, i128.ZeroU128, 0)
	require.NoError(t, err)
	require.NotEqual(t, idx1, idx2)
	require.EqualValues(t, 2, e.NumUsedAccounts())

	require.NoError(t, e.CloseAccount(idx1, 1_000_000, 1))
	require.EqualValues(t, 1, e.NumUsedAccounts())

	// The freed slot must be reusable and zeroed.
	idx3, err := e.AddUser(owner, i128.ZeroU128, 2)
	require.NoError(t, err)
	require.Equal(t, idx1, idx3, "freed slot should be recycled via the free list")

	acc, err := e.Account(idx3)
	require.NoError(t, err)
	require.True(t, acc.capital.IsZero())
	require.True(t, acc.pnl.IsZero())
	require.NotEqual(t, uint64(0), acc.ID, "ids are never recycled even when slots are")
}

func TestAccount_OutOfCapacity(t *testing.T) {
	e := Init(DefaultRiskParams(), 1)
	var owner [32]byte
	_, err := e.AddUser(owner, i128.ZeroU128, 0)
	require.NoError(t, err)

	_, err = e.AddUser(owner, i128.ZeroU128, 0)
	require.ErrorIs(t, err, ErrOutOfCapacity)
}

func TestAccount_MonotonicIDs(t *testing.T) {
	e := Init(DefaultRiskParams(), 4)
	var owner [32]byte
	idxA, err := e.AddUser(owner, i128.ZeroU128, 0)
	require.NoError(t, err)
	accA, _ := e.Account(idxA)
	firstID := accA.ID

	require.NoError(t, e.CloseAccount(idxA, 1_000_000, 0))

	idxB, err := e.AddUser(owner, i128.ZeroU128, 0)
	require.NoError(t, err)
	accB, _ := e.Account(idxB)
	require.Greater(t, accB.ID, firstID)
}

func TestAccount_NotFoundForFreeSlot(t *testing.T) {
	e := Init(DefaultRiskParams(), 4)
	_, err := e.Account(0)
	require.ErrorIs(t, err, ErrNotFound)
}
