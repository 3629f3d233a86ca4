package i128

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestU128_SaturatingAdd(t *testing.T) {
	sum := MaxU128.Add(U128FromUint64(1))
	require.Equal(t, MaxU128, sum, "add past MaxU128 must saturate, not wrap")
}

func TestU128_SaturatingSub(t *testing.T) {
	diff := U128FromUint64(5).Sub(U128FromUint64(10))
	require.Equal(t, ZeroU128, diff, "sub below zero must saturate to zero, not wrap")
}

func TestU128_CheckedArithmetic(t *testing.T) {
	_, ok := MaxU128.AddChecked(U128FromUint64(1))
	require.False(t, ok, "checked add must report overflow instead of saturating")

	sum, ok := U128FromUint64(3).AddChecked(U128FromUint64(4))
	require.True(t, ok)
	require.Equal(t, U128FromUint64(7), sum)
}

func TestU128_Mul_Saturates(t *testing.T) {
	big := U128{Hi: 1, Lo: 0}
	product := big.Mul(big)
	require.Equal(t, MaxU128, product)
}

func TestU128_MulDivDown_NoIntermediateOverflow(t *testing.T) {
	// A large U128 times a small numerator, divided back down: 2^127 * 4 is
	// 2^129, past 128 bits, yet the result 2^129 / 8 = 2^126 fits, and the
	// helper must return it exactly rather than saturating.
	got := MulDivDown(U128{Hi: 1 << 63}, 4, 8)
	require.Equal(t, U128{Hi: 1 << 62}, got)
}

func TestU128_MulDivUp_RoundsAwayFromZero(t *testing.T) {
	got := MulDivUp(U128FromUint64(7), 1, 10_000)
	require.Equal(t, U128FromUint64(1), got, "ceil(7*1/10000) must be 1, not 0")
}

func TestI128_MinHasNoPositiveMirror(t *testing.T) {
	require.True(t, MinI128.IsMin())
	// Negating MinI128 must saturate to MaxI128, never panic or wrap.
	require.Equal(t, MaxI128, MinI128.Neg())
}

func TestI128_AbsToU128_HandlesMin(t *testing.T) {
	abs := MinI128.AbsToU128()
	want := MaxI128.AbsToU128().Add(U128FromUint64(1))
	require.Equal(t, want, abs, "|MinI128| == MaxI128magnitude + 1 == 2^127")
}

func TestI128_CheckedMul_ReportsOverflow(t *testing.T) {
	big := I128{Hi: 1 << 32, Lo: 0}
	_, ok := big.MulChecked(big)
	require.False(t, ok)
}

func TestI128_SaturatingMul_ClampsAtBounds(t *testing.T) {
	big := I128{Hi: 1 << 32, Lo: 0}
	require.Equal(t, MaxI128, big.Mul(big))
	require.Equal(t, MinI128, big.Mul(big.Neg()))
}

func TestFromU128_SaturatesAtMaxI128(t *testing.T) {
	got := FromU128(MaxU128)
	require.Equal(t, MaxI128, got)
}

func TestI128FromInt64_RoundTrips(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 1 << 40, -(1 << 40)} {
		x := I128FromInt64(v)
		require.Equal(t, v, x.big().Int64())
	}
}

func TestI128_MulDivUpMagnitude_RoundsTowardDebt(t *testing.T) {
	owed := I128FromInt64(-7) // account owes funding
	got := MulDivUpMagnitude(owed, 1, 3)
	require.Equal(t, int64(-3), got.big().Int64(), "rounding must increase the magnitude owed, never decrease it")
}
