package i128

import "math/big"

// I128 is a signed 128-bit integer in two's complement, split into a signed
// high word and an unsigned low word: value = Hi*2^64 + Lo.
type I128 struct {
	Hi int64
	Lo uint64
}

// ZeroI128 is the additive identity.
var ZeroI128 = I128{}

// MaxI128 is the largest representable I128 (2^127 - 1).
var MaxI128 = I128{Hi: 1<<63 - 1, Lo: ^uint64(0)}

// MinI128 is the smallest representable I128 (-2^127). Its magnitude cannot
// be represented as an I128 — callers needing |MinI128| must go through
// AbsToU128, never through unary negation or a same-width conversion.
var MinI128 = I128{Hi: -1 << 63, Lo: 0}

var (
	i128Bias    = new(big.Int).Lsh(big.NewInt(1), 127) // 2^127
	i128MaxBig  = new(big.Int).Sub(i128Bias, big.NewInt(1))
	i128MinBig  = new(big.Int).Neg(i128Bias)
	i128Modulus = new(big.Int).Lsh(big.NewInt(1), 128) // 2^128
)

// I128FromInt64 widens an int64 into an I128.
func I128FromInt64(v int64) I128 {
	if v < 0 {
		return I128{Hi: -1, Lo: uint64(v)}
	}
	return I128{Hi: 0, Lo: uint64(v)}
}

func (x I128) big() *big.Int {
	// Interpret (Hi,Lo) as the two's-complement encoding of a 128-bit value:
	// unsigned magnitude = Hi(as uint64)*2^64 + Lo, then reduce mod 2^128
	// into the signed range [-2^127, 2^127).
	z := new(big.Int).SetUint64(uint64(x.Hi))
	z.Lsh(z, 64)
	z.Or(z, new(big.Int).SetUint64(x.Lo))
	if z.Cmp(i128MaxBig) > 0 {
		z.Sub(z, i128Modulus)
	}
	return z
}

// i128FromBigClamped assumes z already lies in [MinI128, MaxI128].
func i128FromBigClamped(z *big.Int) I128 {
	u := new(big.Int).Set(z)
	if u.Sign() < 0 {
		u.Add(u, i128Modulus)
	}
	lo := new(big.Int).And(u, u128Mask)
	hi := new(big.Int).Rsh(u, 64)
	return I128{Hi: int64(hi.Uint64()), Lo: lo.Uint64()}
}

func clampToI128Range(z *big.Int) (*big.Int, bool) {
	if z.Cmp(i128MaxBig) > 0 {
		return i128MaxBig, false
	}
	if z.Cmp(i128MinBig) < 0 {
		return i128MinBig, false
	}
	return z, true
}

// Sign returns -1, 0, or 1.
func (x I128) Sign() int {
	if x.Hi < 0 {
		return -1
	}
	if x.Hi == 0 && x.Lo == 0 {
		return 0
	}
	return 1
}

// IsMin reports whether x is MinI128 — the one value whose magnitude does
// not fit back into I128.
func (x I128) IsMin() bool { return x == MinI128 }

// Cmp returns -1, 0, or 1 comparing x to y.
func (x I128) Cmp(y I128) int { return x.big().Cmp(y.big()) }

// IsZero reports whether x is zero.
func (x I128) IsZero() bool { return x.Hi == 0 && x.Lo == 0 }

// Neg returns -x, saturating at MaxI128 if x is MinI128.
func (x I128) Neg() I128 {
	if x.IsMin() {
		return MaxI128
	}
	return i128FromBigClamped(new(big.Int).Neg(x.big()))
}

// Add returns x+y, saturating at the type's bounds on overflow.
func (x I128) Add(y I128) I128 {
	z, _ := clampToI128Range(new(big.Int).Add(x.big(), y.big()))
	return i128FromBigClamped(z)
}

// AddChecked returns x+y and false if the sum overflows I128.
func (x I128) AddChecked(y I128) (I128, bool) {
	z := new(big.Int).Add(x.big(), y.big())
	if z.Cmp(i128MaxBig) > 0 || z.Cmp(i128MinBig) < 0 {
		return I128{}, false
	}
	return i128FromBigClamped(z), true
}

// Sub returns x-y, saturating at the type's bounds on overflow.
func (x I128) Sub(y I128) I128 {
	z, _ := clampToI128Range(new(big.Int).Sub(x.big(), y.big()))
	return i128FromBigClamped(z)
}

// SubChecked returns x-y and false if the difference overflows I128.
func (x I128) SubChecked(y I128) (I128, bool) {
	z := new(big.Int).Sub(x.big(), y.big())
	if z.Cmp(i128MaxBig) > 0 || z.Cmp(i128MinBig) < 0 {
		return I128{}, false
	}
	return i128FromBigClamped(z), true
}

// Mul returns x*y, saturating at the type's bounds on overflow.
func (x I128) Mul(y I128) I128 {
	z, _ := clampToI128Range(new(big.Int).Mul(x.big(), y.big()))
	return i128FromBigClamped(z)
}

// MulChecked returns x*y and false if the product overflows I128.
func (x I128) MulChecked(y I128) (I128, bool) {
	z := new(big.Int).Mul(x.big(), y.big())
	if z.Cmp(i128MaxBig) > 0 || z.Cmp(i128MinBig) < 0 {
		return I128{}, false
	}
	return i128FromBigClamped(z), true
}

// Min returns the smaller of x and y.
func (x I128) Min(y I128) I128 {
	if x.Cmp(y) <= 0 {
		return x
	}
	return y
}

// Max returns the larger of x and y.
func (x I128) Max(y I128) I128 {
	if x.Cmp(y) >= 0 {
		return x
	}
	return y
}

// MaxOfZero returns the larger of x and zero — the "positive part".
func MaxOfZero(x I128) I128 {
	if x.Sign() < 0 {
		return ZeroI128
	}
	return x
}

// AbsToU128 returns |x| as a U128. This is the dedicated MIN-safe helper:
// it must be used instead of Neg().ToU128() anywhere |MinI128| is needed,
// since MinI128 has no I128 representation of its own magnitude.
func (x I128) AbsToU128() U128 {
	b := new(big.Int).Abs(x.big())
	return u128FromBigClamped(b)
}

// ToU128 converts a non-negative I128 to U128. Negative inputs clamp to zero.
func (x I128) ToU128() U128 {
	if x.Sign() < 0 {
		return ZeroU128
	}
	return u128FromBigClamped(x.big())
}

// FromU128 converts a U128 to I128. Values exceeding MaxI128 clamp to
// MaxI128 (the "safe conversion" rule: an unsigned value too large for the
// signed range saturates rather than wrapping into a negative number).
func FromU128(u U128) I128 {
	b := u.big()
	if b.Cmp(i128MaxBig) > 0 {
		return MaxI128
	}
	return i128FromBigClamped(b)
}

// MulDivDownI128 computes x*num/den for an I128 numerator with a signed
// 64-bit rate, using big.Int arithmetic to avoid intermediate overflow and
// saturating the result at the I128 bounds. den must be non-zero. The
// quotient is truncated toward zero (matches Go integer division), so for
// a negative result it is not the floor; use FloorDiv for that.
func MulDivDownI128(x I128, num int64, den int64) I128 {
	z := new(big.Int).Mul(x.big(), big.NewInt(num))
	q := new(big.Int).Quo(z, big.NewInt(den))
	clamped, _ := clampToI128Range(q)
	return i128FromBigClamped(clamped)
}

// FloorDiv computes floor(x/den), rounding toward negative infinity rather
// than toward zero. den must be positive. For non-negative x this coincides
// with truncating division; for negative x it rounds to a more negative
// result than Go's native / operator would.
func FloorDiv(x I128, den int64) I128 {
	z := x.big()
	d := big.NewInt(den)
	q := new(big.Int).Div(z, d) // big.Int.Div is Euclidean; with a positive
	// divisor that is exactly floor division.
	clamped, _ := clampToI128Range(q)
	return i128FromBigClamped(clamped)
}

// MulDivUpMagnitude computes a quotient rounded away from zero in the
// direction that increases the magnitude of a debt — used wherever
// rounding must favor whichever side owes (e.g. funding payments owed,
// never funding payments received).
func MulDivUpMagnitude(x I128, num int64, den int64) I128 {
	z := new(big.Int).Mul(x.big(), big.NewInt(num))
	denB := big.NewInt(den)
	q, r := new(big.Int).QuoRem(z, denB, new(big.Int))
	if r.Sign() != 0 {
		if z.Sign()*denB.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	clamped, _ := clampToI128Range(q)
	return i128FromBigClamped(clamped)
}

// String renders x in base 10 (debugging / logging only).
func (x I128) String() string { return x.big().String() }
