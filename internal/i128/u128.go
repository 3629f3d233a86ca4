// Package i128 provides alignment-stable 128-bit integers for slab state.
//
// Both U128 and I128 are laid out as two 64-bit words so that a value read
// back from the persisted slab is bit-identical regardless of the host's
// native word size. Correctness of the arithmetic itself is delegated to
// math/big internally (see DESIGN.md) — the exported struct layout is what
// callers and the serialized slab actually depend on, never the internal
// representation used mid-computation.
package i128

import "math/big"

// U128 is an unsigned 128-bit integer: value = Hi*2^64 + Lo.
type U128 struct {
	Hi uint64
	Lo uint64
}

// ZeroU128 is the additive identity.
var ZeroU128 = U128{}

// MaxU128 is the largest representable U128.
var MaxU128 = U128{Hi: ^uint64(0), Lo: ^uint64(0)}

var u128Mask = new(big.Int).SetUint64(^uint64(0))

// U128FromUint64 widens a uint64 into a U128.
func U128FromUint64(v uint64) U128 { return U128{Lo: v} }

func (u U128) big() *big.Int {
	z := new(big.Int).SetUint64(u.Hi)
	z.Lsh(z, 64)
	z.Or(z, new(big.Int).SetUint64(u.Lo))
	return z
}

// u128FromBigClamped assumes the caller has already clamped z into [0, 2^128).
func u128FromBigClamped(z *big.Int) U128 {
	lo := new(big.Int).And(z, u128Mask)
	hi := new(big.Int).Rsh(z, 64)
	return U128{Hi: hi.Uint64(), Lo: lo.Uint64()}
}

// IsZero reports whether u is zero.
func (u U128) IsZero() bool { return u.Hi == 0 && u.Lo == 0 }

// Cmp returns -1, 0, or 1 comparing u to v.
func (u U128) Cmp(v U128) int {
	if u.Hi != v.Hi {
		if u.Hi < v.Hi {
			return -1
		}
		return 1
	}
	switch {
	case u.Lo < v.Lo:
		return -1
	case u.Lo > v.Lo:
		return 1
	default:
		return 0
	}
}

// Add returns u+v, saturating at MaxU128 on overflow.
func (u U128) Add(v U128) U128 {
	z := new(big.Int).Add(u.big(), v.big())
	if z.BitLen() > 128 {
		return MaxU128
	}
	return u128FromBigClamped(z)
}

// AddChecked returns u+v and false if the sum does not fit in 128 bits.
func (u U128) AddChecked(v U128) (U128, bool) {
	z := new(big.Int).Add(u.big(), v.big())
	if z.BitLen() > 128 {
		return U128{}, false
	}
	return u128FromBigClamped(z), true
}

// Sub returns u-v, saturating at zero on underflow.
func (u U128) Sub(v U128) U128 {
	z := new(big.Int).Sub(u.big(), v.big())
	if z.Sign() < 0 {
		return ZeroU128
	}
	return u128FromBigClamped(z)
}

// SubChecked returns u-v and false if v > u.
func (u U128) SubChecked(v U128) (U128, bool) {
	z := new(big.Int).Sub(u.big(), v.big())
	if z.Sign() < 0 {
		return U128{}, false
	}
	return u128FromBigClamped(z), true
}

// Mul returns u*v, saturating at MaxU128 on overflow.
func (u U128) Mul(v U128) U128 {
	z := new(big.Int).Mul(u.big(), v.big())
	if z.BitLen() > 128 {
		return MaxU128
	}
	return u128FromBigClamped(z)
}

// MulChecked returns u*v and false if the product does not fit in 128 bits.
func (u U128) MulChecked(v U128) (U128, bool) {
	z := new(big.Int).Mul(u.big(), v.big())
	if z.BitLen() > 128 {
		return U128{}, false
	}
	return u128FromBigClamped(z), true
}

// Min returns the smaller of u and v.
func (u U128) Min(v U128) U128 {
	if u.Cmp(v) <= 0 {
		return u
	}
	return v
}

// Max returns the larger of u and v.
func (u U128) Max(v U128) U128 {
	if u.Cmp(v) >= 0 {
		return u
	}
	return v
}

// MulDivDown computes floor(u*num/den) without intermediate overflow,
// using checked 128-bit-safe big.Int arithmetic. den must be non-zero.
func MulDivDown(u U128, num, den uint64) U128 {
	z := new(big.Int).Mul(u.big(), new(big.Int).SetUint64(num))
	z.Div(z, new(big.Int).SetUint64(den))
	if z.BitLen() > 128 {
		return MaxU128
	}
	return u128FromBigClamped(z)
}

// MulDivUp computes ceil(u*num/den) without intermediate overflow.
// den must be non-zero.
func MulDivUp(u U128, num, den uint64) U128 {
	z := new(big.Int).Mul(u.big(), new(big.Int).SetUint64(num))
	denB := new(big.Int).SetUint64(den)
	q, r := new(big.Int).QuoRem(z, denB, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	if q.BitLen() > 128 {
		return MaxU128
	}
	return u128FromBigClamped(q)
}

// MulDivDownU128 computes floor(u*num/den) where num/den are themselves
// U128 — used for the haircut ratio, whose numerator and denominator are
// full aggregate sums rather than small fixed constants. den must be
// non-zero.
func MulDivDownU128(u, num, den U128) U128 {
	z := new(big.Int).Mul(u.big(), num.big())
	z.Div(z, den.big())
	if z.BitLen() > 128 {
		return MaxU128
	}
	return u128FromBigClamped(z)
}

// Uint64Saturating narrows u to a uint64, saturating at math.MaxUint64.
func (u U128) Uint64Saturating() uint64 {
	if u.Hi != 0 {
		return ^uint64(0)
	}
	return u.Lo
}

// String renders u in base 10 (debugging / logging only).
func (u U128) String() string { return u.big().String() }
