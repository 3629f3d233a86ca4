package engine

import (
	"math/bits"

	"riskslab/internal/i128"
)

// AccountKind tags a slot as a user account or a counterparty LP. This is a
// tagged-constant variant, not a polymorphic type: the rare places that
// branch on it (GC eligibility, LP aggregate maintenance) do so with a
// plain switch.
type AccountKind uint8

const (
	AccountUser AccountKind = iota
	AccountLP
)

// Account is one slot of the fixed-capacity table. Fields are unexported:
// pnl and capital are reached only through setPnL/setCapital (see
// aggregates.go) so that the package-level aggregates can never drift.
type Account struct {
	Kind AccountKind
	ID   uint64
	Owner [32]byte

	capital i128.U128
	pnl     i128.I128

	ReservedPnL uint64

	PositionSize i128.I128
	EntryPrice   uint64

	FundingIndexSnap i128.I128

	WarmupStartedAtSlot uint64
	WarmupSlopePerSlot  i128.U128

	FeeCredits i128.I128
	LastFeeSlot uint64

	// LP-only tags; opaque to the engine, interpreted by the host.
	MatcherProgram [32]byte
	MatcherContext [32]byte
}

// Capital is the read accessor for the protected-principal field.
func (a *Account) Capital() i128.U128 { return a.capital }

// PnL is the read accessor for the realized-PnL field.
func (a *Account) PnL() i128.I128 { return a.pnl }

func (a *Account) IsLP() bool { return a.Kind == AccountLP }

// zero resets a slot to its just-freed state. Called both when allocating
// (so a reused slot starts clean) and when freeing (so a stale index
// cannot read back a prior occupant's data).
func (a *Account) zero() {
	*a = Account{}
}

// Engine is the risk-and-accounting core for one market (one "slab").
// It owns every account in the table and every package-level aggregate
// derived from them. It carries no internal mutex: callers serialize calls
// to it the same way a single-goroutine-per-shard host would — there is
// simply no goroutine here at all.
type Engine struct {
	Params RiskParams

	Vault     i128.U128
	Insurance i128.U128

	cTot       i128.U128
	pnlPosTot  i128.U128

	TotalOpenInterest i128.U128
	NetLPPos          i128.I128
	LPSumAbs          i128.U128
	LPMaxAbs          i128.U128

	FundingIndex    i128.I128
	LastFundingSlot uint64
	FundingRateLast int64

	CurrentSlot            uint64
	LastCrankSlot          uint64
	SweepStartCursor       uint16
	SweepLastCompletedSlot uint64
	CrankCursor            uint16

	RiskReductionThreshold i128.U128
	RiskReductionOnly      bool

	Resolved         bool
	ResolutionPrice  uint64
	AuthorityPrice   uint64

	numUsedAccounts uint16
	nextAccountID   uint64
	freeHead        uint16

	usedBitmap []uint64
	lpBitmap   []uint64
	freeNext   []uint16

	Accounts []Account
}

// Init allocates a new Engine with the given capacity and parameters. The
// free list is threaded so that slot i's next-free pointer is i+1, with the
// last slot terminated by sentinelFree.
func Init(params RiskParams, capacity uint16) *Engine {
	words := (int(capacity) + 63) / 64
	e := &Engine{
		Params:   params,
		Accounts: make([]Account, capacity),
		freeNext: make([]uint16, capacity),

		usedBitmap: make([]uint64, words),
		lpBitmap:   make([]uint64, words),

		FundingIndex: i128.ZeroI128,
		freeHead:     0,
	}
	for i := uint16(0); i < capacity; i++ {
		if i+1 == capacity {
			e.freeNext[i] = sentinelFree
		} else {
			e.freeNext[i] = i + 1
		}
	}
	if capacity == 0 {
		e.freeHead = sentinelFree
	}
	return e
}

func bitSet(bm []uint64, idx uint16)   { bm[idx/64] |= 1 << (idx % 64) }
func bitClear(bm []uint64, idx uint16) { bm[idx/64] &^= 1 << (idx % 64) }
func bitTest(bm []uint64, idx uint16) bool {
	return bm[idx/64]&(1<<(idx%64)) != 0
}

// forEachUsed walks set bits low-to-high, clearing the lowest set bit of
// each word each step rather than testing every index.
func forEachUsed(bm []uint64, capacity uint16, fn func(idx uint16)) {
	for w := 0; w < len(bm); w++ {
		word := bm[w]
		for word != 0 {
			b := bits.TrailingZeros64(word)
			idx := uint16(w*64 + b)
			if idx >= capacity {
				return
			}
			fn(idx)
			word &= word - 1
		}
	}
}

// allocSlot pops the free-list head, marks it used, and assigns a fresh
// monotonic id. Returns ErrOutOfCapacity if the free list is exhausted.
func (e *Engine) allocSlot(kind AccountKind, owner [32]byte, nowSlot uint64) (uint16, error) {
	if e.freeHead == sentinelFree {
		return 0, ErrOutOfCapacity
	}
	idx := e.freeHead
	e.freeHead = e.freeNext[idx]
	e.freeNext[idx] = sentinelFree

	acc := &e.Accounts[idx]
	acc.zero()
	acc.Kind = kind
	acc.Owner = owner
	acc.ID = e.nextAccountID
	e.nextAccountID++
	acc.LastFeeSlot = nowSlot
	acc.WarmupStartedAtSlot = nowSlot

	bitSet(e.usedBitmap, idx)
	if kind == AccountLP {
		bitSet(e.lpBitmap, idx)
	}
	e.numUsedAccounts++
	return idx, nil
}

// freeSlot reverses allocSlot: clears the bitmap bits, zeroes the slot, and
// threads it back onto the free list.
func (e *Engine) freeSlot(idx uint16) {
	bitClear(e.usedBitmap, idx)
	bitClear(e.lpBitmap, idx)
	e.Accounts[idx].zero()
	e.freeNext[idx] = e.freeHead
	e.freeHead = idx
	if e.numUsedAccounts > 0 {
		e.numUsedAccounts--
	}
}

// AddUser allocates a new user account, crediting it with feePayment
// deposited capital. Blocked once the market is resolved.
func (e *Engine) AddUser(owner [32]byte, feePayment i128.U128, nowSlot uint64) (uint16, error) {
	if e.Resolved {
		return 0, ErrAlreadyResolved
	}
	idx, err := e.allocSlot(AccountUser, owner, nowSlot)
	if err != nil {
		return 0, err
	}
	if !feePayment.IsZero() {
		e.setCapital(idx, feePayment)
		e.Vault = e.Vault.Add(feePayment)
	}
	return idx, nil
}

// AddLP allocates a new LP account tagged with the host-opaque matcher
// program/context, used by downstream trade proposals.
func (e *Engine) AddLP(owner [32]byte, matcherProgram, matcherContext [32]byte, feePayment i128.U128, nowSlot uint64) (uint16, error) {
	if e.Resolved {
		return 0, ErrAlreadyResolved
	}
	idx, err := e.allocSlot(AccountLP, owner, nowSlot)
	if err != nil {
		return 0, err
	}
	e.Accounts[idx].MatcherProgram = matcherProgram
	e.Accounts[idx].MatcherContext = matcherContext
	if !feePayment.IsZero() {
		e.setCapital(idx, feePayment)
		e.Vault = e.Vault.Add(feePayment)
	}
	return idx, nil
}

// account looks up a slot by index, validating that it is in range and
// currently used.
func (e *Engine) account(idx uint16) (*Account, error) {
	if int(idx) >= len(e.Accounts) || !bitTest(e.usedBitmap, idx) {
		return nil, ErrNotFound
	}
	return &e.Accounts[idx], nil
}

// NumUsedAccounts reports the live popcount-equivalent account count.
func (e *Engine) NumUsedAccounts() uint16 { return e.numUsedAccounts }

// CTot is the read accessor for the aggregate Σ capital invariant.
func (e *Engine) CTot() i128.U128 { return e.cTot }

// PnLPosTot is the read accessor for the aggregate Σ max(pnl,0) invariant.
func (e *Engine) PnLPosTot() i128.U128 { return e.pnlPosTot }
