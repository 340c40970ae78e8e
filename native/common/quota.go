package common

import (
	"errors"
	"math"
	"math/big"
)

var (
	ErrQuotaSettlementsExceeded = errors.New("quota settlements exceeded")
	ErrQuotaBorrowCapExceeded   = errors.New("quota borrow cap exceeded")
	ErrQuotaCounterOverflow     = errors.New("quota counter overflow")
)

// QuotaNow captures the usage counters for a buyer within one epoch.
type QuotaNow struct {
	Settlements uint32
	BorrowedWei *big.Int
	EpochID     uint64
}

// Quota defines the per-buyer limits enforced by a module per epoch. Zero
// values disable the corresponding limit.
type Quota struct {
	MaxSettlementsPerEpoch uint32
	MaxBorrowWeiPerEpoch   *big.Int
	EpochSeconds           uint32
}

// Enabled reports whether any limit is configured.
func (q Quota) Enabled() bool {
	return q.MaxSettlementsPerEpoch > 0 || (q.MaxBorrowWeiPerEpoch != nil && q.MaxBorrowWeiPerEpoch.Sign() > 0)
}

// CheckQuota verifies whether one more settlement borrowing addBorrow fits
// within the configured quota. Counters reset when the epoch rolls over. The
// returned QuotaNow reflects the updated counters when the quota holds.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addBorrow *big.Int) (QuotaNow, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch}
	}
	if next.BorrowedWei == nil {
		next.BorrowedWei = big.NewInt(0)
	}

	if next.Settlements == math.MaxUint32 {
		return prev, ErrQuotaCounterOverflow
	}
	next.Settlements++
	if q.MaxSettlementsPerEpoch > 0 && next.Settlements > q.MaxSettlementsPerEpoch {
		return prev, ErrQuotaSettlementsExceeded
	}

	if addBorrow != nil && addBorrow.Sign() > 0 {
		next.BorrowedWei = new(big.Int).Add(next.BorrowedWei, addBorrow)
	}
	if q.MaxBorrowWeiPerEpoch != nil && q.MaxBorrowWeiPerEpoch.Sign() > 0 && next.BorrowedWei.Cmp(q.MaxBorrowWeiPerEpoch) > 0 {
		return prev, ErrQuotaBorrowCapExceeded
	}

	return next, nil
}
