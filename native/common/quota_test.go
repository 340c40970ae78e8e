package common

import (
	"errors"
	"math/big"
	"testing"
)

func TestCheckQuotaSettlementLimit(t *testing.T) {
	q := Quota{MaxSettlementsPerEpoch: 2}
	prev := QuotaNow{EpochID: 1}

	next, err := CheckQuota(q, 1, prev, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	next, err = CheckQuota(q, 1, next, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Settlements != 2 {
		t.Fatalf("unexpected settlement count: %d", next.Settlements)
	}

	denied, err := CheckQuota(q, 1, next, nil)
	if !errors.Is(err, ErrQuotaSettlementsExceeded) {
		t.Fatalf("expected ErrQuotaSettlementsExceeded, got %v", err)
	}
	if denied.Settlements != next.Settlements {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckQuota(q, 2, next, nil)
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.EpochID != 2 || rollover.Settlements != 1 {
		t.Fatalf("unexpected state after rollover: %+v", rollover)
	}
}

func TestCheckQuotaBorrowCap(t *testing.T) {
	q := Quota{MaxBorrowWeiPerEpoch: big.NewInt(1000)}
	prev := QuotaNow{EpochID: 5}

	next, err := CheckQuota(q, 5, prev, big.NewInt(1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.BorrowedWei.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("unexpected borrowed volume: %s", next.BorrowedWei)
	}

	_, err = CheckQuota(q, 5, next, big.NewInt(1))
	if !errors.Is(err, ErrQuotaBorrowCapExceeded) {
		t.Fatalf("expected ErrQuotaBorrowCapExceeded, got %v", err)
	}

	rollover, err := CheckQuota(q, 6, next, big.NewInt(500))
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.BorrowedWei.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("unexpected borrowed volume after rollover: %s", rollover.BorrowedWei)
	}
}

func TestGuardPaused(t *testing.T) {
	if err := Guard(nil, "downpayment"); err != nil {
		t.Fatalf("nil view must not guard: %v", err)
	}
	if err := Guard(pauseStub{"downpayment"}, "downpayment"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(pauseStub{"lending"}, "downpayment"); err != nil {
		t.Fatalf("unexpected guard for unpaused module: %v", err)
	}
}

type pauseStub struct{ paused string }

func (p pauseStub) IsPaused(module string) bool { return module == p.paused }
