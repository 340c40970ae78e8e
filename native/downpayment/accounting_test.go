package downpayment

import (
	"math/big"
	"testing"
)

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad wei literal: " + s)
	}
	return v
}

func TestFlashPremium(t *testing.T) {
	// 9 bps of 8.5e18.
	got := FlashPremium(wei("8500000000000000000"), 9)
	if got.Cmp(wei("7650000000000000")) != 0 {
		t.Fatalf("premium = %s", got)
	}
	if FlashPremium(big.NewInt(0), 9).Sign() != 0 {
		t.Fatalf("zero borrow must cost nothing")
	}
}

func TestProtocolFee(t *testing.T) {
	got := ProtocolFee(wei("10000000000000000000"), 100)
	if got.Cmp(wei("100000000000000000")) != 0 {
		t.Fatalf("fee = %s", got)
	}
	if ProtocolFee(wei("10000000000000000000"), 0).Sign() != 0 {
		t.Fatalf("zero bps must cost nothing")
	}
	// Integer division truncates.
	if got := ProtocolFee(big.NewInt(99), 100); got.Sign() != 0 {
		t.Fatalf("sub-unit fee should truncate to zero, got %s", got)
	}
}

func TestContributionScenario(t *testing.T) {
	// price 10e18, fee 100 bps, premium 9 bps of borrow 8.5e18.
	price := wei("10000000000000000000")
	borrow := wei("8500000000000000000")
	premium := FlashPremium(borrow, 9)
	fee := ProtocolFee(price, 100)

	got := Contribution(price, premium, fee, borrow)
	if got.Cmp(wei("1607650000000000000")) != 0 {
		t.Fatalf("contribution = %s", got)
	}
}

func TestContributionNegativeOnOverBorrow(t *testing.T) {
	price := big.NewInt(100)
	got := Contribution(price, big.NewInt(0), big.NewInt(1), big.NewInt(102))
	if got.Sign() >= 0 {
		t.Fatalf("expected negative contribution, got %s", got)
	}
}
