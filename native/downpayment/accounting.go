package downpayment

import "math/big"

var basisPoints = big.NewInt(10_000)

// MaxFeeBps bounds per-adapter protocol fees.
const MaxFeeBps = 10_000

// FlashPremium is the pool's cut of the borrowed amount.
func FlashPremium(borrow *big.Int, premiumBps uint64) *big.Int {
	return new(big.Int).Div(
		new(big.Int).Mul(borrow, new(big.Int).SetUint64(premiumBps)),
		basisPoints,
	)
}

// ProtocolFee is the engine's cut of the sale price.
func ProtocolFee(price *big.Int, feeBps uint64) *big.Int {
	return new(big.Int).Div(
		new(big.Int).Mul(price, new(big.Int).SetUint64(feeBps)),
		basisPoints,
	)
}

// Contribution is what the buyer must put down: everything the settlement
// costs that the borrowed amount does not cover. A negative result means the
// borrow exceeds the total cost.
func Contribution(price, premium, fee, borrow *big.Int) *big.Int {
	total := new(big.Int).Add(price, premium)
	total.Add(total, fee)
	return total.Sub(total, borrow)
}
