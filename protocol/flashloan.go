package protocol

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"downpay/core/state"
)

// FlashLoanReceiver is implemented by anything that can take delivery of a
// flash loan. The pool transfers the borrowed assets first, then invokes
// ExecuteOperation, then pulls principal plus premium back through the
// receiver's allowance. caller is the address that invoked the pool.
type FlashLoanReceiver interface {
	Address() common.Address
	ExecuteOperation(tr *state.Transition, caller common.Address, assets []common.Address, amounts, premiums []*big.Int, initiator common.Address, params []byte) error
}

// FlashLendPool hands out single-transition loans that must be repaid with a
// premium before the transition commits.
type FlashLendPool interface {
	Address() common.Address

	// PremiumBps is the flash premium in basis points of the borrowed amount.
	PremiumBps() uint64

	// FlashLoan lends the assets to the receiver for the duration of one
	// ExecuteOperation callback. initiator is the address that requested the
	// loan and is passed through to the receiver unchanged.
	FlashLoan(tr *state.Transition, initiator common.Address, receiver FlashLoanReceiver, assets []common.Address, amounts []*big.Int, params []byte) error
}
