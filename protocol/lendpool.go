package protocol

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"downpay/core/state"
)

// NftCollateralData describes a locked collateral position.
type NftCollateralData struct {
	Collection common.Address
	TokenID    *big.Int
	Owner      common.Address
	Debt       *big.Int
	DebtAsset  common.Address
}

// LendPool is the collateralized lending market the purchased asset is routed
// into. The pool escrows the token, mints a receipt token to the position
// owner, and tracks the debt drawn against it.
type LendPool interface {
	Address() common.Address

	// DepositNFT escrows collection/tokenID held by caller and credits the
	// position to onBehalfOf. The receipt token is minted to onBehalfOf.
	DepositNFT(tr *state.Transition, caller, collection common.Address, tokenID *big.Int, onBehalfOf common.Address) error

	// BorrowOnBehalf draws amount of asset as debt against onBehalfOf's
	// collateral position and sends the funds to recipient. The caller must
	// hold a borrow delegation from onBehalfOf covering amount.
	BorrowOnBehalf(tr *state.Transition, caller, asset common.Address, amount *big.Int, collection common.Address, tokenID *big.Int, onBehalfOf, recipient common.Address) error

	// ApproveDelegation lets delegatee draw debt denominated in asset against
	// delegator's collateral, up to amount.
	ApproveDelegation(tr *state.Transition, delegator, delegatee, asset common.Address, amount *big.Int) error

	// BorrowAllowance returns the remaining delegation from delegator to
	// delegatee for asset.
	BorrowAllowance(tr *state.Transition, delegator, delegatee, asset common.Address) (*big.Int, error)

	// CollateralData returns the position for collection/tokenID.
	CollateralData(tr *state.Transition, collection common.Address, tokenID *big.Int) (NftCollateralData, bool, error)
}
