package protocol

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"downpay/core/state"
)

// PunkOffer is an on-market sale listing. No off-platform signature exists
// for this family; the listing itself is the seller's commitment. A non-zero
// OnlySellTo reserves the offer for a single buyer.
type PunkOffer struct {
	IsForSale  bool
	PunkIndex  *big.Int
	Seller     common.Address
	MinValue   *big.Int
	OnlySellTo common.Address
}

// PunkMarket is the native-currency peer-to-peer market. Punks are not
// standard collection tokens, so the market tracks ownership itself.
type PunkMarket interface {
	Address() common.Address
	PunkOwner(tr *state.Transition, punkIndex *big.Int) (common.Address, bool, error)
	OfferPunkForSale(tr *state.Transition, caller common.Address, punkIndex, minPrice *big.Int) error
	PunkOffer(tr *state.Transition, punkIndex *big.Int) (PunkOffer, bool, error)

	// BuyPunk pays the offer in native currency from caller's balance and
	// assigns the punk to caller.
	BuyPunk(tr *state.Transition, caller common.Address, punkIndex, payment *big.Int) error

	// TransferPunk moves a punk the caller owns.
	TransferPunk(tr *state.Transition, caller, to common.Address, punkIndex *big.Int) error
}

// WrappedPunks lifts punks into a standard collection so they can serve as
// collateral. Minting goes through a per-user proxy: the punk is transferred
// to the caller's registered proxy, then minted as a collection token.
type WrappedPunks interface {
	Address() common.Address
	Collection() common.Address
	RegisterProxy(tr *state.Transition, caller common.Address) (common.Address, error)
	ProxyOf(tr *state.Transition, owner common.Address) (common.Address, bool, error)
	Mint(tr *state.Transition, caller common.Address, punkIndex *big.Int) error
	Burn(tr *state.Transition, caller common.Address, punkIndex *big.Int) error
}
