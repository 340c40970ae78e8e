package downpayment

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"downpay/core/state"
)

// NormalizedOrder is what every marketplace payload reduces to once the
// adapter has verified it: which token is being bought, in which currency,
// and at what total price.
type NormalizedOrder struct {
	// Collection is the collateral collection the engine will end up holding.
	// For punks this is the wrapped collection, not the raw market.
	Collection common.Address
	TokenID    *big.Int
	Currency   common.Address
	Price      *big.Int
	// Seller receives the sale proceeds; informational.
	Seller common.Address
}

// SettleContext carries everything an adapter needs for one settlement. The
// engine holds the flash-borrowed funds plus the buyer contribution when
// Execute runs.
type SettleContext struct {
	Tr *state.Transition
	// Engine is the settlement address holding the funds and receiving the
	// token.
	Engine common.Address
	Buyer  common.Address
	// Currency is the declared settlement currency for this call.
	Currency common.Address
	Payload  []byte
}

// Adapter translates one marketplace family's opaque payload into a
// settlement. Quote performs every check without moving funds; Execute runs
// the trade with the engine's funds and must leave the purchased token (in
// its collateral form) held by the engine.
type Adapter interface {
	// Address identifies the adapter in the whitelist and serves as the
	// verifying contract of its intent domain.
	Address() common.Address
	Name() string

	// IntentDigest computes the buyer-intent typed-data digest over the
	// payload bound to the given nonce.
	IntentDigest(payload []byte, nonce uint64) (common.Hash, error)

	// AcceptsCurrency reports whether the adapter can settle in currency.
	AcceptsCurrency(tr *state.Transition, currency common.Address) (bool, error)

	Quote(ctx SettleContext) (NormalizedOrder, error)
	Execute(ctx SettleContext, order NormalizedOrder) error
}

// Receipt summarizes a committed settlement.
type Receipt struct {
	Adapter      common.Address
	Buyer        common.Address
	Beneficiary  common.Address
	Currency     common.Address
	Collection   common.Address
	TokenID      *big.Int
	Price        *big.Int
	Borrowed     *big.Int
	Premium      *big.Int
	Fee          *big.Int
	Contribution *big.Int
	Nonce        uint64
}
