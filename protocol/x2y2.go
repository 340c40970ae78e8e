package protocol

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"downpay/core/state"
	"downpay/crypto/eip712"
)

// X2Y2OrderItem is one sellable item inside a maker order. Data identifies
// the asset in the venue's own encoding.
type X2Y2OrderItem struct {
	Price *big.Int
	Data  []byte
}

// X2Y2Order is the maker side of a run input, signed by the maker.
type X2Y2Order struct {
	Salt     *big.Int
	User     common.Address
	Network  *big.Int
	Intent   *big.Int
	Deadline uint64
	Currency common.Address
	Items    []X2Y2OrderItem
	// Collection and TokenID resolve the item data for settlement.
	Collection common.Address
	TokenID    *big.Int
	Signature  []byte
}

// Maker intent and operator fill-plan op codes. Only sell listings settled
// through a complete-sell op are fillable by a taker.
const (
	X2Y2IntentSell          = 1
	X2Y2OpCompleteSellOffer = 1
)

// X2Y2Fee is a fee leg carved out of the sale price at settlement.
type X2Y2Fee struct {
	Percentage uint64
	To         common.Address
}

// X2Y2SettleDetail selects the order item being filled and the fee split
// decided by the venue operator.
type X2Y2SettleDetail struct {
	Op       uint8
	OrderIdx uint64
	ItemIdx  uint64
	Price    *big.Int
	Fees     []X2Y2Fee
}

// X2Y2SettleShared carries the execution envelope shared by every detail.
type X2Y2SettleShared struct {
	Salt     *big.Int
	Deadline uint64
	User     common.Address
	CanFail  bool
}

// X2Y2RunInput is the full settlement instruction: maker orders plus the
// operator's fill plan, countersigned by the venue operator. It is produced
// off-platform and must be replayed verbatim.
type X2Y2RunInput struct {
	Orders    []X2Y2Order
	Details   []X2Y2SettleDetail
	Shared    X2Y2SettleShared
	Signature []byte
}

var (
	x2y2OrderTypes = map[string][]apitypes.Type{
		"Order": {
			{Name: "salt", Type: "uint256"},
			{Name: "user", Type: "address"},
			{Name: "network", Type: "uint256"},
			{Name: "intent", Type: "uint256"},
			{Name: "deadline", Type: "uint256"},
			{Name: "currency", Type: "address"},
			{Name: "collection", Type: "address"},
			{Name: "tokenId", Type: "uint256"},
			{Name: "price", Type: "uint256"},
		},
	}
	x2y2RunTypes = map[string][]apitypes.Type{
		"RunInput": {
			{Name: "salt", Type: "uint256"},
			{Name: "deadline", Type: "uint256"},
			{Name: "user", Type: "address"},
			{Name: "ordersHash", Type: "bytes32"},
		},
	}
)

// X2Y2Domain is the venue's signing domain, shared by maker orders and the
// operator countersignature.
func X2Y2Domain(chainID uint64, exchange common.Address) apitypes.TypedDataDomain {
	return eip712.Domain("X2Y2", "1.0", chainID, exchange)
}

// Digest returns the typed-data digest the maker signed for the item at idx.
func (o X2Y2Order) Digest(chainID uint64, exchange common.Address, itemIdx uint64) (common.Hash, error) {
	if itemIdx >= uint64(len(o.Items)) {
		itemIdx = 0
	}
	price := big.NewInt(0)
	if len(o.Items) > 0 {
		price = o.Items[itemIdx].Price
	}
	return eip712.Digest(X2Y2Domain(chainID, exchange), eip712.Types(x2y2OrderTypes), "Order", apitypes.TypedDataMessage{
		"salt":       o.Salt.String(),
		"user":       o.User.Hex(),
		"network":    o.Network.String(),
		"intent":     o.Intent.String(),
		"deadline":   new(big.Int).SetUint64(o.Deadline).String(),
		"currency":   o.Currency.Hex(),
		"collection": o.Collection.Hex(),
		"tokenId":    o.TokenID.String(),
		"price":      price.String(),
	})
}

// Digest returns the typed-data digest the venue operator countersigned.
// ordersHash commits the fill plan to the exact maker orders it settles.
func (in X2Y2RunInput) Digest(chainID uint64, exchange common.Address) (common.Hash, error) {
	ordersHash, err := in.ordersHash(chainID, exchange)
	if err != nil {
		return common.Hash{}, err
	}
	return eip712.Digest(X2Y2Domain(chainID, exchange), eip712.Types(x2y2RunTypes), "RunInput", apitypes.TypedDataMessage{
		"salt":       in.Shared.Salt.String(),
		"deadline":   new(big.Int).SetUint64(in.Shared.Deadline).String(),
		"user":       in.Shared.User.Hex(),
		"ordersHash": ordersHash[:],
	})
}

func (in X2Y2RunInput) ordersHash(chainID uint64, exchange common.Address) (common.Hash, error) {
	var acc []byte
	for i, order := range in.Orders {
		itemIdx := uint64(0)
		if i < len(in.Details) {
			itemIdx = in.Details[i].ItemIdx
		}
		digest, err := order.Digest(chainID, exchange, itemIdx)
		if err != nil {
			return common.Hash{}, err
		}
		acc = append(acc, digest[:]...)
	}
	return common.BytesToHash(ethKeccak(acc)), nil
}

// X2Y2Exchange executes an operator-countersigned run input. The currency is
// pulled from caller through its delegate approval and each maker receives
// the item price minus the operator fee legs.
type X2Y2Exchange interface {
	Address() common.Address
	Operator() common.Address
	Run(tr *state.Transition, caller common.Address, input X2Y2RunInput) error
}
