package protocol

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"downpay/core/state"
	"downpay/crypto/eip712"
)

// BendMakerOrder is a resting order on the authorization-proxy exchange. The
// interceptor hook, when set, runs before settlement on the maker side.
type BendMakerOrder struct {
	IsOrderAsk  bool
	Maker       common.Address
	Collection  common.Address
	Price       *big.Int
	TokenID     *big.Int
	Amount      *big.Int
	Strategy    common.Address
	Currency    common.Address
	Nonce       *big.Int
	StartTime   uint64
	EndTime     uint64
	Interceptor common.Address
	Signature   []byte
}

// BendTakerOrder is the unsigned taker side submitted at fill time.
type BendTakerOrder struct {
	IsOrderAsk  bool
	Taker       common.Address
	Price       *big.Int
	TokenID     *big.Int
	Interceptor common.Address
}

var bendMakerTypes = map[string][]apitypes.Type{
	"MakerOrder": {
		{Name: "isOrderAsk", Type: "bool"},
		{Name: "maker", Type: "address"},
		{Name: "collection", Type: "address"},
		{Name: "price", Type: "uint256"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "amount", Type: "uint256"},
		{Name: "strategy", Type: "address"},
		{Name: "currency", Type: "address"},
		{Name: "nonce", Type: "uint256"},
		{Name: "startTime", Type: "uint256"},
		{Name: "endTime", Type: "uint256"},
		{Name: "interceptor", Type: "address"},
	},
}

// BendExchangeDomain is the exchange's signing domain.
func BendExchangeDomain(chainID uint64, exchange common.Address) apitypes.TypedDataDomain {
	return eip712.Domain("BendExchange", "1", chainID, exchange)
}

// Digest returns the typed-data digest the maker signed.
func (o BendMakerOrder) Digest(chainID uint64, exchange common.Address) (common.Hash, error) {
	return eip712.Digest(BendExchangeDomain(chainID, exchange), eip712.Types(bendMakerTypes), "MakerOrder", apitypes.TypedDataMessage{
		"isOrderAsk":  o.IsOrderAsk,
		"maker":       o.Maker.Hex(),
		"collection":  o.Collection.Hex(),
		"price":       o.Price.String(),
		"tokenId":     o.TokenID.String(),
		"amount":      o.Amount.String(),
		"strategy":    o.Strategy.Hex(),
		"currency":    o.Currency.Hex(),
		"nonce":       o.Nonce.String(),
		"startTime":   new(big.Int).SetUint64(o.StartTime).String(),
		"endTime":     new(big.Int).SetUint64(o.EndTime).String(),
		"interceptor": o.Interceptor.Hex(),
	})
}

// AuthorizationManager hands every account a dedicated proxy that the
// exchange pulls funds and tokens through. Both sides of a match must have
// registered before trading.
type AuthorizationManager interface {
	Address() common.Address
	RegisterProxy(tr *state.Transition, owner common.Address) (common.Address, error)
	ProxyOf(tr *state.Transition, owner common.Address) (common.Address, bool, error)
}

// BendExchange matches a signed maker ask against a taker bid, settling in
// any currency governance has allowed on the venue.
type BendExchange interface {
	Address() common.Address
	AuthorizationManager() AuthorizationManager
	IsCurrencyAllowed(tr *state.Transition, currency common.Address) (bool, error)
	AllowCurrency(tr *state.Transition, currency common.Address) error
	MatchAskWithTakerBid(tr *state.Transition, caller common.Address, taker BendTakerOrder, maker BendMakerOrder) error
}
