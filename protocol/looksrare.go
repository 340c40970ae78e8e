package protocol

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"downpay/core/state"
	"downpay/crypto/eip712"
)

// LooksRareMakerOrder is a resting order on the legacy maker/taker exchange.
// The maker signs the full struct under the exchange's typed-data domain.
type LooksRareMakerOrder struct {
	IsOrderAsk         bool
	Signer             common.Address
	Collection         common.Address
	Price              *big.Int
	TokenID            *big.Int
	Amount             *big.Int
	Strategy           common.Address
	Currency           common.Address
	Nonce              *big.Int
	StartTime          uint64
	EndTime            uint64
	MinPercentageToAsk uint64
	Params             []byte
	Signature          []byte
}

// LooksRareTakerOrder is the unsigned taker side submitted at fill time.
type LooksRareTakerOrder struct {
	IsOrderAsk         bool
	Taker              common.Address
	Price              *big.Int
	TokenID            *big.Int
	MinPercentageToAsk uint64
	Params             []byte
}

var looksRareMakerTypes = map[string][]apitypes.Type{
	"MakerOrder": {
		{Name: "isOrderAsk", Type: "bool"},
		{Name: "signer", Type: "address"},
		{Name: "collection", Type: "address"},
		{Name: "price", Type: "uint256"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "amount", Type: "uint256"},
		{Name: "strategy", Type: "address"},
		{Name: "currency", Type: "address"},
		{Name: "nonce", Type: "uint256"},
		{Name: "startTime", Type: "uint256"},
		{Name: "endTime", Type: "uint256"},
		{Name: "minPercentageToAsk", Type: "uint256"},
		{Name: "params", Type: "bytes"},
	},
}

// LooksRareDomain is the exchange's signing domain.
func LooksRareDomain(chainID uint64, exchange common.Address) apitypes.TypedDataDomain {
	return eip712.Domain("LooksRareExchange", "1", chainID, exchange)
}

// Digest returns the typed-data digest the maker signed.
func (o LooksRareMakerOrder) Digest(chainID uint64, exchange common.Address) (common.Hash, error) {
	return eip712.Digest(LooksRareDomain(chainID, exchange), eip712.Types(looksRareMakerTypes), "MakerOrder", apitypes.TypedDataMessage{
		"isOrderAsk":         o.IsOrderAsk,
		"signer":             o.Signer.Hex(),
		"collection":         o.Collection.Hex(),
		"price":              o.Price.String(),
		"tokenId":            o.TokenID.String(),
		"amount":             o.Amount.String(),
		"strategy":           o.Strategy.Hex(),
		"currency":           o.Currency.Hex(),
		"nonce":              o.Nonce.String(),
		"startTime":          new(big.Int).SetUint64(o.StartTime).String(),
		"endTime":            new(big.Int).SetUint64(o.EndTime).String(),
		"minPercentageToAsk": new(big.Int).SetUint64(o.MinPercentageToAsk).String(),
		"params":             o.Params,
	})
}

// LooksRareExchange matches a signed maker ask against a taker bid. The
// exchange pulls the sale currency from caller and moves the token from the
// maker using its transfer-manager approval.
type LooksRareExchange interface {
	Address() common.Address
	MatchAskWithTakerBid(tr *state.Transition, caller common.Address, taker LooksRareTakerOrder, maker LooksRareMakerOrder) error
	IsUserOrderNonceExecutedOrCancelled(tr *state.Transition, signer common.Address, nonce *big.Int) (bool, error)
}
