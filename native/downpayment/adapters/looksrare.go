package adapters

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"downpay/core/ledger"
	"downpay/crypto/eip712"
	"downpay/native/downpayment"
	"downpay/protocol"
)

// LooksRarePayload is the opaque payload for the legacy maker/taker family:
// the signed maker ask, replayed verbatim.
type LooksRarePayload struct {
	Maker protocol.LooksRareMakerOrder `json:"maker"`
}

// LooksRare settles asks from the legacy maker/taker exchange.
type LooksRare struct {
	Base
	exchange protocol.LooksRareExchange
}

// NewLooksRare builds the adapter.
func NewLooksRare(addr common.Address, chainID uint64, weth *ledger.WNative, exchange protocol.LooksRareExchange) *LooksRare {
	return &LooksRare{
		Base:     newBase(addr, "looksrare", "LooksRare Exchange Downpayment Adapter", "1.0", chainID, weth),
		exchange: exchange,
	}
}

var looksRareIntentTypes = map[string][]apitypes.Type{
	"Params": {
		{Name: "isOrderAsk", Type: "bool"},
		{Name: "maker", Type: "address"},
		{Name: "collection", Type: "address"},
		{Name: "price", Type: "uint256"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "amount", Type: "uint256"},
		{Name: "strategy", Type: "address"},
		{Name: "currency", Type: "address"},
		{Name: "makerNonce", Type: "uint256"},
		{Name: "startTime", Type: "uint256"},
		{Name: "endTime", Type: "uint256"},
		{Name: "minPercentageToAsk", Type: "uint256"},
		{Name: "params", Type: "bytes"},
		{Name: "nonce", Type: "uint256"},
	},
}

// IntentDigest binds every maker order field plus the buyer nonce into the
// adapter's intent domain.
func (a *LooksRare) IntentDigest(payload []byte, nonce uint64) (common.Hash, error) {
	var p LooksRarePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return common.Hash{}, ErrPayload
	}
	m := p.Maker
	if m.Price == nil || m.TokenID == nil || m.Amount == nil || m.Nonce == nil {
		return common.Hash{}, ErrPayload
	}
	return a.intentDigest(looksRareIntentTypes, "Params", apitypes.TypedDataMessage{
		"isOrderAsk":         m.IsOrderAsk,
		"maker":              m.Signer.Hex(),
		"collection":         m.Collection.Hex(),
		"price":              m.Price.String(),
		"tokenId":            m.TokenID.String(),
		"amount":             m.Amount.String(),
		"strategy":           m.Strategy.Hex(),
		"currency":           m.Currency.Hex(),
		"makerNonce":         m.Nonce.String(),
		"startTime":          new(big.Int).SetUint64(m.StartTime).String(),
		"endTime":            new(big.Int).SetUint64(m.EndTime).String(),
		"minPercentageToAsk": new(big.Int).SetUint64(m.MinPercentageToAsk).String(),
		"params":             append([]byte{}, m.Params...),
		"nonce":              new(big.Int).SetUint64(nonce).String(),
	})
}

// Quote validates the maker ask without moving funds.
func (a *LooksRare) Quote(ctx downpayment.SettleContext) (downpayment.NormalizedOrder, error) {
	var p LooksRarePayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return downpayment.NormalizedOrder{}, ErrPayload
	}
	m := p.Maker
	if !m.IsOrderAsk {
		return downpayment.NormalizedOrder{}, ErrWrongSide
	}
	if m.Currency != ctx.Currency {
		return downpayment.NormalizedOrder{}, ErrCurrencyMismatch
	}
	if m.Price == nil || m.Price.Sign() <= 0 {
		return downpayment.NormalizedOrder{}, ErrPriceInvalid
	}

	digest, err := m.Digest(a.chainID, a.exchange.Address())
	if err != nil {
		return downpayment.NormalizedOrder{}, err
	}
	signer, err := eip712.RecoverSigner(digest, m.Signature)
	if err != nil || signer != m.Signer {
		return downpayment.NormalizedOrder{}, ErrMakerSignature
	}

	return downpayment.NormalizedOrder{
		Collection: m.Collection,
		TokenID:    m.TokenID,
		Currency:   m.Currency,
		Price:      m.Price,
		Seller:     m.Signer,
	}, nil
}

// Execute builds the taker bid and submits both sides to the exchange.
func (a *LooksRare) Execute(ctx downpayment.SettleContext, order downpayment.NormalizedOrder) error {
	var p LooksRarePayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return ErrPayload
	}
	if err := a.weth.Approve(ctx.Tr, ctx.Engine, a.exchange.Address(), order.Price); err != nil {
		return err
	}
	taker := protocol.LooksRareTakerOrder{
		IsOrderAsk:         false,
		Taker:              ctx.Engine,
		Price:              order.Price,
		TokenID:            order.TokenID,
		MinPercentageToAsk: p.Maker.MinPercentageToAsk,
	}
	return a.exchange.MatchAskWithTakerBid(ctx.Tr, ctx.Engine, taker, p.Maker)
}
