package adapters

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"downpay/core/ledger"
	"downpay/native/downpayment"
	"downpay/protocol"
)

// PunksPayload is the opaque payload for the peer-to-peer punk market. There
// is no maker signature in this family; the on-market offer is the seller's
// commitment.
type PunksPayload struct {
	PunkIndex *big.Int `json:"punkIndex"`
	BuyPrice  *big.Int `json:"buyPrice"`
}

// Punks settles on-market punk offers: buy, wrap, hand the wrapped token to
// the engine as collateral.
type Punks struct {
	Base
	market  protocol.PunkMarket
	wrapper protocol.WrappedPunks
}

// NewPunks builds the adapter.
func NewPunks(addr common.Address, chainID uint64, weth *ledger.WNative, market protocol.PunkMarket, wrapper protocol.WrappedPunks) *Punks {
	return &Punks{
		Base:    newBase(addr, "punks", "Punk Downpayment Adapter", "1.0", chainID, weth),
		market:  market,
		wrapper: wrapper,
	}
}

var punksIntentTypes = map[string][]apitypes.Type{
	"Params": {
		{Name: "punkIndex", Type: "uint256"},
		{Name: "buyPrice", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
	},
}

// IntentDigest binds the punk index, the expected price and the buyer nonce
// into the adapter's intent domain.
func (a *Punks) IntentDigest(payload []byte, nonce uint64) (common.Hash, error) {
	var p PunksPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.PunkIndex == nil || p.BuyPrice == nil {
		return common.Hash{}, ErrPayload
	}
	return a.intentDigest(punksIntentTypes, "Params", apitypes.TypedDataMessage{
		"punkIndex": p.PunkIndex.String(),
		"buyPrice":  p.BuyPrice.String(),
		"nonce":     new(big.Int).SetUint64(nonce).String(),
	})
}

// Quote checks the live on-market offer against the signed expectation. The
// normalized order points at the wrapped collection the engine will hold.
func (a *Punks) Quote(ctx downpayment.SettleContext) (downpayment.NormalizedOrder, error) {
	var p PunksPayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil || p.PunkIndex == nil || p.BuyPrice == nil {
		return downpayment.NormalizedOrder{}, ErrPayload
	}
	if ctx.Currency != a.weth.Address() {
		return downpayment.NormalizedOrder{}, ErrCurrencyMismatch
	}
	offer, ok, err := a.market.PunkOffer(ctx.Tr, p.PunkIndex)
	if err != nil {
		return downpayment.NormalizedOrder{}, err
	}
	if !ok || !offer.IsForSale {
		return downpayment.NormalizedOrder{}, ErrOfferMissing
	}
	if (offer.OnlySellTo != common.Address{}) && offer.OnlySellTo != ctx.Engine {
		return downpayment.NormalizedOrder{}, ErrOfferReserved
	}
	if p.BuyPrice.Cmp(offer.MinValue) != 0 {
		return downpayment.NormalizedOrder{}, ErrPriceInvalid
	}

	return downpayment.NormalizedOrder{
		Collection: a.wrapper.Collection(),
		TokenID:    p.PunkIndex,
		Currency:   ctx.Currency,
		Price:      offer.MinValue,
		Seller:     offer.Seller,
	}, nil
}

// Execute unwraps the settlement funds to native, buys the punk, and lifts
// it into the wrapped collection through the engine's mint proxy.
func (a *Punks) Execute(ctx downpayment.SettleContext, order downpayment.NormalizedOrder) error {
	if err := a.weth.Withdraw(ctx.Tr, ctx.Engine, order.Price); err != nil {
		return err
	}
	if err := a.market.BuyPunk(ctx.Tr, ctx.Engine, order.TokenID, order.Price); err != nil {
		return err
	}
	proxy, ok, err := a.wrapper.ProxyOf(ctx.Tr, ctx.Engine)
	if err != nil {
		return err
	}
	if !ok {
		proxy, err = a.wrapper.RegisterProxy(ctx.Tr, ctx.Engine)
		if err != nil {
			return err
		}
	}
	if err := a.market.TransferPunk(ctx.Tr, ctx.Engine, proxy, order.TokenID); err != nil {
		return err
	}
	return a.wrapper.Mint(ctx.Tr, ctx.Engine, order.TokenID)
}
