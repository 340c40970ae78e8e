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

// SeaportPayload is the opaque payload for the conduit-based family: the
// signed basic order, replayed verbatim.
type SeaportPayload struct {
	Order protocol.SeaportBasicOrder `json:"order"`
}

// Seaport settles one-sided basic orders. Two instances cover the two venue
// generations; the newer one additionally splits secondary fee recipients
// out of the consideration total.
type Seaport struct {
	Base
	exchange protocol.SeaportExchange
}

// NewSeaportV11 builds the adapter for the first venue generation.
func NewSeaportV11(addr common.Address, chainID uint64, weth *ledger.WNative, exchange protocol.SeaportExchange) *Seaport {
	return &Seaport{
		Base:     newBase(addr, "opensea", "Opensea Downpayment Adapter", "1.0", chainID, weth),
		exchange: exchange,
	}
}

// NewSeaportV15 builds the adapter for the second venue generation.
func NewSeaportV15(addr common.Address, chainID uint64, weth *ledger.WNative, exchange protocol.SeaportExchange) *Seaport {
	return &Seaport{
		Base:     newBase(addr, "seaport", "Seaport Downpayment Adapter", "1.0", chainID, weth),
		exchange: exchange,
	}
}

var seaportIntentTypes = map[string][]apitypes.Type{
	"Params": {
		{Name: "considerationToken", Type: "address"},
		{Name: "considerationAmount", Type: "uint256"},
		{Name: "offerer", Type: "address"},
		{Name: "zone", Type: "address"},
		{Name: "offerToken", Type: "address"},
		{Name: "offerIdentifier", Type: "uint256"},
		{Name: "startTime", Type: "uint256"},
		{Name: "endTime", Type: "uint256"},
		{Name: "zoneHash", Type: "bytes32"},
		{Name: "salt", Type: "uint256"},
		{Name: "totalPrice", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
	},
}

// IntentDigest binds the basic order fields, the full consideration total
// and the buyer nonce into the adapter's intent domain.
func (a *Seaport) IntentDigest(payload []byte, nonce uint64) (common.Hash, error) {
	var p SeaportPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return common.Hash{}, ErrPayload
	}
	o := p.Order
	if o.ConsiderationAmount == nil || o.OfferIdentifier == nil || o.Salt == nil {
		return common.Hash{}, ErrPayload
	}
	return a.intentDigest(seaportIntentTypes, "Params", apitypes.TypedDataMessage{
		"considerationToken":  o.ConsiderationToken.Hex(),
		"considerationAmount": o.ConsiderationAmount.String(),
		"offerer":             o.Offerer.Hex(),
		"zone":                o.Zone.Hex(),
		"offerToken":          o.OfferToken.Hex(),
		"offerIdentifier":     o.OfferIdentifier.String(),
		"startTime":           new(big.Int).SetUint64(o.StartTime).String(),
		"endTime":             new(big.Int).SetUint64(o.EndTime).String(),
		"zoneHash":            o.ZoneHash[:],
		"salt":                o.Salt.String(),
		"totalPrice":          o.TotalPrice().String(),
		"nonce":               new(big.Int).SetUint64(nonce).String(),
	})
}

// Quote validates the basic order without moving funds. The normalized price
// is the full consideration total, offerer leg plus every additional
// recipient leg.
func (a *Seaport) Quote(ctx downpayment.SettleContext) (downpayment.NormalizedOrder, error) {
	var p SeaportPayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return downpayment.NormalizedOrder{}, ErrPayload
	}
	o := p.Order
	if o.ConsiderationToken != ctx.Currency {
		return downpayment.NormalizedOrder{}, ErrCurrencyMismatch
	}
	if o.ConsiderationAmount == nil || o.ConsiderationAmount.Sign() <= 0 {
		return downpayment.NormalizedOrder{}, ErrPriceInvalid
	}
	for _, leg := range o.AdditionalRecipients {
		if leg.Amount == nil || leg.Amount.Sign() < 0 {
			return downpayment.NormalizedOrder{}, ErrPriceInvalid
		}
	}

	digest, err := o.Digest(a.exchange.Version(), a.chainID, a.exchange.Address())
	if err != nil {
		return downpayment.NormalizedOrder{}, err
	}
	signer, err := eip712.RecoverSigner(digest, o.Signature)
	if err != nil || signer != o.Offerer {
		return downpayment.NormalizedOrder{}, ErrMakerSignature
	}

	return downpayment.NormalizedOrder{
		Collection: o.OfferToken,
		TokenID:    o.OfferIdentifier,
		Currency:   o.ConsiderationToken,
		Price:      o.TotalPrice(),
		Seller:     o.Offerer,
	}, nil
}

// Execute approves the fulfiller conduit for the consideration total and
// fulfills the order.
func (a *Seaport) Execute(ctx downpayment.SettleContext, order downpayment.NormalizedOrder) error {
	var p SeaportPayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return ErrPayload
	}
	conduit, ok := a.exchange.ConduitFor(p.Order.FulfillerConduitKey)
	if !ok {
		return ErrPayload
	}
	if err := a.weth.Approve(ctx.Tr, ctx.Engine, conduit, order.Price); err != nil {
		return err
	}
	return a.exchange.FulfillBasicOrder(ctx.Tr, ctx.Engine, p.Order)
}
