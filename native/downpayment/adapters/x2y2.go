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

// X2Y2Payload is the opaque payload for the countersigned family: the full
// run input as produced off-platform, replayed verbatim.
type X2Y2Payload struct {
	Input protocol.X2Y2RunInput `json:"input"`
}

// X2Y2 settles operator-countersigned run inputs.
type X2Y2 struct {
	Base
	exchange protocol.X2Y2Exchange
}

// NewX2Y2 builds the adapter.
func NewX2Y2(addr common.Address, chainID uint64, weth *ledger.WNative, exchange protocol.X2Y2Exchange) *X2Y2 {
	return &X2Y2{
		Base:     newBase(addr, "x2y2", "X2Y2 Downpayment Adapter", "1.0", chainID, weth),
		exchange: exchange,
	}
}

var x2y2IntentSell = big.NewInt(protocol.X2Y2IntentSell)

var x2y2IntentTypes = map[string][]apitypes.Type{
	"Params": {
		{Name: "salt", Type: "uint256"},
		{Name: "maker", Type: "address"},
		{Name: "currency", Type: "address"},
		{Name: "collection", Type: "address"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "price", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
	},
}

func (a *X2Y2) firstDetail(p X2Y2Payload) (protocol.X2Y2Order, protocol.X2Y2SettleDetail, error) {
	in := p.Input
	if len(in.Details) == 0 || len(in.Orders) == 0 {
		return protocol.X2Y2Order{}, protocol.X2Y2SettleDetail{}, ErrPayload
	}
	detail := in.Details[0]
	if detail.OrderIdx >= uint64(len(in.Orders)) {
		return protocol.X2Y2Order{}, protocol.X2Y2SettleDetail{}, ErrPayload
	}
	order := in.Orders[detail.OrderIdx]
	if detail.ItemIdx >= uint64(len(order.Items)) {
		return protocol.X2Y2Order{}, protocol.X2Y2SettleDetail{}, ErrPayload
	}
	return order, detail, nil
}

// IntentDigest binds the settled item and the buyer nonce into the adapter's
// intent domain.
func (a *X2Y2) IntentDigest(payload []byte, nonce uint64) (common.Hash, error) {
	var p X2Y2Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		return common.Hash{}, ErrPayload
	}
	order, detail, err := a.firstDetail(p)
	if err != nil {
		return common.Hash{}, err
	}
	return a.intentDigest(x2y2IntentTypes, "Params", apitypes.TypedDataMessage{
		"salt":       order.Salt.String(),
		"maker":      order.User.Hex(),
		"currency":   order.Currency.Hex(),
		"collection": order.Collection.Hex(),
		"tokenId":    order.TokenID.String(),
		"price":      detail.Price.String(),
		"deadline":   new(big.Int).SetUint64(order.Deadline).String(),
		"nonce":      new(big.Int).SetUint64(nonce).String(),
	})
}

// Quote validates both signature layers, the maker's and the operator's,
// before any funds move.
func (a *X2Y2) Quote(ctx downpayment.SettleContext) (downpayment.NormalizedOrder, error) {
	var p X2Y2Payload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return downpayment.NormalizedOrder{}, ErrPayload
	}
	order, detail, err := a.firstDetail(p)
	if err != nil {
		return downpayment.NormalizedOrder{}, err
	}
	if p.Input.Shared.User != ctx.Engine {
		return downpayment.NormalizedOrder{}, ErrTakerMismatch
	}
	if order.Intent == nil || order.Intent.Cmp(x2y2IntentSell) != 0 {
		return downpayment.NormalizedOrder{}, ErrWrongSide
	}
	if detail.Op != protocol.X2Y2OpCompleteSellOffer {
		return downpayment.NormalizedOrder{}, ErrWrongSide
	}
	if order.Currency != ctx.Currency {
		return downpayment.NormalizedOrder{}, ErrCurrencyMismatch
	}
	if detail.Price == nil || detail.Price.Sign() <= 0 {
		return downpayment.NormalizedOrder{}, ErrPriceInvalid
	}

	runDigest, err := p.Input.Digest(a.chainID, a.exchange.Address())
	if err != nil {
		return downpayment.NormalizedOrder{}, err
	}
	operator, err := eip712.RecoverSigner(runDigest, p.Input.Signature)
	if err != nil || operator != a.exchange.Operator() {
		return downpayment.NormalizedOrder{}, ErrOperatorSignature
	}

	orderDigest, err := order.Digest(a.chainID, a.exchange.Address(), detail.ItemIdx)
	if err != nil {
		return downpayment.NormalizedOrder{}, err
	}
	maker, err := eip712.RecoverSigner(orderDigest, order.Signature)
	if err != nil || maker != order.User {
		return downpayment.NormalizedOrder{}, ErrMakerSignature
	}

	return downpayment.NormalizedOrder{
		Collection: order.Collection,
		TokenID:    order.TokenID,
		Currency:   order.Currency,
		Price:      detail.Price,
		Seller:     order.User,
	}, nil
}

// Execute replays the run input verbatim.
func (a *X2Y2) Execute(ctx downpayment.SettleContext, order downpayment.NormalizedOrder) error {
	var p X2Y2Payload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return ErrPayload
	}
	if err := a.weth.Approve(ctx.Tr, ctx.Engine, a.exchange.Address(), order.Price); err != nil {
		return err
	}
	return a.exchange.Run(ctx.Tr, ctx.Engine, p.Input)
}
