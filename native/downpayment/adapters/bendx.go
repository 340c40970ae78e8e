package adapters

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"downpay/core/ledger"
	"downpay/core/state"
	"downpay/crypto/eip712"
	"downpay/native/downpayment"
	"downpay/protocol"
)

// BendExchangePayload is the opaque payload for the authorization-proxy
// family: the signed maker ask, replayed verbatim.
type BendExchangePayload struct {
	Maker protocol.BendMakerOrder `json:"maker"`
}

// BendExchange settles asks on the authorization-proxy venue. It is the only
// family that accepts governance-approved ERC-20 settlement currencies next
// to the wrapped native token.
type BendExchange struct {
	Base
	exchange   protocol.BendExchange
	currencies map[common.Address]*ledger.Token
}

// NewBendExchange builds the adapter. currencies maps every ERC-20 the
// adapter may settle in to its ledger; the wrapped native token is always
// accepted.
func NewBendExchange(addr common.Address, chainID uint64, weth *ledger.WNative, exchange protocol.BendExchange, currencies map[common.Address]*ledger.Token) *BendExchange {
	return &BendExchange{
		Base:       newBase(addr, "bendexchange", "Bend Exchange Downpayment Adapter", "1.0", chainID, weth),
		exchange:   exchange,
		currencies: currencies,
	}
}

// AcceptsCurrency widens the default: any currency the venue's governance
// list allows and the adapter has a ledger for.
func (a *BendExchange) AcceptsCurrency(tr *state.Transition, currency common.Address) (bool, error) {
	if currency == a.weth.Address() {
		return true, nil
	}
	if _, ok := a.currencies[currency]; !ok {
		return false, nil
	}
	return a.exchange.IsCurrencyAllowed(tr, currency)
}

func (a *BendExchange) currencyLedger(currency common.Address) (*ledger.Token, bool) {
	if currency == a.weth.Address() {
		return &a.weth.Token, true
	}
	t, ok := a.currencies[currency]
	return t, ok
}

var bendIntentTypes = map[string][]apitypes.Type{
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
		{Name: "interceptor", Type: "address"},
		{Name: "nonce", Type: "uint256"},
	},
}

// IntentDigest binds every maker order field plus the buyer nonce into the
// adapter's intent domain.
func (a *BendExchange) IntentDigest(payload []byte, nonce uint64) (common.Hash, error) {
	var p BendExchangePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return common.Hash{}, ErrPayload
	}
	m := p.Maker
	if m.Price == nil || m.TokenID == nil || m.Amount == nil || m.Nonce == nil {
		return common.Hash{}, ErrPayload
	}
	return a.intentDigest(bendIntentTypes, "Params", apitypes.TypedDataMessage{
		"isOrderAsk":  m.IsOrderAsk,
		"maker":       m.Maker.Hex(),
		"collection":  m.Collection.Hex(),
		"price":       m.Price.String(),
		"tokenId":     m.TokenID.String(),
		"amount":      m.Amount.String(),
		"strategy":    m.Strategy.Hex(),
		"currency":    m.Currency.Hex(),
		"makerNonce":  m.Nonce.String(),
		"startTime":   new(big.Int).SetUint64(m.StartTime).String(),
		"endTime":     new(big.Int).SetUint64(m.EndTime).String(),
		"interceptor": m.Interceptor.Hex(),
		"nonce":       new(big.Int).SetUint64(nonce).String(),
	})
}

// Quote validates the maker ask and the engine's proxy registration without
// moving funds.
func (a *BendExchange) Quote(ctx downpayment.SettleContext) (downpayment.NormalizedOrder, error) {
	var p BendExchangePayload
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
	if err != nil || signer != m.Maker {
		return downpayment.NormalizedOrder{}, ErrMakerSignature
	}

	if _, ok, err := a.exchange.AuthorizationManager().ProxyOf(ctx.Tr, ctx.Engine); err != nil {
		return downpayment.NormalizedOrder{}, err
	} else if !ok {
		return downpayment.NormalizedOrder{}, ErrProxyMissing
	}

	return downpayment.NormalizedOrder{
		Collection: m.Collection,
		TokenID:    m.TokenID,
		Currency:   m.Currency,
		Price:      m.Price,
		Seller:     m.Maker,
	}, nil
}

// Execute approves the engine's authorization proxy for the price and
// submits both sides to the exchange.
func (a *BendExchange) Execute(ctx downpayment.SettleContext, order downpayment.NormalizedOrder) error {
	var p BendExchangePayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return ErrPayload
	}
	token, ok := a.currencyLedger(order.Currency)
	if !ok {
		return ErrCurrencyMismatch
	}
	proxy, ok, err := a.exchange.AuthorizationManager().ProxyOf(ctx.Tr, ctx.Engine)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProxyMissing
	}
	if err := token.Approve(ctx.Tr, ctx.Engine, proxy, order.Price); err != nil {
		return err
	}
	taker := protocol.BendTakerOrder{
		IsOrderAsk: false,
		Taker:      ctx.Engine,
		Price:      order.Price,
		TokenID:    order.TokenID,
	}
	return a.exchange.MatchAskWithTakerBid(ctx.Tr, ctx.Engine, taker, p.Maker)
}
