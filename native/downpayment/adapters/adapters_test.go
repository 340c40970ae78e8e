package adapters_test

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"downpay/core/ledger"
	"downpay/core/state"
	"downpay/crypto/eip712"
	"downpay/native/downpayment"
	"downpay/native/downpayment/adapters"
	"downpay/protocol"
	"downpay/protocol/mock"
	"downpay/storage"
)

const chainID = 1

var (
	wethAddr   = common.HexToAddress("0xf1")
	usdtAddr   = common.HexToAddress("0xf2")
	engineAddr = common.HexToAddress("0xe1")
	apesAddr   = common.HexToAddress("0x1001")
)

type fixture struct {
	t     *testing.T
	db    storage.Database
	weth  *ledger.WNative
	usdt  *ledger.Token
	apes  *ledger.Collection
	maker common.Address
	sign  func(digest common.Hash) []byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &fixture{
		t:     t,
		db:    storage.NewMemDB(),
		weth:  ledger.NewWNative(wethAddr),
		usdt:  ledger.NewToken(usdtAddr),
		apes:  ledger.NewCollection(apesAddr),
		maker: ethcrypto.PubkeyToAddress(key.PublicKey),
		sign: func(digest common.Hash) []byte {
			sig, err := eip712.Sign(digest, key)
			if err != nil {
				t.Fatalf("sign: %v", err)
			}
			return sig
		},
	}
}

func (f *fixture) tr() *state.Transition { return state.NewTransition(f.db) }

func (f *fixture) ctx(currency common.Address, payload []byte) downpayment.SettleContext {
	return downpayment.SettleContext{
		Tr:       f.tr(),
		Engine:   engineAddr,
		Buyer:    common.HexToAddress("0xb1"),
		Currency: currency,
		Payload:  payload,
	}
}

func marshal(t *testing.T, v any) []byte {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return payload
}

func (f *fixture) looksAdapter() (*adapters.LooksRare, common.Address) {
	exchangeAddr := common.HexToAddress("0x3001")
	exchange := mock.NewLooksRareExchange(exchangeAddr, chainID, common.HexToAddress("0x3002"),
		map[common.Address]*ledger.Token{wethAddr: &f.weth.Token},
		map[common.Address]*ledger.Collection{apesAddr: f.apes})
	return adapters.NewLooksRare(common.HexToAddress("0xd01"), chainID, f.weth, exchange), exchangeAddr
}

func (f *fixture) looksOrder(exchange common.Address) protocol.LooksRareMakerOrder {
	f.t.Helper()
	order := protocol.LooksRareMakerOrder{
		IsOrderAsk: true,
		Signer:     f.maker,
		Collection: apesAddr,
		Price:      big.NewInt(1000),
		TokenID:    big.NewInt(7),
		Amount:     big.NewInt(1),
		Currency:   wethAddr,
		Nonce:      big.NewInt(1),
		StartTime:  1,
		EndTime:    2_000_000_000,
	}
	digest, err := order.Digest(chainID, exchange)
	if err != nil {
		f.t.Fatalf("digest: %v", err)
	}
	order.Signature = f.sign(digest)
	return order
}

func TestLooksRareQuoteRejections(t *testing.T) {
	f := newFixture(t)
	a, exchangeAddr := f.looksAdapter()

	t.Run("malformed payload", func(t *testing.T) {
		if _, err := a.Quote(f.ctx(wethAddr, []byte("{"))); !errors.Is(err, adapters.ErrPayload) {
			t.Fatalf("expected ErrPayload, got %v", err)
		}
		if _, err := a.IntentDigest([]byte("{"), 0); !errors.Is(err, adapters.ErrPayload) {
			t.Fatalf("expected ErrPayload from digest, got %v", err)
		}
	})

	t.Run("wrong side", func(t *testing.T) {
		order := f.looksOrder(exchangeAddr)
		order.IsOrderAsk = false
		payload := marshal(t, adapters.LooksRarePayload{Maker: order})
		if _, err := a.Quote(f.ctx(wethAddr, payload)); !errors.Is(err, adapters.ErrWrongSide) {
			t.Fatalf("expected ErrWrongSide, got %v", err)
		}
	})

	t.Run("currency mismatch", func(t *testing.T) {
		order := f.looksOrder(exchangeAddr)
		payload := marshal(t, adapters.LooksRarePayload{Maker: order})
		if _, err := a.Quote(f.ctx(usdtAddr, payload)); !errors.Is(err, adapters.ErrCurrencyMismatch) {
			t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
		}
	})

	t.Run("zero price", func(t *testing.T) {
		order := f.looksOrder(exchangeAddr)
		order.Price = big.NewInt(0)
		payload := marshal(t, adapters.LooksRarePayload{Maker: order})
		if _, err := a.Quote(f.ctx(wethAddr, payload)); !errors.Is(err, adapters.ErrPriceInvalid) {
			t.Fatalf("expected ErrPriceInvalid, got %v", err)
		}
	})

	t.Run("tampered order breaks the signature", func(t *testing.T) {
		order := f.looksOrder(exchangeAddr)
		order.Price = big.NewInt(1)
		payload := marshal(t, adapters.LooksRarePayload{Maker: order})
		if _, err := a.Quote(f.ctx(wethAddr, payload)); !errors.Is(err, adapters.ErrMakerSignature) {
			t.Fatalf("expected ErrMakerSignature, got %v", err)
		}
	})

	t.Run("valid ask normalizes", func(t *testing.T) {
		order := f.looksOrder(exchangeAddr)
		payload := marshal(t, adapters.LooksRarePayload{Maker: order})
		got, err := a.Quote(f.ctx(wethAddr, payload))
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		if got.Collection != apesAddr || got.TokenID.Cmp(order.TokenID) != 0 ||
			got.Price.Cmp(order.Price) != 0 || got.Seller != f.maker {
			t.Fatalf("normalized order = %+v", got)
		}
	})
}

func TestX2Y2QuoteTakerAndSideChecks(t *testing.T) {
	f := newFixture(t)
	operatorKey, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	exchangeAddr := common.HexToAddress("0x3005")
	exchange := mock.NewX2Y2Exchange(exchangeAddr, chainID, ethcrypto.PubkeyToAddress(operatorKey.PublicKey),
		map[common.Address]*ledger.Token{wethAddr: &f.weth.Token},
		map[common.Address]*ledger.Collection{apesAddr: f.apes})
	a := adapters.NewX2Y2(common.HexToAddress("0xd03"), chainID, f.weth, exchange)

	// Both signature layers are produced over the mutated fields, so every
	// rejection below is the adapter's own gate, not a digest mismatch.
	input := func(intent int64, op uint8, taker common.Address) protocol.X2Y2RunInput {
		f.t.Helper()
		price := big.NewInt(1000)
		order := protocol.X2Y2Order{
			Salt:       big.NewInt(11),
			User:       f.maker,
			Network:    big.NewInt(1),
			Intent:     big.NewInt(intent),
			Deadline:   2_000_000_000,
			Currency:   wethAddr,
			Items:      []protocol.X2Y2OrderItem{{Price: price}},
			Collection: apesAddr,
			TokenID:    big.NewInt(7),
		}
		orderDigest, err := order.Digest(chainID, exchangeAddr, 0)
		if err != nil {
			f.t.Fatalf("order digest: %v", err)
		}
		order.Signature = f.sign(orderDigest)
		in := protocol.X2Y2RunInput{
			Orders:  []protocol.X2Y2Order{order},
			Details: []protocol.X2Y2SettleDetail{{Op: op, Price: price}},
			Shared:  protocol.X2Y2SettleShared{Salt: big.NewInt(11), Deadline: 2_000_000_000, User: taker},
		}
		runDigest, err := in.Digest(chainID, exchangeAddr)
		if err != nil {
			f.t.Fatalf("run digest: %v", err)
		}
		in.Signature, err = eip712.Sign(runDigest, operatorKey)
		if err != nil {
			f.t.Fatalf("operator sign: %v", err)
		}
		return in
	}

	t.Run("taker must be the engine", func(t *testing.T) {
		in := input(protocol.X2Y2IntentSell, protocol.X2Y2OpCompleteSellOffer, common.HexToAddress("0x4005"))
		payload := marshal(t, adapters.X2Y2Payload{Input: in})
		if _, err := a.Quote(f.ctx(wethAddr, payload)); !errors.Is(err, adapters.ErrTakerMismatch) {
			t.Fatalf("expected ErrTakerMismatch, got %v", err)
		}
	})

	t.Run("buy intent is not fillable", func(t *testing.T) {
		in := input(3, protocol.X2Y2OpCompleteSellOffer, engineAddr)
		payload := marshal(t, adapters.X2Y2Payload{Input: in})
		if _, err := a.Quote(f.ctx(wethAddr, payload)); !errors.Is(err, adapters.ErrWrongSide) {
			t.Fatalf("expected ErrWrongSide, got %v", err)
		}
	})

	t.Run("non-sell op is not fillable", func(t *testing.T) {
		in := input(protocol.X2Y2IntentSell, 2, engineAddr)
		payload := marshal(t, adapters.X2Y2Payload{Input: in})
		if _, err := a.Quote(f.ctx(wethAddr, payload)); !errors.Is(err, adapters.ErrWrongSide) {
			t.Fatalf("expected ErrWrongSide, got %v", err)
		}
	})

	t.Run("sell listing quotes", func(t *testing.T) {
		in := input(protocol.X2Y2IntentSell, protocol.X2Y2OpCompleteSellOffer, engineAddr)
		payload := marshal(t, adapters.X2Y2Payload{Input: in})
		got, err := a.Quote(f.ctx(wethAddr, payload))
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		if got.Collection != apesAddr || got.Seller != f.maker || got.Price.Cmp(big.NewInt(1000)) != 0 {
			t.Fatalf("normalized order = %+v", got)
		}
	})
}

func TestIntentDigestBindsNonce(t *testing.T) {
	f := newFixture(t)
	a, exchangeAddr := f.looksAdapter()
	payload := marshal(t, adapters.LooksRarePayload{Maker: f.looksOrder(exchangeAddr)})

	d0, err := a.IntentDigest(payload, 0)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	d1, err := a.IntentDigest(payload, 1)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if d0 == d1 {
		t.Fatalf("digests for different nonces must differ")
	}
	again, err := a.IntentDigest(payload, 0)
	if err != nil || again != d0 {
		t.Fatalf("digest must be deterministic: %v", err)
	}
}

func TestIntentDomainsDifferPerFamily(t *testing.T) {
	f := newFixture(t)
	addr := common.HexToAddress("0xd0f")
	exchange := mock.NewSeaportExchange(common.HexToAddress("0x3003"), protocol.SeaportVersion11, chainID, nil,
		map[common.Address]*ledger.Token{wethAddr: &f.weth.Token},
		map[common.Address]*ledger.Collection{apesAddr: f.apes})

	v11 := adapters.NewSeaportV11(addr, chainID, f.weth, exchange)
	v15 := adapters.NewSeaportV15(addr, chainID, f.weth, exchange)

	order := protocol.SeaportBasicOrder{
		ConsiderationToken:  wethAddr,
		ConsiderationAmount: big.NewInt(1000),
		Offerer:             f.maker,
		OfferToken:          apesAddr,
		OfferIdentifier:     big.NewInt(7),
		Salt:                big.NewInt(42),
	}
	payload := marshal(t, adapters.SeaportPayload{Order: order})

	d11, err := v11.IntentDigest(payload, 0)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	d15, err := v15.IntentDigest(payload, 0)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if d11 == d15 {
		t.Fatalf("same payload must digest differently under different family domains")
	}
}

func TestSeaportQuoteRejectsZeroConsideration(t *testing.T) {
	f := newFixture(t)
	exchange := mock.NewSeaportExchange(common.HexToAddress("0x3003"), protocol.SeaportVersion11, chainID, nil,
		map[common.Address]*ledger.Token{wethAddr: &f.weth.Token},
		map[common.Address]*ledger.Collection{apesAddr: f.apes})
	a := adapters.NewSeaportV11(common.HexToAddress("0xd02"), chainID, f.weth, exchange)

	order := protocol.SeaportBasicOrder{
		ConsiderationToken:  wethAddr,
		ConsiderationAmount: big.NewInt(0),
		Offerer:             f.maker,
		OfferToken:          apesAddr,
		OfferIdentifier:     big.NewInt(7),
		Salt:                big.NewInt(42),
	}
	payload := marshal(t, adapters.SeaportPayload{Order: order})
	if _, err := a.Quote(f.ctx(wethAddr, payload)); !errors.Is(err, adapters.ErrPriceInvalid) {
		t.Fatalf("expected ErrPriceInvalid, got %v", err)
	}
}

func TestPunksQuoteOfferChecks(t *testing.T) {
	f := newFixture(t)
	market := mock.NewPunkMarket(common.HexToAddress("0x1003"))
	wpunk := ledger.NewCollection(common.HexToAddress("0x1002"))
	wrapper := mock.NewWrappedPunks(common.HexToAddress("0x1004"), market, wpunk)
	a := adapters.NewPunks(common.HexToAddress("0xd05"), chainID, f.weth, market, wrapper)

	punkIndex := big.NewInt(9)
	price := big.NewInt(5000)
	payload := marshal(t, adapters.PunksPayload{PunkIndex: punkIndex, BuyPrice: price})

	t.Run("only wrapped native settles", func(t *testing.T) {
		if _, err := a.Quote(f.ctx(usdtAddr, payload)); !errors.Is(err, adapters.ErrCurrencyMismatch) {
			t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
		}
	})

	t.Run("no live offer", func(t *testing.T) {
		if _, err := a.Quote(f.ctx(wethAddr, payload)); !errors.Is(err, adapters.ErrOfferMissing) {
			t.Fatalf("expected ErrOfferMissing, got %v", err)
		}
	})

	tr := state.NewTransition(f.db)
	if err := market.AssignPunk(tr, f.maker, punkIndex); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := market.OfferPunkForSale(tr, f.maker, punkIndex, price); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if err := tr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	t.Run("price must match the offer exactly", func(t *testing.T) {
		wrong := marshal(t, adapters.PunksPayload{PunkIndex: punkIndex, BuyPrice: big.NewInt(4999)})
		if _, err := a.Quote(f.ctx(wethAddr, wrong)); !errors.Is(err, adapters.ErrPriceInvalid) {
			t.Fatalf("expected ErrPriceInvalid, got %v", err)
		}
	})

	t.Run("live offer quotes the wrapped collection", func(t *testing.T) {
		got, err := a.Quote(f.ctx(wethAddr, payload))
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		if got.Collection != wrapper.Collection() || got.Seller != f.maker || got.Price.Cmp(price) != 0 {
			t.Fatalf("normalized order = %+v", got)
		}
	})
}

func TestBendQuoteRequiresEngineProxy(t *testing.T) {
	f := newFixture(t)
	manager := mock.NewAuthorizationManager(common.HexToAddress("0x3008"))
	exchangeAddr := common.HexToAddress("0x3007")
	exchange := mock.NewBendExchange(exchangeAddr, chainID, manager,
		map[common.Address]*ledger.Token{wethAddr: &f.weth.Token},
		map[common.Address]*ledger.Collection{apesAddr: f.apes})
	a := adapters.NewBendExchange(common.HexToAddress("0xd06"), chainID, f.weth, exchange, nil)

	order := protocol.BendMakerOrder{
		IsOrderAsk: true,
		Maker:      f.maker,
		Collection: apesAddr,
		Price:      big.NewInt(1000),
		TokenID:    big.NewInt(7),
		Amount:     big.NewInt(1),
		Currency:   wethAddr,
		Nonce:      big.NewInt(1),
		StartTime:  1,
		EndTime:    2_000_000_000,
	}
	digest, err := order.Digest(chainID, exchangeAddr)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	order.Signature = f.sign(digest)
	payload := marshal(t, adapters.BendExchangePayload{Maker: order})

	if _, err := a.Quote(f.ctx(wethAddr, payload)); !errors.Is(err, adapters.ErrProxyMissing) {
		t.Fatalf("expected ErrProxyMissing, got %v", err)
	}

	tr := state.NewTransition(f.db)
	if _, err := manager.RegisterProxy(tr, engineAddr); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := tr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := a.Quote(f.ctx(wethAddr, payload)); err != nil {
		t.Fatalf("quote with proxy: %v", err)
	}
}

func TestBendAcceptsCurrencyFollowsVenueList(t *testing.T) {
	f := newFixture(t)
	manager := mock.NewAuthorizationManager(common.HexToAddress("0x3008"))
	exchange := mock.NewBendExchange(common.HexToAddress("0x3007"), chainID, manager,
		map[common.Address]*ledger.Token{wethAddr: &f.weth.Token, usdtAddr: f.usdt},
		map[common.Address]*ledger.Collection{apesAddr: f.apes})
	a := adapters.NewBendExchange(common.HexToAddress("0xd06"), chainID, f.weth, exchange,
		map[common.Address]*ledger.Token{usdtAddr: f.usdt})

	if ok, err := a.AcceptsCurrency(f.tr(), wethAddr); err != nil || !ok {
		t.Fatalf("wrapped native must always settle: %v %v", ok, err)
	}
	if ok, err := a.AcceptsCurrency(f.tr(), usdtAddr); err != nil || ok {
		t.Fatalf("currency must stay off until the venue lists it: %v %v", ok, err)
	}

	tr := state.NewTransition(f.db)
	if err := exchange.AllowCurrency(tr, usdtAddr); err != nil {
		t.Fatalf("allow: %v", err)
	}
	if err := tr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if ok, err := a.AcceptsCurrency(f.tr(), usdtAddr); err != nil || !ok {
		t.Fatalf("listed currency must settle: %v %v", ok, err)
	}

	unknown := common.HexToAddress("0xf3")
	if ok, err := a.AcceptsCurrency(f.tr(), unknown); err != nil || ok {
		t.Fatalf("currency without a ledger must not settle: %v %v", ok, err)
	}
}
