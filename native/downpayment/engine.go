// Package downpayment settles flash-loan financed marketplace purchases: the
// engine borrows the bulk of the sale price, an adapter executes the trade on
// the target venue, the purchased token is locked as lending collateral on
// the buyer's behalf and the drawn debt repays the flash loan. Every call
// runs in a single state transition; any failure discards the overlay, so a
// settlement either happens completely or leaves no trace.
package downpayment

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"downpay/core/events"
	"downpay/core/ledger"
	"downpay/core/state"
	"downpay/crypto/eip712"
	nativecommon "downpay/native/common"
	"downpay/observability/metrics"
	"downpay/protocol"
	"downpay/storage"
)

const moduleName = "downpayment"

// Engine is the settlement orchestrator. It is the flash-loan receiver, the
// temporary custodian of the purchased token and the counterparty every
// venue sees.
type Engine struct {
	mu sync.Mutex

	db         storage.Database
	addr       common.Address
	governance common.Address
	chainID    uint64

	weth       *ledger.WNative
	currencies map[common.Address]*ledger.Token

	flashPool protocol.FlashLendPool
	lendPool  protocol.LendPool
	adapters  map[common.Address]Adapter

	emitter events.Emitter
	pauses  nativecommon.PauseView
	logger  *slog.Logger
	metrics *metrics.DownpaymentMetrics
	quota   nativecommon.Quota
	nowFn   func() uint64

	pending *Receipt
}

// NewEngine builds an engine settling at addr, governed by governance,
// signing-domain-bound to chainID and denominated in the wrapped native
// token.
func NewEngine(addr, governance common.Address, chainID uint64, weth *ledger.WNative) *Engine {
	return &Engine{
		addr:       addr,
		governance: governance,
		chainID:    chainID,
		weth:       weth,
		currencies: make(map[common.Address]*ledger.Token),
		adapters:   make(map[common.Address]Adapter),
		emitter:    events.NoopEmitter{},
		logger:     slog.Default(),
		nowFn:      func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// Address returns the engine's settlement address.
func (e *Engine) Address() common.Address { return e.addr }

// ChainID returns the signing-domain chain id.
func (e *Engine) ChainID() uint64 { return e.chainID }

// WNative returns the wrapped native token the engine settles in by default.
func (e *Engine) WNative() *ledger.WNative { return e.weth }

// SetState wires the backing key-value store.
func (e *Engine) SetState(db storage.Database) { e.db = db }

// SetPools wires the flash-lending pool and the collateral lend pool.
func (e *Engine) SetPools(flash protocol.FlashLendPool, lend protocol.LendPool) {
	e.flashPool = flash
	e.lendPool = lend
}

// SetEmitter wires the event sink. A nil emitter restores the noop default.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetPauses wires the external pause switch.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetLogger overrides the structured logger.
func (e *Engine) SetLogger(l *slog.Logger) {
	if l != nil {
		e.logger = l
	}
}

// SetMetrics wires the Prometheus registry.
func (e *Engine) SetMetrics(m *metrics.DownpaymentMetrics) { e.metrics = m }

// SetQuota enables the per-buyer usage quota.
func (e *Engine) SetQuota(q nativecommon.Quota) { e.quota = q }

// SetNowFunc overrides the clock used for quota epochs.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now != nil {
		e.nowFn = now
	}
}

// RegisterAdapter wires an adapter instance. Registration makes the adapter
// callable but not whitelisted; governance still has to add it.
func (e *Engine) RegisterAdapter(a Adapter) {
	e.adapters[a.Address()] = a
}

// RegisterCurrency wires the ledger for an ERC-20 settlement currency.
func (e *Engine) RegisterCurrency(t *ledger.Token) {
	e.currencies[t.Address()] = t
}

func (e *Engine) currency(addr common.Address) (*ledger.Token, error) {
	if addr == e.weth.Address() {
		return &e.weth.Token, nil
	}
	if t, ok := e.currencies[addr]; ok {
		return t, nil
	}
	return nil, ErrCurrencyNotAllowed
}

// Buy settles a purchase financed in the wrapped native token. buyer must
// have signed the adapter's intent digest over payload and its current nonce.
func (e *Engine) Buy(buyer, adapter common.Address, borrow *big.Int, payload, sig []byte) (*Receipt, error) {
	return e.settleCall(buyer, buyer, adapter, e.weth.Address(), borrow, payload, sig)
}

// BuyWithERC20 settles a purchase in an alternative ERC-20 currency. Only
// adapters whose venue allows the currency accept it.
func (e *Engine) BuyWithERC20(buyer, adapter, currencyAddr common.Address, borrow *big.Int, payload, sig []byte) (*Receipt, error) {
	return e.settleCall(buyer, buyer, adapter, currencyAddr, borrow, payload, sig)
}

// BuyOnBehalfOf settles like Buy but lands the collateral receipt and debt
// on beneficiary instead of the signing buyer.
func (e *Engine) BuyOnBehalfOf(buyer, beneficiary, adapter common.Address, borrow *big.Int, payload, sig []byte) (*Receipt, error) {
	return e.settleCall(buyer, beneficiary, adapter, e.weth.Address(), borrow, payload, sig)
}

func (e *Engine) settleCall(buyer, beneficiary, adapterAddr, currencyAddr common.Address, borrow *big.Int, payload, sig []byte) (*Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db == nil {
		return nil, ErrStateUnavailable
	}
	if e.flashPool == nil || e.lendPool == nil {
		return nil, ErrPoolUnavailable
	}
	if borrow == nil || borrow.Sign() < 0 {
		return nil, ErrInvalidAmount
	}

	tr := state.NewTransition(e.db)
	receipt, err := e.run(tr, buyer, beneficiary, adapterAddr, currencyAddr, borrow, payload, sig)
	if err != nil {
		e.metrics.ObserveAbort(abortReason(err))
		e.logger.Error("settlement aborted",
			"adapter", adapterAddr.Hex(),
			"buyer", buyer.Hex(),
			"error", err,
		)
		return nil, err
	}
	if err := tr.Commit(); err != nil {
		e.metrics.ObserveAbort("commit")
		return nil, fmt.Errorf("downpayment: commit settlement: %w", err)
	}

	e.emitter.Emit(events.Purchased{
		Adapter:      receipt.Adapter,
		Buyer:        receipt.Buyer,
		Beneficiary:  receipt.Beneficiary,
		Currency:     receipt.Currency,
		Collection:   receipt.Collection,
		TokenID:      receipt.TokenID,
		Price:        receipt.Price,
		Borrowed:     receipt.Borrowed,
		Premium:      receipt.Premium,
		Fee:          receipt.Fee,
		Contribution: receipt.Contribution,
	})
	adapterLabel := e.adapterLabel(adapterAddr)
	e.metrics.ObserveSettlement(adapterLabel)
	e.metrics.AddFeeVolume(adapterLabel, receipt.Fee)
	e.metrics.AddBorrowed(adapterLabel, receipt.Borrowed)
	e.logger.Info("settlement committed",
		"adapter", adapterAddr.Hex(),
		"buyer", buyer.Hex(),
		"collection", receipt.Collection.Hex(),
		"tokenId", receipt.TokenID.String(),
		"price", receipt.Price.String(),
		"borrowed", receipt.Borrowed.String(),
	)
	return receipt, nil
}

func (e *Engine) adapterLabel(addr common.Address) string {
	if a, ok := e.adapters[addr]; ok {
		return a.Name()
	}
	return addr.Hex()
}

// callParams travels through the flash pool back into ExecuteOperation.
type callParams struct {
	Adapter     common.Address `json:"adapter"`
	Buyer       common.Address `json:"buyer"`
	Beneficiary common.Address `json:"beneficiary"`
	Currency    common.Address `json:"currency"`
	Nonce       uint64         `json:"nonce"`
	Payload     []byte         `json:"payload"`
}

func (e *Engine) run(tr *state.Transition, buyer, beneficiary, adapterAddr, currencyAddr common.Address, borrow *big.Int, payload, sig []byte) (*Receipt, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	paused, err := e.readFlag(tr, []byte(keyPaused))
	if err != nil {
		return nil, err
	}
	if paused {
		return nil, nativecommon.ErrModulePaused
	}
	adapterPaused, err := e.readFlag(tr, adapterPausedKey(adapterAddr))
	if err != nil {
		return nil, err
	}
	if adapterPaused {
		return nil, nativecommon.ErrModulePaused
	}

	listed, err := e.isWhitelisted(tr, adapterAddr)
	if err != nil {
		return nil, err
	}
	if !listed {
		return nil, ErrAdapterNotWhitelisted
	}
	adapter, ok := e.adapters[adapterAddr]
	if !ok {
		return nil, ErrAdapterUnregistered
	}

	if _, err := e.currency(currencyAddr); err != nil {
		return nil, err
	}
	accepts, err := adapter.AcceptsCurrency(tr, currencyAddr)
	if err != nil {
		return nil, err
	}
	if !accepts {
		return nil, ErrCurrencyNotAllowed
	}
	if _, ok, err := e.feeCollector(tr); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrNoCollector
	}

	nonce, err := e.readNonce(tr, buyer)
	if err != nil {
		return nil, err
	}
	digest, err := adapter.IntentDigest(payload, nonce)
	if err != nil {
		return nil, err
	}
	signer, err := eip712.RecoverSigner(digest, sig)
	if err != nil {
		return nil, ErrBadSignature
	}
	if signer != buyer {
		return nil, ErrSignerNotBuyer
	}
	if err := e.writeNonce(tr, buyer, nonce+1); err != nil {
		return nil, err
	}

	if err := e.applyQuota(tr, buyer, borrow); err != nil {
		return nil, err
	}

	params, err := json.Marshal(callParams{
		Adapter:     adapterAddr,
		Buyer:       buyer,
		Beneficiary: beneficiary,
		Currency:    currencyAddr,
		Nonce:       nonce,
		Payload:     payload,
	})
	if err != nil {
		return nil, err
	}

	e.pending = nil
	if err := e.flashPool.FlashLoan(tr, e.addr, e, []common.Address{currencyAddr}, []*big.Int{borrow}, params); err != nil {
		return nil, err
	}
	if e.pending == nil {
		return nil, fmt.Errorf("downpayment: flash pool skipped the callback")
	}
	receipt := e.pending
	e.pending = nil
	receipt.Nonce = nonce
	return receipt, nil
}

func (e *Engine) applyQuota(tr *state.Transition, buyer common.Address, borrow *big.Int) error {
	if !e.quota.Enabled() {
		return nil
	}
	epochSeconds := uint64(e.quota.EpochSeconds)
	if epochSeconds == 0 {
		epochSeconds = 3600
	}
	epoch := e.nowFn() / epochSeconds

	var prev nativecommon.QuotaNow
	raw, ok, err := tr.Get(quotaKey(buyer))
	if err != nil {
		return err
	}
	if ok {
		if err := json.Unmarshal(raw, &prev); err != nil {
			return fmt.Errorf("downpayment: corrupt quota record: %w", err)
		}
	}
	next, err := nativecommon.CheckQuota(e.quota, epoch, prev, borrow)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(next)
	if err != nil {
		return err
	}
	return tr.Put(quotaKey(buyer), encoded)
}

// ExecuteOperation is the flash-loan callback. Only the configured pool may
// invoke it, only for loans the engine itself initiated.
func (e *Engine) ExecuteOperation(tr *state.Transition, caller common.Address, assets []common.Address, amounts, premiums []*big.Int, initiator common.Address, params []byte) error {
	if e.flashPool == nil || caller != e.flashPool.Address() {
		return ErrCallerNotPool
	}
	if initiator != e.addr {
		return ErrInitiatorNotSelf
	}
	if len(assets) != 1 || len(amounts) != 1 || len(premiums) != 1 {
		return ErrMultiAsset
	}

	var cp callParams
	if err := json.Unmarshal(params, &cp); err != nil {
		return fmt.Errorf("downpayment: decode flashloan params: %w", err)
	}
	if assets[0] != cp.Currency {
		return ErrWrongAsset
	}
	adapter, ok := e.adapters[cp.Adapter]
	if !ok {
		return ErrAdapterUnregistered
	}
	token, err := e.currency(cp.Currency)
	if err != nil {
		return err
	}

	borrow, premium := amounts[0], premiums[0]
	ctx := SettleContext{
		Tr:       tr,
		Engine:   e.addr,
		Buyer:    cp.Buyer,
		Currency: cp.Currency,
		Payload:  cp.Payload,
	}

	order, err := adapter.Quote(ctx)
	if err != nil {
		return err
	}
	if order.Currency != cp.Currency {
		return ErrCurrencyNotAllowed
	}

	feeBps, err := e.adapterFee(tr, cp.Adapter)
	if err != nil {
		return err
	}
	fee := ProtocolFee(order.Price, feeBps)
	contribution := Contribution(order.Price, premium, fee, borrow)
	if contribution.Sign() < 0 {
		return ErrOverBorrow
	}

	// Buyer funds come in before any venue interaction.
	if contribution.Sign() > 0 {
		if err := token.TransferFrom(tr, e.addr, cp.Buyer, e.addr, contribution); err != nil {
			if errors.Is(err, ledger.ErrInsufficientAllowance) || errors.Is(err, ledger.ErrInsufficientBalance) {
				return ErrInsufficientAllowance
			}
			return err
		}
	}

	// The debt side must be delegated before the trade runs, otherwise the
	// whole settlement would unwind after the venue already executed.
	if borrow.Sign() > 0 {
		allowance, err := e.lendPool.BorrowAllowance(tr, cp.Beneficiary, e.addr, cp.Currency)
		if err != nil {
			return err
		}
		if allowance.Cmp(borrow) < 0 {
			return ErrInsufficientDelegation
		}
	}

	if err := adapter.Execute(ctx, order); err != nil {
		return err
	}

	if err := e.lendPool.DepositNFT(tr, e.addr, order.Collection, order.TokenID, cp.Beneficiary); err != nil {
		return err
	}
	if borrow.Sign() > 0 {
		if err := e.lendPool.BorrowOnBehalf(tr, e.addr, cp.Currency, borrow, order.Collection, order.TokenID, cp.Beneficiary, e.addr); err != nil {
			return err
		}
	}

	collector, _, err := e.feeCollector(tr)
	if err != nil {
		return err
	}
	if fee.Sign() > 0 {
		if err := token.Transfer(tr, e.addr, collector, fee); err != nil {
			return err
		}
	}

	owed := new(big.Int).Add(borrow, premium)
	if err := token.Approve(tr, e.addr, e.flashPool.Address(), owed); err != nil {
		return err
	}

	e.pending = &Receipt{
		Adapter:      cp.Adapter,
		Buyer:        cp.Buyer,
		Beneficiary:  cp.Beneficiary,
		Currency:     cp.Currency,
		Collection:   order.Collection,
		TokenID:      order.TokenID,
		Price:        order.Price,
		Borrowed:     borrow,
		Premium:      premium,
		Fee:          fee,
		Contribution: contribution,
	}
	return nil
}

func abortReason(err error) string {
	switch {
	case errors.Is(err, nativecommon.ErrModulePaused):
		return "paused"
	case errors.Is(err, ErrAdapterNotWhitelisted), errors.Is(err, ErrAdapterUnregistered):
		return "not_whitelisted"
	case errors.Is(err, ErrBadSignature), errors.Is(err, ErrSignerNotBuyer):
		return "authorization"
	case errors.Is(err, ErrCurrencyNotAllowed), errors.Is(err, ErrWrongAsset):
		return "currency"
	case errors.Is(err, ErrOverBorrow):
		return "over_borrow"
	case errors.Is(err, ErrInsufficientAllowance):
		return "allowance"
	case errors.Is(err, ErrInsufficientDelegation):
		return "delegation"
	case errors.Is(err, ErrCallerNotPool), errors.Is(err, ErrInitiatorNotSelf), errors.Is(err, ErrMultiAsset):
		return "callback"
	case errors.Is(err, nativecommon.ErrQuotaSettlementsExceeded), errors.Is(err, nativecommon.ErrQuotaBorrowCapExceeded):
		return "quota"
	default:
		return "trade"
	}
}
