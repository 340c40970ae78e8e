package mock

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"downpay/core/ledger"
	"downpay/core/state"
	"downpay/crypto/eip712"
	"downpay/protocol"
)

var (
	ErrCurrencyNotAllowed = errors.New("mock: currency not allowed on venue")
	ErrMakerProxyMissing  = errors.New("mock: maker has no authorization proxy")
	ErrTakerProxyMissing  = errors.New("mock: taker has no authorization proxy")
)

// AuthorizationManager registers per-account proxies the exchange pulls
// funds and tokens through.
type AuthorizationManager struct {
	addr common.Address
}

// NewAuthorizationManager builds the manager.
func NewAuthorizationManager(addr common.Address) *AuthorizationManager {
	return &AuthorizationManager{addr: addr}
}

func (m *AuthorizationManager) Address() common.Address { return m.addr }

func (m *AuthorizationManager) proxyKey(owner common.Address) string {
	return fmt.Sprintf("mock:authmanager:%s:proxy:%s", m.addr.Hex(), owner.Hex())
}

// RegisterProxy derives and records the owner's proxy.
func (m *AuthorizationManager) RegisterProxy(tr *state.Transition, owner common.Address) (common.Address, error) {
	proxy := common.BytesToAddress(ethKeccakAddr(m.addr, owner))
	if err := tr.Put([]byte(m.proxyKey(owner)), proxy.Bytes()); err != nil {
		return common.Address{}, err
	}
	return proxy, nil
}

// ProxyOf returns the owner's registered proxy.
func (m *AuthorizationManager) ProxyOf(tr *state.Transition, owner common.Address) (common.Address, bool, error) {
	raw, ok, err := tr.Get([]byte(m.proxyKey(owner)))
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	return common.BytesToAddress(raw), true, nil
}

// BendExchange is the authorization-proxy maker/taker venue with a
// governed currency list.
type BendExchange struct {
	addr        common.Address
	chainID     uint64
	manager     *AuthorizationManager
	currencies  map[common.Address]*ledger.Token
	collections map[common.Address]*ledger.Collection
	now         uint64
}

// NewBendExchange builds the venue over the given ledgers.
func NewBendExchange(addr common.Address, chainID uint64, manager *AuthorizationManager, currencies map[common.Address]*ledger.Token, collections map[common.Address]*ledger.Collection) *BendExchange {
	return &BendExchange{
		addr:        addr,
		chainID:     chainID,
		manager:     manager,
		currencies:  currencies,
		collections: collections,
	}
}

func (x *BendExchange) Address() common.Address { return x.addr }

// AuthorizationManager returns the proxy registry.
func (x *BendExchange) AuthorizationManager() protocol.AuthorizationManager { return x.manager }

// SetNow fixes the clock used for order windows. Zero disables the check.
func (x *BendExchange) SetNow(now uint64) { x.now = now }

func (x *BendExchange) currencyKey(currency common.Address) string {
	return fmt.Sprintf("mock:bendx:%s:currency:%s", x.addr.Hex(), currency.Hex())
}

func (x *BendExchange) nonceKey(maker common.Address, nonce *big.Int) string {
	return fmt.Sprintf("mock:bendx:%s:nonce:%s:%s", x.addr.Hex(), maker.Hex(), nonce.String())
}

// AllowCurrency adds a settlement currency to the venue list.
func (x *BendExchange) AllowCurrency(tr *state.Transition, currency common.Address) error {
	return setFlag(tr, x.currencyKey(currency))
}

// IsCurrencyAllowed reports venue support for the currency.
func (x *BendExchange) IsCurrencyAllowed(tr *state.Transition, currency common.Address) (bool, error) {
	return flagSet(tr, x.currencyKey(currency))
}

// MatchAskWithTakerBid settles a signed maker ask against the caller's bid.
// The sale currency is pulled through the taker's authorization proxy.
func (x *BendExchange) MatchAskWithTakerBid(tr *state.Transition, caller common.Address, taker protocol.BendTakerOrder, maker protocol.BendMakerOrder) error {
	if !maker.IsOrderAsk || taker.IsOrderAsk {
		return ErrOrderSides
	}
	if taker.Price.Cmp(maker.Price) != 0 || taker.TokenID.Cmp(maker.TokenID) != 0 {
		return ErrOrderMismatch
	}
	if x.now != 0 && (x.now < maker.StartTime || x.now > maker.EndTime) {
		return ErrOrderExpired
	}
	allowed, err := x.IsCurrencyAllowed(tr, maker.Currency)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrCurrencyNotAllowed
	}
	currency, ok := x.currencies[maker.Currency]
	if !ok {
		return ErrCurrencyMismatch
	}
	collection, ok := x.collections[maker.Collection]
	if !ok {
		return ErrOrderMismatch
	}

	makerProxy, ok, err := x.manager.ProxyOf(tr, maker.Maker)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMakerProxyMissing
	}
	takerProxy, ok, err := x.manager.ProxyOf(tr, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTakerProxyMissing
	}

	used, err := flagSet(tr, x.nonceKey(maker.Maker, maker.Nonce))
	if err != nil {
		return err
	}
	if used {
		return ErrOrderNonceUsed
	}

	digest, err := maker.Digest(x.chainID, x.addr)
	if err != nil {
		return err
	}
	signer, err := eip712.RecoverSigner(digest, maker.Signature)
	if err != nil || signer != maker.Maker {
		return ErrOrderSignature
	}

	approved, err := collection.IsApprovedForAll(tr, maker.Maker, makerProxy)
	if err != nil {
		return err
	}
	if !approved {
		return ErrTransferManager
	}

	if err := setFlag(tr, x.nonceKey(maker.Maker, maker.Nonce)); err != nil {
		return err
	}
	if err := currency.TransferFrom(tr, takerProxy, caller, maker.Maker, maker.Price); err != nil {
		return err
	}
	return collection.Transfer(tr, makerProxy, maker.Maker, taker.Taker, maker.TokenID)
}
