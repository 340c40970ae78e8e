package mock

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"downpay/core/ledger"
	"downpay/core/state"
	"downpay/protocol"
)

var (
	ErrPunkNotOwned    = errors.New("mock: caller does not own punk")
	ErrPunkNotForSale  = errors.New("mock: punk not for sale")
	ErrPunkReserved    = errors.New("mock: offer reserved for another buyer")
	ErrPunkUnderpaid   = errors.New("mock: payment below offer minimum")
	ErrProxyMissing    = errors.New("mock: no registered proxy")
	ErrPunkNotInProxy  = errors.New("mock: punk not held by proxy")
	ErrWrapperNotOwned = errors.New("mock: wrapped token not held by caller")
)

type punkOfferRecord struct {
	PunkIndex  string         `json:"punkIndex"`
	Seller     common.Address `json:"seller"`
	MinValue   string         `json:"minValue"`
	OnlySellTo common.Address `json:"onlySellTo"`
}

// PunkMarket is the native-currency peer-to-peer market. Ownership lives in
// the market itself rather than a collection ledger.
type PunkMarket struct {
	addr common.Address
}

// NewPunkMarket builds the market.
func NewPunkMarket(addr common.Address) *PunkMarket {
	return &PunkMarket{addr: addr}
}

func (m *PunkMarket) Address() common.Address { return m.addr }

func (m *PunkMarket) ownerKey(punkIndex *big.Int) string {
	return fmt.Sprintf("mock:punks:%s:owner:%s", m.addr.Hex(), punkIndex.String())
}

func (m *PunkMarket) offerKey(punkIndex *big.Int) string {
	return fmt.Sprintf("mock:punks:%s:offer:%s", m.addr.Hex(), punkIndex.String())
}

// AssignPunk seeds initial ownership.
func (m *PunkMarket) AssignPunk(tr *state.Transition, to common.Address, punkIndex *big.Int) error {
	return tr.Put([]byte(m.ownerKey(punkIndex)), to.Bytes())
}

// PunkOwner returns the current holder.
func (m *PunkMarket) PunkOwner(tr *state.Transition, punkIndex *big.Int) (common.Address, bool, error) {
	raw, ok, err := tr.Get([]byte(m.ownerKey(punkIndex)))
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	return common.BytesToAddress(raw), true, nil
}

// OfferPunkForSale lists a punk at minPrice for any buyer.
func (m *PunkMarket) OfferPunkForSale(tr *state.Transition, caller common.Address, punkIndex, minPrice *big.Int) error {
	owner, ok, err := m.PunkOwner(tr, punkIndex)
	if err != nil {
		return err
	}
	if !ok || owner != caller {
		return ErrPunkNotOwned
	}
	return storeJSON(tr, m.offerKey(punkIndex), punkOfferRecord{
		PunkIndex: punkIndex.String(),
		Seller:    caller,
		MinValue:  minPrice.String(),
	})
}

// OfferPunkForSaleTo lists a punk reserved for a single buyer.
func (m *PunkMarket) OfferPunkForSaleTo(tr *state.Transition, caller common.Address, punkIndex, minPrice *big.Int, onlySellTo common.Address) error {
	owner, ok, err := m.PunkOwner(tr, punkIndex)
	if err != nil {
		return err
	}
	if !ok || owner != caller {
		return ErrPunkNotOwned
	}
	return storeJSON(tr, m.offerKey(punkIndex), punkOfferRecord{
		PunkIndex:  punkIndex.String(),
		Seller:     caller,
		MinValue:   minPrice.String(),
		OnlySellTo: onlySellTo,
	})
}

// PunkOffer returns the live listing, if any.
func (m *PunkMarket) PunkOffer(tr *state.Transition, punkIndex *big.Int) (protocol.PunkOffer, bool, error) {
	var rec punkOfferRecord
	ok, err := loadJSON(tr, m.offerKey(punkIndex), &rec)
	if err != nil || !ok {
		return protocol.PunkOffer{}, false, err
	}
	idx, _ := new(big.Int).SetString(rec.PunkIndex, 10)
	minValue, _ := new(big.Int).SetString(rec.MinValue, 10)
	return protocol.PunkOffer{
		IsForSale:  true,
		PunkIndex:  idx,
		Seller:     rec.Seller,
		MinValue:   minValue,
		OnlySellTo: rec.OnlySellTo,
	}, true, nil
}

// BuyPunk pays the listing from the caller's native balance.
func (m *PunkMarket) BuyPunk(tr *state.Transition, caller common.Address, punkIndex, payment *big.Int) error {
	offer, ok, err := m.PunkOffer(tr, punkIndex)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPunkNotForSale
	}
	if (offer.OnlySellTo != common.Address{}) && offer.OnlySellTo != caller {
		return ErrPunkReserved
	}
	if payment.Cmp(offer.MinValue) < 0 {
		return ErrPunkUnderpaid
	}
	if err := ledger.NativeTransfer(tr, caller, offer.Seller, payment); err != nil {
		return err
	}
	if err := tr.Delete([]byte(m.offerKey(punkIndex))); err != nil {
		return err
	}
	return tr.Put([]byte(m.ownerKey(punkIndex)), caller.Bytes())
}

// TransferPunk moves a punk the caller owns.
func (m *PunkMarket) TransferPunk(tr *state.Transition, caller, to common.Address, punkIndex *big.Int) error {
	owner, ok, err := m.PunkOwner(tr, punkIndex)
	if err != nil {
		return err
	}
	if !ok || owner != caller {
		return ErrPunkNotOwned
	}
	if err := tr.Delete([]byte(m.offerKey(punkIndex))); err != nil {
		return err
	}
	return tr.Put([]byte(m.ownerKey(punkIndex)), to.Bytes())
}

// WrappedPunks lifts punks into a collection through per-user mint proxies.
type WrappedPunks struct {
	addr       common.Address
	market     *PunkMarket
	collection *ledger.Collection
}

// NewWrappedPunks builds the wrapper over the market. collection is the
// standard ledger wrapped tokens are minted into.
func NewWrappedPunks(addr common.Address, market *PunkMarket, collection *ledger.Collection) *WrappedPunks {
	return &WrappedPunks{addr: addr, market: market, collection: collection}
}

func (w *WrappedPunks) Address() common.Address { return w.addr }

// Collection returns the wrapped collection address.
func (w *WrappedPunks) Collection() common.Address { return w.collection.Address() }

func (w *WrappedPunks) proxyKey(owner common.Address) string {
	return fmt.Sprintf("mock:wpunks:%s:proxy:%s", w.addr.Hex(), owner.Hex())
}

// RegisterProxy derives and records the caller's mint proxy.
func (w *WrappedPunks) RegisterProxy(tr *state.Transition, caller common.Address) (common.Address, error) {
	proxy := common.BytesToAddress(ethKeccakAddr(w.addr, caller))
	if err := tr.Put([]byte(w.proxyKey(caller)), proxy.Bytes()); err != nil {
		return common.Address{}, err
	}
	return proxy, nil
}

// ProxyOf returns the caller's registered mint proxy.
func (w *WrappedPunks) ProxyOf(tr *state.Transition, owner common.Address) (common.Address, bool, error) {
	raw, ok, err := tr.Get([]byte(w.proxyKey(owner)))
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	return common.BytesToAddress(raw), true, nil
}

// Mint wraps a punk held by the caller's proxy into a collection token.
func (w *WrappedPunks) Mint(tr *state.Transition, caller common.Address, punkIndex *big.Int) error {
	proxy, ok, err := w.ProxyOf(tr, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProxyMissing
	}
	owner, ok, err := w.market.PunkOwner(tr, punkIndex)
	if err != nil {
		return err
	}
	if !ok || owner != proxy {
		return ErrPunkNotInProxy
	}
	if err := tr.Put([]byte(w.market.ownerKey(punkIndex)), w.addr.Bytes()); err != nil {
		return err
	}
	return w.collection.Mint(tr, caller, punkIndex)
}

// Burn unwraps a token the caller holds back into a raw punk.
func (w *WrappedPunks) Burn(tr *state.Transition, caller common.Address, punkIndex *big.Int) error {
	owner, ok, err := w.collection.OwnerOf(tr, punkIndex)
	if err != nil {
		return err
	}
	if !ok || owner != caller {
		return ErrWrapperNotOwned
	}
	if err := w.collection.Transfer(tr, caller, caller, w.addr, punkIndex); err != nil {
		return err
	}
	return tr.Put([]byte(w.market.ownerKey(punkIndex)), caller.Bytes())
}
