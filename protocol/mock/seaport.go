package mock

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"downpay/core/ledger"
	"downpay/core/state"
	"downpay/crypto/eip712"
	"downpay/protocol"
)

var (
	ErrConduitUnknown = errors.New("mock: no conduit for key")
	ErrOrderFilled    = errors.New("mock: order already filled")
)

// SeaportExchange fulfills conduit-routed basic orders. Two instances with
// different versions model the two venue generations.
type SeaportExchange struct {
	addr        common.Address
	version     string
	chainID     uint64
	conduits    map[common.Hash]common.Address
	currencies  map[common.Address]*ledger.Token
	collections map[common.Address]*ledger.Collection
	now         uint64
}

// NewSeaportExchange builds the venue. conduits maps conduit keys to the
// operator address pulls are routed through.
func NewSeaportExchange(addr common.Address, version string, chainID uint64, conduits map[common.Hash]common.Address, currencies map[common.Address]*ledger.Token, collections map[common.Address]*ledger.Collection) *SeaportExchange {
	return &SeaportExchange{
		addr:        addr,
		version:     version,
		chainID:     chainID,
		conduits:    conduits,
		currencies:  currencies,
		collections: collections,
	}
}

func (x *SeaportExchange) Address() common.Address { return x.addr }

func (x *SeaportExchange) Version() string { return x.version }

// SetNow fixes the clock used for order windows. Zero disables the check.
func (x *SeaportExchange) SetNow(now uint64) { x.now = now }

// ConduitFor resolves a conduit key to its operator address.
func (x *SeaportExchange) ConduitFor(key common.Hash) (common.Address, bool) {
	addr, ok := x.conduits[key]
	return addr, ok
}

func (x *SeaportExchange) filledKey(digest common.Hash) string {
	return fmt.Sprintf("mock:seaport:%s:filled:%s", x.addr.Hex(), digest.Hex())
}

// FulfillBasicOrder settles a signed ask. The caller pays the offerer leg and
// every additional recipient leg through its fulfiller conduit and receives
// the offered token.
func (x *SeaportExchange) FulfillBasicOrder(tr *state.Transition, caller common.Address, order protocol.SeaportBasicOrder) error {
	if x.now != 0 && (x.now < order.StartTime || x.now > order.EndTime) {
		return ErrOrderExpired
	}
	currency, ok := x.currencies[order.ConsiderationToken]
	if !ok {
		return ErrCurrencyMismatch
	}
	collection, ok := x.collections[order.OfferToken]
	if !ok {
		return ErrOrderMismatch
	}
	fulfillerConduit, ok := x.conduits[order.FulfillerConduitKey]
	if !ok {
		return ErrConduitUnknown
	}
	offererConduit, ok := x.conduits[order.OffererConduitKey]
	if !ok {
		return ErrConduitUnknown
	}

	digest, err := order.Digest(x.version, x.chainID, x.addr)
	if err != nil {
		return err
	}
	signer, err := eip712.RecoverSigner(digest, order.Signature)
	if err != nil || signer != order.Offerer {
		return ErrOrderSignature
	}
	filled, err := flagSet(tr, x.filledKey(digest))
	if err != nil {
		return err
	}
	if filled {
		return ErrOrderFilled
	}

	approved, err := collection.IsApprovedForAll(tr, order.Offerer, offererConduit)
	if err != nil {
		return err
	}
	if !approved {
		return ErrTransferManager
	}

	if err := setFlag(tr, x.filledKey(digest)); err != nil {
		return err
	}
	if err := currency.TransferFrom(tr, fulfillerConduit, caller, order.Offerer, order.ConsiderationAmount); err != nil {
		return err
	}
	for _, leg := range order.AdditionalRecipients {
		if err := currency.TransferFrom(tr, fulfillerConduit, caller, leg.Recipient, leg.Amount); err != nil {
			return err
		}
	}
	return collection.Transfer(tr, offererConduit, order.Offerer, caller, order.OfferIdentifier)
}
