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
	ErrOrderSides       = errors.New("mock: need a maker ask and a taker bid")
	ErrOrderMismatch    = errors.New("mock: taker does not match maker")
	ErrOrderSignature   = errors.New("mock: maker signature invalid")
	ErrOrderNonceUsed   = errors.New("mock: maker nonce executed or cancelled")
	ErrOrderExpired     = errors.New("mock: order outside its time window")
	ErrTransferManager  = errors.New("mock: maker has not approved the transfer manager")
	ErrCurrencyMismatch = errors.New("mock: currency not accepted")
)

// LooksRareExchange is the legacy maker/taker venue. Sale currency is pulled
// from the caller; the token moves through the maker's transfer-manager
// approval.
type LooksRareExchange struct {
	addr            common.Address
	chainID         uint64
	transferManager common.Address
	currencies      map[common.Address]*ledger.Token
	collections     map[common.Address]*ledger.Collection
	now             uint64
}

// NewLooksRareExchange builds the venue over the given ledgers.
func NewLooksRareExchange(addr common.Address, chainID uint64, transferManager common.Address, currencies map[common.Address]*ledger.Token, collections map[common.Address]*ledger.Collection) *LooksRareExchange {
	return &LooksRareExchange{
		addr:            addr,
		chainID:         chainID,
		transferManager: transferManager,
		currencies:      currencies,
		collections:     collections,
	}
}

func (x *LooksRareExchange) Address() common.Address { return x.addr }

// TransferManager returns the operator address makers approve.
func (x *LooksRareExchange) TransferManager() common.Address { return x.transferManager }

// SetNow fixes the clock used for order windows. Zero disables the check.
func (x *LooksRareExchange) SetNow(now uint64) { x.now = now }

func (x *LooksRareExchange) nonceKey(signer common.Address, nonce *big.Int) string {
	return fmt.Sprintf("mock:looksrare:%s:nonce:%s:%s", x.addr.Hex(), signer.Hex(), nonce.String())
}

// IsUserOrderNonceExecutedOrCancelled reports maker nonce consumption.
func (x *LooksRareExchange) IsUserOrderNonceExecutedOrCancelled(tr *state.Transition, signer common.Address, nonce *big.Int) (bool, error) {
	return flagSet(tr, x.nonceKey(signer, nonce))
}

// MatchAskWithTakerBid settles a signed maker ask against the caller's bid.
func (x *LooksRareExchange) MatchAskWithTakerBid(tr *state.Transition, caller common.Address, taker protocol.LooksRareTakerOrder, maker protocol.LooksRareMakerOrder) error {
	if !maker.IsOrderAsk || taker.IsOrderAsk {
		return ErrOrderSides
	}
	if taker.Price.Cmp(maker.Price) != 0 || taker.TokenID.Cmp(maker.TokenID) != 0 {
		return ErrOrderMismatch
	}
	if x.now != 0 && (x.now < maker.StartTime || x.now > maker.EndTime) {
		return ErrOrderExpired
	}
	currency, ok := x.currencies[maker.Currency]
	if !ok {
		return ErrCurrencyMismatch
	}
	collection, ok := x.collections[maker.Collection]
	if !ok {
		return ErrOrderMismatch
	}

	used, err := x.IsUserOrderNonceExecutedOrCancelled(tr, maker.Signer, maker.Nonce)
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
	if err != nil || signer != maker.Signer {
		return ErrOrderSignature
	}

	approved, err := collection.IsApprovedForAll(tr, maker.Signer, x.transferManager)
	if err != nil {
		return err
	}
	if !approved {
		return ErrTransferManager
	}

	if err := setFlag(tr, x.nonceKey(maker.Signer, maker.Nonce)); err != nil {
		return err
	}
	if err := currency.TransferFrom(tr, x.addr, caller, maker.Signer, maker.Price); err != nil {
		return err
	}
	return collection.Transfer(tr, x.transferManager, maker.Signer, taker.Taker, maker.TokenID)
}
