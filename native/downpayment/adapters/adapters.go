// Package adapters implements one settlement adapter per supported
// marketplace family. Every adapter owns its buyer-intent typed-data domain,
// decodes its family's opaque payload, verifies the marketplace-side
// authorization scheme before any funds move, and executes the trade with the
// engine's funds.
package adapters

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"downpay/core/ledger"
	"downpay/core/state"
	"downpay/crypto/eip712"
)

var (
	ErrPayload           = errors.New("adapter: malformed payload")
	ErrWrongSide         = errors.New("adapter: order is not a maker ask")
	ErrCurrencyMismatch  = errors.New("adapter: order currency does not match settlement currency")
	ErrPriceInvalid      = errors.New("adapter: order price invalid")
	ErrMakerSignature    = errors.New("adapter: maker signature invalid")
	ErrTakerMismatch     = errors.New("adapter: run input taker is not the engine")
	ErrOperatorSignature = errors.New("adapter: operator countersignature invalid")
	ErrOfferMissing      = errors.New("adapter: punk not actually for sale")
	ErrOfferReserved     = errors.New("adapter: punk offer reserved for another buyer")
	ErrProxyMissing      = errors.New("adapter: authorization proxy not registered")
)

// Base carries what every adapter shares: its identity, its intent signing
// domain and the wrapped native token used as the default settlement
// currency.
type Base struct {
	addr          common.Address
	name          string
	domainName    string
	domainVersion string
	chainID       uint64
	weth          *ledger.WNative
}

func newBase(addr common.Address, name, domainName, domainVersion string, chainID uint64, weth *ledger.WNative) Base {
	return Base{
		addr:          addr,
		name:          name,
		domainName:    domainName,
		domainVersion: domainVersion,
		chainID:       chainID,
		weth:          weth,
	}
}

// Address identifies the adapter and anchors its intent domain.
func (b *Base) Address() common.Address { return b.addr }

// Name is the short family label used in logs and metrics.
func (b *Base) Name() string { return b.name }

// AcceptsCurrency accepts only the wrapped native token. Families with wider
// currency support override this.
func (b *Base) AcceptsCurrency(_ *state.Transition, currency common.Address) (bool, error) {
	return currency == b.weth.Address(), nil
}

func (b *Base) intentDomain() apitypes.TypedDataDomain {
	return eip712.Domain(b.domainName, b.domainVersion, b.chainID, b.addr)
}

func (b *Base) intentDigest(types map[string][]apitypes.Type, primary string, message apitypes.TypedDataMessage) (common.Hash, error) {
	return eip712.Digest(b.intentDomain(), eip712.Types(types), primary, message)
}
