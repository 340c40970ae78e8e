package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"downpay/core/types"
)

const (
	// TypePurchased marks a committed flash-loan settlement.
	TypePurchased = "downpayment.purchased"
	// TypeAdapterAdded marks a marketplace adapter joining the whitelist.
	TypeAdapterAdded = "downpayment.adapter_added"
	// TypeAdapterRemoved marks a marketplace adapter leaving the whitelist.
	TypeAdapterRemoved = "downpayment.adapter_removed"
	// TypeFeeUpdated marks a per-adapter fee change.
	TypeFeeUpdated = "downpayment.fee_updated"
	// TypeCollectorUpdated marks a fee collector rotation.
	TypeCollectorUpdated = "downpayment.collector_updated"
	// TypePaused and TypeUnpaused track the engine pause switch.
	TypePaused   = "downpayment.paused"
	TypeUnpaused = "downpayment.unpaused"
)

// Purchased records the outcome of a committed settlement for indexers.
type Purchased struct {
	Adapter      common.Address
	Buyer        common.Address
	Beneficiary  common.Address
	Currency     common.Address
	Collection   common.Address
	TokenID      *big.Int
	Price        *big.Int
	Borrowed     *big.Int
	Premium      *big.Int
	Fee          *big.Int
	Contribution *big.Int
}

// EventType satisfies the events.Event interface.
func (Purchased) EventType() string { return TypePurchased }

// Event converts the structured payload into a broadcastable event.
func (e Purchased) Event() *types.Event {
	attrs := map[string]string{
		"adapter":     e.Adapter.Hex(),
		"buyer":       e.Buyer.Hex(),
		"beneficiary": e.Beneficiary.Hex(),
		"currency":    e.Currency.Hex(),
		"collection":  e.Collection.Hex(),
	}
	putBig := func(key string, v *big.Int) {
		if v != nil {
			attrs[key] = v.String()
		}
	}
	putBig("tokenId", e.TokenID)
	putBig("price", e.Price)
	putBig("borrowed", e.Borrowed)
	putBig("premium", e.Premium)
	putBig("fee", e.Fee)
	putBig("contribution", e.Contribution)
	return &types.Event{Type: TypePurchased, Attributes: attrs}
}

// AdapterAdded is emitted when governance whitelists an adapter.
type AdapterAdded struct {
	Adapter common.Address
}

func (AdapterAdded) EventType() string { return TypeAdapterAdded }

// AdapterRemoved is emitted when governance delists an adapter.
type AdapterRemoved struct {
	Adapter common.Address
}

func (AdapterRemoved) EventType() string { return TypeAdapterRemoved }

// FeeUpdated is emitted when governance changes an adapter fee.
type FeeUpdated struct {
	Adapter common.Address
	FeeBps  uint64
}

func (FeeUpdated) EventType() string { return TypeFeeUpdated }

// Event converts the fee change into a broadcastable event.
func (e FeeUpdated) Event() *types.Event {
	return &types.Event{Type: TypeFeeUpdated, Attributes: map[string]string{
		"adapter": e.Adapter.Hex(),
		"feeBps":  strconv.FormatUint(e.FeeBps, 10),
	}}
}

// CollectorUpdated is emitted when governance rotates the fee collector.
type CollectorUpdated struct {
	Collector common.Address
}

func (CollectorUpdated) EventType() string { return TypeCollectorUpdated }

// Paused is emitted when governance halts settlements.
type Paused struct{}

func (Paused) EventType() string { return TypePaused }

// Unpaused is emitted when governance resumes settlements.
type Unpaused struct{}

func (Unpaused) EventType() string { return TypeUnpaused }
