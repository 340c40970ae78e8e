package protocol

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"downpay/core/state"
	"downpay/crypto/eip712"
)

// Seaport version strings double as the typed-data domain version.
const (
	SeaportVersion11 = "1.1"
	SeaportVersion15 = "1.5"
)

// SeaportRecipient is an extra consideration leg paid alongside the offerer's
// proceeds, typically a platform or royalty fee.
type SeaportRecipient struct {
	Amount    *big.Int
	Recipient common.Address
}

// SeaportBasicOrder is the single-item ask fulfilled through the conduit
// fast path: the offerer gives one token and receives the consideration
// currency split between themselves and the additional recipients. The total
// price of the order is ConsiderationAmount plus every recipient amount.
type SeaportBasicOrder struct {
	ConsiderationToken   common.Address
	ConsiderationAmount  *big.Int
	Offerer              common.Address
	Zone                 common.Address
	OfferToken           common.Address
	OfferIdentifier      *big.Int
	StartTime            uint64
	EndTime              uint64
	ZoneHash             common.Hash
	Salt                 *big.Int
	OffererConduitKey    common.Hash
	FulfillerConduitKey  common.Hash
	AdditionalRecipients []SeaportRecipient
	Signature            []byte
}

// TotalPrice sums the offerer leg and every additional recipient leg.
func (o SeaportBasicOrder) TotalPrice() *big.Int {
	total := new(big.Int).Set(o.ConsiderationAmount)
	for _, r := range o.AdditionalRecipients {
		total.Add(total, r.Amount)
	}
	return total
}

var seaportOrderTypes = map[string][]apitypes.Type{
	"BasicOrder": {
		{Name: "considerationToken", Type: "address"},
		{Name: "considerationAmount", Type: "uint256"},
		{Name: "offerer", Type: "address"},
		{Name: "zone", Type: "address"},
		{Name: "offerToken", Type: "address"},
		{Name: "offerIdentifier", Type: "uint256"},
		{Name: "startTime", Type: "uint256"},
		{Name: "endTime", Type: "uint256"},
		{Name: "zoneHash", Type: "bytes32"},
		{Name: "salt", Type: "uint256"},
		{Name: "conduitKey", Type: "bytes32"},
		{Name: "totalPrice", Type: "uint256"},
	},
}

// SeaportDomain is the exchange's signing domain for the given version.
func SeaportDomain(version string, chainID uint64, exchange common.Address) apitypes.TypedDataDomain {
	return eip712.Domain("Seaport", version, chainID, exchange)
}

// Digest returns the typed-data digest the offerer signed.
func (o SeaportBasicOrder) Digest(version string, chainID uint64, exchange common.Address) (common.Hash, error) {
	return eip712.Digest(SeaportDomain(version, chainID, exchange), eip712.Types(seaportOrderTypes), "BasicOrder", apitypes.TypedDataMessage{
		"considerationToken":  o.ConsiderationToken.Hex(),
		"considerationAmount": o.ConsiderationAmount.String(),
		"offerer":             o.Offerer.Hex(),
		"zone":                o.Zone.Hex(),
		"offerToken":          o.OfferToken.Hex(),
		"offerIdentifier":     o.OfferIdentifier.String(),
		"startTime":           new(big.Int).SetUint64(o.StartTime).String(),
		"endTime":             new(big.Int).SetUint64(o.EndTime).String(),
		"zoneHash":            o.ZoneHash[:],
		"salt":                o.Salt.String(),
		"conduitKey":          o.OffererConduitKey[:],
		"totalPrice":          o.TotalPrice().String(),
	})
}

// SeaportExchange fulfills basic orders. The fulfiller's consideration is
// pulled through the conduit named by FulfillerConduitKey, so the caller must
// have approved that conduit beforehand.
type SeaportExchange interface {
	Address() common.Address
	Version() string
	ConduitFor(key common.Hash) (common.Address, bool)
	FulfillBasicOrder(tr *state.Transition, caller common.Address, order SeaportBasicOrder) error
}
