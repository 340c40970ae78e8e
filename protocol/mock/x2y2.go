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
	ErrRunSignature = errors.New("mock: operator countersignature invalid")
	ErrRunExpired   = errors.New("mock: run input past its deadline")
	ErrRunDetail    = errors.New("mock: settle detail does not resolve")
	ErrSaltUsed     = errors.New("mock: order salt already settled")
	ErrRunTaker     = errors.New("mock: run input taker is not the caller")
)

// feeDenominator matches the venue's parts-per-million fee encoding.
const feeDenominator = 1_000_000

// X2Y2Exchange executes operator-countersigned run inputs.
type X2Y2Exchange struct {
	addr        common.Address
	chainID     uint64
	operator    common.Address
	currencies  map[common.Address]*ledger.Token
	collections map[common.Address]*ledger.Collection
	now         uint64
}

// NewX2Y2Exchange builds the venue with the given countersigning operator.
func NewX2Y2Exchange(addr common.Address, chainID uint64, operator common.Address, currencies map[common.Address]*ledger.Token, collections map[common.Address]*ledger.Collection) *X2Y2Exchange {
	return &X2Y2Exchange{
		addr:        addr,
		chainID:     chainID,
		operator:    operator,
		currencies:  currencies,
		collections: collections,
	}
}

func (x *X2Y2Exchange) Address() common.Address { return x.addr }

func (x *X2Y2Exchange) Operator() common.Address { return x.operator }

// SetNow fixes the clock used for deadlines. Zero disables the check.
func (x *X2Y2Exchange) SetNow(now uint64) { x.now = now }

func (x *X2Y2Exchange) saltKey(user common.Address, salt *big.Int) string {
	return fmt.Sprintf("mock:x2y2:%s:salt:%s:%s", x.addr.Hex(), user.Hex(), salt.String())
}

// Run settles every detail of the input against the caller's funds.
func (x *X2Y2Exchange) Run(tr *state.Transition, caller common.Address, input protocol.X2Y2RunInput) error {
	if x.now != 0 && x.now > input.Shared.Deadline {
		return ErrRunExpired
	}
	if input.Shared.User != caller {
		return ErrRunTaker
	}

	runDigest, err := input.Digest(x.chainID, x.addr)
	if err != nil {
		return err
	}
	signer, err := eip712.RecoverSigner(runDigest, input.Signature)
	if err != nil || signer != x.operator {
		return ErrRunSignature
	}

	for _, detail := range input.Details {
		if detail.OrderIdx >= uint64(len(input.Orders)) {
			return ErrRunDetail
		}
		order := input.Orders[detail.OrderIdx]
		if detail.ItemIdx >= uint64(len(order.Items)) {
			return ErrRunDetail
		}
		item := order.Items[detail.ItemIdx]
		if detail.Price.Cmp(item.Price) != 0 {
			return ErrRunDetail
		}
		if err := x.settleOne(tr, caller, order, detail); err != nil {
			return err
		}
	}
	return nil
}

func (x *X2Y2Exchange) settleOne(tr *state.Transition, caller common.Address, order protocol.X2Y2Order, detail protocol.X2Y2SettleDetail) error {
	currency, ok := x.currencies[order.Currency]
	if !ok {
		return ErrCurrencyMismatch
	}
	collection, ok := x.collections[order.Collection]
	if !ok {
		return ErrRunDetail
	}

	used, err := flagSet(tr, x.saltKey(order.User, order.Salt))
	if err != nil {
		return err
	}
	if used {
		return ErrSaltUsed
	}

	digest, err := order.Digest(x.chainID, x.addr, detail.ItemIdx)
	if err != nil {
		return err
	}
	signer, err := eip712.RecoverSigner(digest, order.Signature)
	if err != nil || signer != order.User {
		return ErrOrderSignature
	}

	approved, err := collection.IsApprovedForAll(tr, order.User, x.addr)
	if err != nil {
		return err
	}
	if !approved {
		return ErrTransferManager
	}
	if err := setFlag(tr, x.saltKey(order.User, order.Salt)); err != nil {
		return err
	}

	// Fee legs come off the top; the maker receives the remainder.
	remainder := new(big.Int).Set(detail.Price)
	for _, fee := range detail.Fees {
		cut := new(big.Int).Div(
			new(big.Int).Mul(detail.Price, new(big.Int).SetUint64(fee.Percentage)),
			big.NewInt(feeDenominator),
		)
		remainder.Sub(remainder, cut)
		if err := currency.TransferFrom(tr, x.addr, caller, fee.To, cut); err != nil {
			return err
		}
	}
	if remainder.Sign() < 0 {
		return ErrRunDetail
	}
	if err := currency.TransferFrom(tr, x.addr, caller, order.User, remainder); err != nil {
		return err
	}
	return collection.Transfer(tr, x.addr, order.User, caller, order.TokenID)
}
