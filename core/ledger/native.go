package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"downpay/core/state"
)

func nativeKey(holder common.Address) []byte {
	return []byte(fmt.Sprintf("native:bal:%s", holder.Hex()))
}

// NativeBalance returns the holder's native-asset balance.
func NativeBalance(tr *state.Transition, holder common.Address) (*big.Int, error) {
	return readAmount(tr, nativeKey(holder))
}

// NativeMint credits native units, used to seed test environments.
func NativeMint(tr *state.Transition, holder common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	bal, err := NativeBalance(tr, holder)
	if err != nil {
		return err
	}
	return writeAmount(tr, nativeKey(holder), new(big.Int).Add(bal, amount))
}

// NativeTransfer moves native units between holders.
func NativeTransfer(tr *state.Transition, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBal, err := NativeBalance(tr, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBal, err := NativeBalance(tr, to)
	if err != nil {
		return err
	}
	if err := writeAmount(tr, nativeKey(from), new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return writeAmount(tr, nativeKey(to), new(big.Int).Add(toBal, amount))
}

// WNative is the wrapped form of the native asset: a Token whose units are
// minted by locking native balance and burned by releasing it.
type WNative struct {
	Token
}

// NewWNative binds the wrapped-native ledger to a contract address.
func NewWNative(addr common.Address) *WNative {
	return &WNative{Token: Token{addr: addr}}
}

// Deposit wraps native units held by from into tokens.
func (w *WNative) Deposit(tr *state.Transition, from common.Address, amount *big.Int) error {
	if err := NativeTransfer(tr, from, w.addr, amount); err != nil {
		return err
	}
	return w.Mint(tr, from, amount)
}

// Withdraw unwraps tokens held by from back into native units.
func (w *WNative) Withdraw(tr *state.Transition, from common.Address, amount *big.Int) error {
	if err := w.Burn(tr, from, amount); err != nil {
		return err
	}
	return NativeTransfer(tr, w.addr, from, amount)
}
