// Package ledger models the fungible and non-fungible balances every
// settlement touches. All balances live in the per-call state transition, so
// a discarded transition rolls every transfer back. Amounts are persisted as
// 32-byte big-endian words.
package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"downpay/core/state"
)

var (
	// ErrInvalidAmount indicates a nil or negative amount.
	ErrInvalidAmount = errors.New("ledger: amount must be non-negative")
	// ErrAmountOverflow indicates an amount beyond 256 bits.
	ErrAmountOverflow = errors.New("ledger: amount exceeds 256 bits")
	// ErrInsufficientBalance indicates a debit larger than the balance.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	// ErrInsufficientAllowance indicates a pull larger than the approval.
	ErrInsufficientAllowance = errors.New("ledger: insufficient allowance")
)

// Token is an ERC-20 style fungible ledger identified by its contract
// address.
type Token struct {
	addr common.Address
}

// NewToken binds a token ledger to the given contract address.
func NewToken(addr common.Address) *Token {
	return &Token{addr: addr}
}

// Address returns the token contract address.
func (t *Token) Address() common.Address { return t.addr }

func (t *Token) balanceKey(holder common.Address) []byte {
	return []byte(fmt.Sprintf("erc20:%s:bal:%s", t.addr.Hex(), holder.Hex()))
}

func (t *Token) allowanceKey(owner, spender common.Address) []byte {
	return []byte(fmt.Sprintf("erc20:%s:allow:%s:%s", t.addr.Hex(), owner.Hex(), spender.Hex()))
}

func readAmount(tr *state.Transition, key []byte) (*big.Int, error) {
	raw, ok, err := tr.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return new(uint256.Int).SetBytes(raw).ToBig(), nil
}

func writeAmount(tr *state.Transition, key []byte, amount *big.Int) error {
	word, overflow := uint256.FromBig(amount)
	if overflow {
		return ErrAmountOverflow
	}
	b := word.Bytes32()
	return tr.Put(key, b[:])
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.BitLen() > 256 {
		return ErrAmountOverflow
	}
	return nil
}

// BalanceOf returns the holder's balance.
func (t *Token) BalanceOf(tr *state.Transition, holder common.Address) (*big.Int, error) {
	return readAmount(tr, t.balanceKey(holder))
}

// Mint credits freshly issued units to the holder.
func (t *Token) Mint(tr *state.Transition, holder common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	bal, err := t.BalanceOf(tr, holder)
	if err != nil {
		return err
	}
	return writeAmount(tr, t.balanceKey(holder), new(big.Int).Add(bal, amount))
}

// Burn destroys units held by the holder.
func (t *Token) Burn(tr *state.Transition, holder common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	bal, err := t.BalanceOf(tr, holder)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return writeAmount(tr, t.balanceKey(holder), new(big.Int).Sub(bal, amount))
}

// Transfer moves units between holders.
func (t *Token) Transfer(tr *state.Transition, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBal, err := t.BalanceOf(tr, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBal, err := t.BalanceOf(tr, to)
	if err != nil {
		return err
	}
	if err := writeAmount(tr, t.balanceKey(from), new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return writeAmount(tr, t.balanceKey(to), new(big.Int).Add(toBal, amount))
}

// Approve lets spender pull up to amount from owner.
func (t *Token) Approve(tr *state.Transition, owner, spender common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return writeAmount(tr, t.allowanceKey(owner, spender), amount)
}

// Allowance returns the remaining approval from owner to spender.
func (t *Token) Allowance(tr *state.Transition, owner, spender common.Address) (*big.Int, error) {
	return readAmount(tr, t.allowanceKey(owner, spender))
}

// TransferFrom pulls units from owner using spender's allowance.
func (t *Token) TransferFrom(tr *state.Transition, spender, owner, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return nil
	}
	allowance, err := t.Allowance(tr, owner, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := t.Transfer(tr, owner, to, amount); err != nil {
		return err
	}
	return writeAmount(tr, t.allowanceKey(owner, spender), new(big.Int).Sub(allowance, amount))
}
