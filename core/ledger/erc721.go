package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"downpay/core/state"
)

var (
	// ErrTokenNotMinted indicates a query for a token with no owner.
	ErrTokenNotMinted = errors.New("ledger: token not minted")
	// ErrTokenExists indicates a mint over an existing token.
	ErrTokenExists = errors.New("ledger: token already minted")
	// ErrNotOwner indicates a transfer from an address that does not hold the token.
	ErrNotOwner = errors.New("ledger: sender does not own token")
	// ErrNotAuthorized indicates a caller with neither ownership nor approval.
	ErrNotAuthorized = errors.New("ledger: caller not owner nor approved")
)

// Collection is an ERC-721 style non-fungible ledger identified by its
// contract address.
type Collection struct {
	addr common.Address
}

// NewCollection binds a collection ledger to the given contract address.
func NewCollection(addr common.Address) *Collection {
	return &Collection{addr: addr}
}

// Address returns the collection contract address.
func (c *Collection) Address() common.Address { return c.addr }

func (c *Collection) ownerKey(tokenID *big.Int) []byte {
	return []byte(fmt.Sprintf("erc721:%s:owner:%s", c.addr.Hex(), tokenID.String()))
}

func (c *Collection) approvalKey(tokenID *big.Int) []byte {
	return []byte(fmt.Sprintf("erc721:%s:approved:%s", c.addr.Hex(), tokenID.String()))
}

func (c *Collection) operatorKey(owner, operator common.Address) []byte {
	return []byte(fmt.Sprintf("erc721:%s:operator:%s:%s", c.addr.Hex(), owner.Hex(), operator.Hex()))
}

// OwnerOf returns the token owner, with ok=false for an unminted token.
func (c *Collection) OwnerOf(tr *state.Transition, tokenID *big.Int) (common.Address, bool, error) {
	raw, ok, err := tr.Get(c.ownerKey(tokenID))
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	return common.BytesToAddress(raw), true, nil
}

// Mint assigns a fresh token to the holder.
func (c *Collection) Mint(tr *state.Transition, to common.Address, tokenID *big.Int) error {
	if _, ok, err := c.OwnerOf(tr, tokenID); err != nil {
		return err
	} else if ok {
		return ErrTokenExists
	}
	return tr.Put(c.ownerKey(tokenID), to.Bytes())
}

// Approve grants to the right to move tokenID once. Only the owner may grant.
func (c *Collection) Approve(tr *state.Transition, caller, to common.Address, tokenID *big.Int) error {
	owner, ok, err := c.OwnerOf(tr, tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTokenNotMinted
	}
	if caller != owner {
		operator, err := c.IsApprovedForAll(tr, owner, caller)
		if err != nil {
			return err
		}
		if !operator {
			return ErrNotAuthorized
		}
	}
	return tr.Put(c.approvalKey(tokenID), to.Bytes())
}

// Approved returns the single-token approval, if any.
func (c *Collection) Approved(tr *state.Transition, tokenID *big.Int) (common.Address, error) {
	raw, ok, err := tr.Get(c.approvalKey(tokenID))
	if err != nil || !ok {
		return common.Address{}, err
	}
	return common.BytesToAddress(raw), nil
}

// SetApprovalForAll grants or revokes operator status over every token the
// owner holds in this collection.
func (c *Collection) SetApprovalForAll(tr *state.Transition, owner, operator common.Address, approved bool) error {
	key := c.operatorKey(owner, operator)
	if !approved {
		return tr.Delete(key)
	}
	return tr.Put(key, []byte{1})
}

// IsApprovedForAll reports whether operator may move any of owner's tokens.
func (c *Collection) IsApprovedForAll(tr *state.Transition, owner, operator common.Address) (bool, error) {
	raw, ok, err := tr.Get(c.operatorKey(owner, operator))
	if err != nil {
		return false, err
	}
	return ok && len(raw) == 1 && raw[0] == 1, nil
}

// Transfer moves tokenID from from to to. The caller must be the owner, the
// per-token approved address, or an approved operator. Any single-token
// approval is cleared by the move.
func (c *Collection) Transfer(tr *state.Transition, caller, from, to common.Address, tokenID *big.Int) error {
	owner, ok, err := c.OwnerOf(tr, tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTokenNotMinted
	}
	if owner != from {
		return ErrNotOwner
	}
	if caller != owner {
		approved, err := c.Approved(tr, tokenID)
		if err != nil {
			return err
		}
		operator, err := c.IsApprovedForAll(tr, owner, caller)
		if err != nil {
			return err
		}
		if caller != approved && !operator {
			return ErrNotAuthorized
		}
	}
	if err := tr.Delete(c.approvalKey(tokenID)); err != nil {
		return err
	}
	return tr.Put(c.ownerKey(tokenID), to.Bytes())
}
