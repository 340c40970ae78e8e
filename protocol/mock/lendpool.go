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
	ErrCollectionUnknown      = errors.New("mock: collection not listed on lend pool")
	ErrAssetUnknown           = errors.New("mock: asset not listed on lend pool")
	ErrPositionMissing        = errors.New("mock: no collateral position")
	ErrPositionOwner          = errors.New("mock: position not owned by borrower")
	ErrDelegationInsufficient = errors.New("mock: borrow delegation insufficient")
)

type collateralRecord struct {
	Collection common.Address `json:"collection"`
	TokenID    string         `json:"tokenId"`
	Owner      common.Address `json:"owner"`
	Debt       string         `json:"debt"`
	DebtAsset  common.Address `json:"debtAsset"`
}

// LendPool escrows collection tokens as collateral, mints a receipt token to
// the position owner and tracks debt drawn against the position.
type LendPool struct {
	addr        common.Address
	collections map[common.Address]*ledger.Collection
	receipts    map[common.Address]*ledger.Collection
	assets      map[common.Address]*ledger.Token
}

// NewLendPool builds a pool over the given ledgers. receipts maps an
// underlying collection address to its receipt-token collection.
func NewLendPool(addr common.Address, collections map[common.Address]*ledger.Collection, receipts map[common.Address]*ledger.Collection, assets map[common.Address]*ledger.Token) *LendPool {
	return &LendPool{addr: addr, collections: collections, receipts: receipts, assets: assets}
}

func (p *LendPool) Address() common.Address { return p.addr }

func (p *LendPool) positionKey(collection common.Address, tokenID *big.Int) string {
	return fmt.Sprintf("mock:lendpool:%s:pos:%s:%s", p.addr.Hex(), collection.Hex(), tokenID.String())
}

func (p *LendPool) delegationKey(delegator, delegatee, asset common.Address) string {
	return fmt.Sprintf("mock:lendpool:%s:deleg:%s:%s:%s", p.addr.Hex(), delegator.Hex(), delegatee.Hex(), asset.Hex())
}

// DepositNFT escrows the token and mints the receipt to onBehalfOf.
func (p *LendPool) DepositNFT(tr *state.Transition, caller, collection common.Address, tokenID *big.Int, onBehalfOf common.Address) error {
	col, ok := p.collections[collection]
	if !ok {
		return ErrCollectionUnknown
	}
	receipt, ok := p.receipts[collection]
	if !ok {
		return ErrCollectionUnknown
	}
	if err := col.Transfer(tr, caller, caller, p.addr, tokenID); err != nil {
		return err
	}
	if err := receipt.Mint(tr, onBehalfOf, tokenID); err != nil {
		return err
	}
	return storeJSON(tr, p.positionKey(collection, tokenID), collateralRecord{
		Collection: collection,
		TokenID:    tokenID.String(),
		Owner:      onBehalfOf,
		Debt:       "0",
	})
}

// BorrowOnBehalf draws debt against onBehalfOf's position and sends the funds
// to recipient. The caller must hold a matching delegation.
func (p *LendPool) BorrowOnBehalf(tr *state.Transition, caller, asset common.Address, amount *big.Int, collection common.Address, tokenID *big.Int, onBehalfOf, recipient common.Address) error {
	token, ok := p.assets[asset]
	if !ok {
		return ErrAssetUnknown
	}
	var rec collateralRecord
	ok, err := loadJSON(tr, p.positionKey(collection, tokenID), &rec)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPositionMissing
	}
	if rec.Owner != onBehalfOf {
		return ErrPositionOwner
	}

	if caller != onBehalfOf {
		allowance, err := p.BorrowAllowance(tr, onBehalfOf, caller, asset)
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 {
			return ErrDelegationInsufficient
		}
		if err := storeAmount(tr, p.delegationKey(onBehalfOf, caller, asset), new(big.Int).Sub(allowance, amount)); err != nil {
			return err
		}
	}

	debt, ok := new(big.Int).SetString(rec.Debt, 10)
	if !ok {
		return fmt.Errorf("mock: corrupt debt record %q", rec.Debt)
	}
	rec.Debt = new(big.Int).Add(debt, amount).String()
	rec.DebtAsset = asset
	if err := storeJSON(tr, p.positionKey(collection, tokenID), rec); err != nil {
		return err
	}
	return token.Transfer(tr, p.addr, recipient, amount)
}

// ApproveDelegation lets delegatee borrow asset against delegator's collateral.
func (p *LendPool) ApproveDelegation(tr *state.Transition, delegator, delegatee, asset common.Address, amount *big.Int) error {
	return storeAmount(tr, p.delegationKey(delegator, delegatee, asset), amount)
}

// BorrowAllowance returns the remaining delegation.
func (p *LendPool) BorrowAllowance(tr *state.Transition, delegator, delegatee, asset common.Address) (*big.Int, error) {
	return loadAmount(tr, p.delegationKey(delegator, delegatee, asset))
}

// CollateralData returns the position for collection/tokenID.
func (p *LendPool) CollateralData(tr *state.Transition, collection common.Address, tokenID *big.Int) (protocol.NftCollateralData, bool, error) {
	var rec collateralRecord
	ok, err := loadJSON(tr, p.positionKey(collection, tokenID), &rec)
	if err != nil || !ok {
		return protocol.NftCollateralData{}, false, err
	}
	id, _ := new(big.Int).SetString(rec.TokenID, 10)
	debt, _ := new(big.Int).SetString(rec.Debt, 10)
	return protocol.NftCollateralData{
		Collection: rec.Collection,
		TokenID:    id,
		Owner:      rec.Owner,
		Debt:       debt,
		DebtAsset:  rec.DebtAsset,
	}, true, nil
}
