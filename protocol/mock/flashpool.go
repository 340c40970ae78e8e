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
	ErrFlashAssetUnknown = errors.New("mock: flash pool does not lend this asset")
	ErrFlashNotRepaid    = errors.New("mock: flash loan not repaid")
)

// FlashPool is a flash-lending pool. Liquidity per asset is whatever balance
// its address holds in that asset's ledger.
type FlashPool struct {
	addr       common.Address
	premiumBps uint64
	assets     map[common.Address]*ledger.Token
}

// NewFlashPool builds a pool lending the given assets at premiumBps per loan.
func NewFlashPool(addr common.Address, premiumBps uint64, assets map[common.Address]*ledger.Token) *FlashPool {
	return &FlashPool{addr: addr, premiumBps: premiumBps, assets: assets}
}

func (p *FlashPool) Address() common.Address { return p.addr }

func (p *FlashPool) PremiumBps() uint64 { return p.premiumBps }

// FlashLoan transfers the assets to the receiver, runs the callback, then
// pulls principal plus premium back through the receiver's allowance.
func (p *FlashPool) FlashLoan(tr *state.Transition, initiator common.Address, receiver protocol.FlashLoanReceiver, assets []common.Address, amounts []*big.Int, params []byte) error {
	if len(assets) != len(amounts) {
		return fmt.Errorf("mock: %d assets, %d amounts", len(assets), len(amounts))
	}
	premiums := make([]*big.Int, len(assets))
	for i, asset := range assets {
		token, ok := p.assets[asset]
		if !ok {
			return ErrFlashAssetUnknown
		}
		premiums[i] = new(big.Int).Div(
			new(big.Int).Mul(amounts[i], new(big.Int).SetUint64(p.premiumBps)),
			big.NewInt(10_000),
		)
		if err := token.Transfer(tr, p.addr, receiver.Address(), amounts[i]); err != nil {
			return err
		}
	}

	if err := receiver.ExecuteOperation(tr, p.addr, assets, amounts, premiums, initiator, params); err != nil {
		return err
	}

	for i, asset := range assets {
		token := p.assets[asset]
		owed := new(big.Int).Add(amounts[i], premiums[i])
		if err := token.TransferFrom(tr, p.addr, receiver.Address(), p.addr, owed); err != nil {
			if errors.Is(err, ledger.ErrInsufficientAllowance) || errors.Is(err, ledger.ErrInsufficientBalance) {
				return ErrFlashNotRepaid
			}
			return err
		}
	}
	return nil
}
