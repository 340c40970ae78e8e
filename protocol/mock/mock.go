// Package mock provides in-memory implementations of every protocol surface,
// backed by the same state transition the engine settles in. They enforce the
// real venues' guard rails (signatures, approvals, nonces, proxies) so
// settlement tests exercise the full money flow without a chain.
package mock

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"downpay/core/state"
)

// ethKeccakAddr derives a deterministic child address from a parent contract
// and an owner, used for per-user proxies.
func ethKeccakAddr(parent, owner common.Address) []byte {
	return ethcrypto.Keccak256(parent.Bytes(), owner.Bytes())[12:]
}

func storeAmount(tr *state.Transition, key string, amount *big.Int) error {
	word, overflow := uint256.FromBig(amount)
	if overflow {
		return fmt.Errorf("mock: amount exceeds 256 bits")
	}
	b := word.Bytes32()
	return tr.Put([]byte(key), b[:])
}

func loadAmount(tr *state.Transition, key string) (*big.Int, error) {
	raw, ok, err := tr.Get([]byte(key))
	if err != nil || !ok {
		return big.NewInt(0), err
	}
	return new(uint256.Int).SetBytes(raw).ToBig(), nil
}

func setFlag(tr *state.Transition, key string) error {
	return tr.Put([]byte(key), []byte{1})
}

func flagSet(tr *state.Transition, key string) (bool, error) {
	raw, ok, err := tr.Get([]byte(key))
	if err != nil {
		return false, err
	}
	return ok && len(raw) == 1 && raw[0] == 1, nil
}

func storeJSON(tr *state.Transition, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tr.Put([]byte(key), raw)
}

func loadJSON(tr *state.Transition, key string, v any) (bool, error) {
	raw, ok, err := tr.Get([]byte(key))
	if err != nil || !ok {
		return false, err
	}
	return true, json.Unmarshal(raw, v)
}
