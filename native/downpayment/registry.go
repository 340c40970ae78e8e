package downpayment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"downpay/core/state"
)

// Registry keys. Everything governance controls plus the per-buyer nonces
// lives in the engine's key-value state so it survives restarts and rolls
// back with the transition that touched it.
const (
	keyAdapterList = "downpayment/adapters"
	keyCollector   = "downpayment/collector"
	keyPaused      = "downpayment/paused"
)

func feeKey(adapter common.Address) []byte {
	return []byte(fmt.Sprintf("downpayment/fee/%s", adapter.Hex()))
}

func adapterPausedKey(adapter common.Address) []byte {
	return []byte(fmt.Sprintf("downpayment/paused/%s", adapter.Hex()))
}

func nonceKey(buyer common.Address) []byte {
	return []byte(fmt.Sprintf("downpayment/nonce/%s", buyer.Hex()))
}

func quotaKey(buyer common.Address) []byte {
	return []byte(fmt.Sprintf("downpayment/quota/%s", buyer.Hex()))
}

func (e *Engine) adapterList(tr *state.Transition) ([]common.Address, error) {
	raw, ok, err := tr.Get([]byte(keyAdapterList))
	if err != nil || !ok {
		return nil, err
	}
	var list []common.Address
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("downpayment: corrupt adapter list: %w", err)
	}
	return list, nil
}

func (e *Engine) writeAdapterList(tr *state.Transition, list []common.Address) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return tr.Put([]byte(keyAdapterList), raw)
}

func (e *Engine) isWhitelisted(tr *state.Transition, adapter common.Address) (bool, error) {
	list, err := e.adapterList(tr)
	if err != nil {
		return false, err
	}
	for _, a := range list {
		if a == adapter {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) adapterFee(tr *state.Transition, adapter common.Address) (uint64, error) {
	raw, ok, err := tr.Get(feeKey(adapter))
	if err != nil || !ok {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("downpayment: corrupt fee record for %s", adapter.Hex())
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (e *Engine) writeAdapterFee(tr *state.Transition, adapter common.Address, feeBps uint64) error {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], feeBps)
	return tr.Put(feeKey(adapter), raw[:])
}

func (e *Engine) feeCollector(tr *state.Transition) (common.Address, bool, error) {
	raw, ok, err := tr.Get([]byte(keyCollector))
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	return common.BytesToAddress(raw), true, nil
}

func (e *Engine) readNonce(tr *state.Transition, buyer common.Address) (uint64, error) {
	raw, ok, err := tr.Get(nonceKey(buyer))
	if err != nil || !ok {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("downpayment: corrupt nonce record for %s", buyer.Hex())
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (e *Engine) writeNonce(tr *state.Transition, buyer common.Address, nonce uint64) error {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], nonce)
	return tr.Put(nonceKey(buyer), raw[:])
}

func (e *Engine) readFlag(tr *state.Transition, key []byte) (bool, error) {
	raw, ok, err := tr.Get(key)
	if err != nil {
		return false, err
	}
	return ok && len(raw) == 1 && raw[0] == 1, nil
}

func (e *Engine) writeFlag(tr *state.Transition, key []byte, on bool) error {
	if !on {
		return tr.Delete(key)
	}
	return tr.Put(key, []byte{1})
}
