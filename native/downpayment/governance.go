package downpayment

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"downpay/core/events"
	"downpay/core/state"
)

// Governance surface. Every mutation runs in its own transition and commits
// before the matching event is emitted.

func (e *Engine) govTransition(caller common.Address) (*state.Transition, error) {
	if e.db == nil {
		return nil, ErrStateUnavailable
	}
	if caller != e.governance {
		return nil, ErrNotGovernance
	}
	return state.NewTransition(e.db), nil
}

// AddAdapter whitelists an adapter address with a zero fee.
func (e *Engine) AddAdapter(caller, adapter common.Address) error {
	tr, err := e.govTransition(caller)
	if err != nil {
		return err
	}
	if adapter == (common.Address{}) {
		return ErrAdapterNull
	}
	listed, err := e.isWhitelisted(tr, adapter)
	if err != nil {
		return err
	}
	if listed {
		return ErrAdapterAlreadyListed
	}
	list, err := e.adapterList(tr)
	if err != nil {
		return err
	}
	if err := e.writeAdapterList(tr, append(list, adapter)); err != nil {
		return err
	}
	if err := e.writeAdapterFee(tr, adapter, 0); err != nil {
		return err
	}
	if err := tr.Commit(); err != nil {
		return fmt.Errorf("downpayment: commit add adapter: %w", err)
	}
	e.emitter.Emit(events.AdapterAdded{Adapter: adapter})
	e.logger.Info("adapter whitelisted", "adapter", adapter.Hex())
	return nil
}

// RemoveAdapter delists an adapter and clears its fee and pause flag.
func (e *Engine) RemoveAdapter(caller, adapter common.Address) error {
	tr, err := e.govTransition(caller)
	if err != nil {
		return err
	}
	list, err := e.adapterList(tr)
	if err != nil {
		return err
	}
	kept := make([]common.Address, 0, len(list))
	for _, a := range list {
		if a != adapter {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(list) {
		return ErrAdapterNotWhitelisted
	}
	if err := e.writeAdapterList(tr, kept); err != nil {
		return err
	}
	if err := tr.Delete(feeKey(adapter)); err != nil {
		return err
	}
	if err := tr.Delete(adapterPausedKey(adapter)); err != nil {
		return err
	}
	if err := tr.Commit(); err != nil {
		return fmt.Errorf("downpayment: commit remove adapter: %w", err)
	}
	e.emitter.Emit(events.AdapterRemoved{Adapter: adapter})
	e.logger.Info("adapter delisted", "adapter", adapter.Hex())
	return nil
}

// UpdateFee sets the protocol fee for a whitelisted adapter.
func (e *Engine) UpdateFee(caller, adapter common.Address, feeBps uint64) error {
	tr, err := e.govTransition(caller)
	if err != nil {
		return err
	}
	if feeBps > MaxFeeBps {
		return ErrFeeOverflow
	}
	listed, err := e.isWhitelisted(tr, adapter)
	if err != nil {
		return err
	}
	if !listed {
		return ErrAdapterNotWhitelisted
	}
	if err := e.writeAdapterFee(tr, adapter, feeBps); err != nil {
		return err
	}
	if err := tr.Commit(); err != nil {
		return fmt.Errorf("downpayment: commit fee update: %w", err)
	}
	e.emitter.Emit(events.FeeUpdated{Adapter: adapter, FeeBps: feeBps})
	e.logger.Info("adapter fee updated", "adapter", adapter.Hex(), "feeBps", feeBps)
	return nil
}

// SetFeeCollector rotates the protocol fee recipient.
func (e *Engine) SetFeeCollector(caller, collector common.Address) error {
	tr, err := e.govTransition(caller)
	if err != nil {
		return err
	}
	if collector == (common.Address{}) {
		return ErrNullCollector
	}
	if err := tr.Put([]byte(keyCollector), collector.Bytes()); err != nil {
		return err
	}
	if err := tr.Commit(); err != nil {
		return fmt.Errorf("downpayment: commit collector update: %w", err)
	}
	e.emitter.Emit(events.CollectorUpdated{Collector: collector})
	e.logger.Info("fee collector updated", "collector", collector.Hex())
	return nil
}

// Pause halts every settlement until Unpause.
func (e *Engine) Pause(caller common.Address) error {
	return e.setPause(caller, []byte(keyPaused), true, events.Paused{})
}

// Unpause resumes settlements.
func (e *Engine) Unpause(caller common.Address) error {
	return e.setPause(caller, []byte(keyPaused), false, events.Unpaused{})
}

// PauseAdapter halts one adapter while the rest keep settling.
func (e *Engine) PauseAdapter(caller, adapter common.Address) error {
	return e.setPause(caller, adapterPausedKey(adapter), true, events.Paused{})
}

// UnpauseAdapter resumes a paused adapter.
func (e *Engine) UnpauseAdapter(caller, adapter common.Address) error {
	return e.setPause(caller, adapterPausedKey(adapter), false, events.Unpaused{})
}

func (e *Engine) setPause(caller common.Address, key []byte, on bool, evt events.Event) error {
	tr, err := e.govTransition(caller)
	if err != nil {
		return err
	}
	if err := e.writeFlag(tr, key, on); err != nil {
		return err
	}
	if err := tr.Commit(); err != nil {
		return fmt.Errorf("downpayment: commit pause update: %w", err)
	}
	e.emitter.Emit(evt)
	return nil
}

// Views. Each read runs over a fresh overlay so it sees committed state only.

func (e *Engine) view() (*state.Transition, error) {
	if e.db == nil {
		return nil, ErrStateUnavailable
	}
	return state.NewTransition(e.db), nil
}

// Nonces returns the buyer's next intent nonce.
func (e *Engine) Nonces(buyer common.Address) (uint64, error) {
	tr, err := e.view()
	if err != nil {
		return 0, err
	}
	return e.readNonce(tr, buyer)
}

// GetFeeCollector returns the configured collector.
func (e *Engine) GetFeeCollector() (common.Address, error) {
	tr, err := e.view()
	if err != nil {
		return common.Address{}, err
	}
	collector, ok, err := e.feeCollector(tr)
	if err != nil {
		return common.Address{}, err
	}
	if !ok {
		return common.Address{}, ErrNoCollector
	}
	return collector, nil
}

// GetFee returns the adapter's protocol fee in basis points.
func (e *Engine) GetFee(adapter common.Address) (uint64, error) {
	tr, err := e.view()
	if err != nil {
		return 0, err
	}
	listed, err := e.isWhitelisted(tr, adapter)
	if err != nil {
		return 0, err
	}
	if !listed {
		return 0, ErrAdapterNotWhitelisted
	}
	return e.adapterFee(tr, adapter)
}

// IsAdapterWhitelisted reports whitelist membership.
func (e *Engine) IsAdapterWhitelisted(adapter common.Address) (bool, error) {
	tr, err := e.view()
	if err != nil {
		return false, err
	}
	return e.isWhitelisted(tr, adapter)
}

// ViewCountWhitelistedAdapters returns the whitelist size.
func (e *Engine) ViewCountWhitelistedAdapters() (uint64, error) {
	tr, err := e.view()
	if err != nil {
		return 0, err
	}
	list, err := e.adapterList(tr)
	if err != nil {
		return 0, err
	}
	return uint64(len(list)), nil
}

// ViewWhitelistedAdapters returns the (offset, limit) window of the whitelist
// and the cursor position after the window.
func (e *Engine) ViewWhitelistedAdapters(offset, limit uint64) ([]common.Address, uint64, error) {
	tr, err := e.view()
	if err != nil {
		return nil, 0, err
	}
	list, err := e.adapterList(tr)
	if err != nil {
		return nil, 0, err
	}
	total := uint64(len(list))
	if offset >= total {
		return []common.Address{}, offset, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	window := make([]common.Address, end-offset)
	copy(window, list[offset:end])
	return window, end, nil
}

// IsPaused reports the stored engine-level pause flag.
func (e *Engine) IsPaused() (bool, error) {
	tr, err := e.view()
	if err != nil {
		return false, err
	}
	return e.readFlag(tr, []byte(keyPaused))
}

// IsAdapterPaused reports the stored per-adapter pause flag.
func (e *Engine) IsAdapterPaused(adapter common.Address) (bool, error) {
	tr, err := e.view()
	if err != nil {
		return false, err
	}
	return e.readFlag(tr, adapterPausedKey(adapter))
}
