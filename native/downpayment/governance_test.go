package downpayment

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"downpay/core/ledger"
	"downpay/storage"
)

var (
	govAddr       = common.HexToAddress("0xa0")
	engineAddr    = common.HexToAddress("0xe1")
	collectorAddr = common.HexToAddress("0xc1")
	adapterA      = common.HexToAddress("0xd01")
	adapterB      = common.HexToAddress("0xd02")
	outsider      = common.HexToAddress("0xbad")
)

func newGovEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(engineAddr, govAddr, 1, ledger.NewWNative(common.HexToAddress("0xf1")))
	e.SetState(storage.NewMemDB())
	return e
}

func TestAddAdapterGuards(t *testing.T) {
	e := newGovEngine(t)

	if err := e.AddAdapter(outsider, adapterA); !errors.Is(err, ErrNotGovernance) {
		t.Fatalf("expected ErrNotGovernance, got %v", err)
	}
	if err := e.AddAdapter(govAddr, common.Address{}); !errors.Is(err, ErrAdapterNull) {
		t.Fatalf("expected ErrAdapterNull, got %v", err)
	}
	if err := e.AddAdapter(govAddr, adapterA); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.AddAdapter(govAddr, adapterA); !errors.Is(err, ErrAdapterAlreadyListed) {
		t.Fatalf("expected ErrAdapterAlreadyListed, got %v", err)
	}

	listed, err := e.IsAdapterWhitelisted(adapterA)
	if err != nil || !listed {
		t.Fatalf("adapter should be listed: %v %v", listed, err)
	}
	if fee, err := e.GetFee(adapterA); err != nil || fee != 0 {
		t.Fatalf("fresh adapter fee should be zero: %d %v", fee, err)
	}
}

func TestRemoveAdapterGuards(t *testing.T) {
	e := newGovEngine(t)

	if err := e.RemoveAdapter(govAddr, adapterA); !errors.Is(err, ErrAdapterNotWhitelisted) {
		t.Fatalf("expected ErrAdapterNotWhitelisted, got %v", err)
	}
	if err := e.AddAdapter(govAddr, adapterA); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.UpdateFee(govAddr, adapterA, 250); err != nil {
		t.Fatalf("fee: %v", err)
	}
	if err := e.RemoveAdapter(govAddr, adapterA); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if listed, _ := e.IsAdapterWhitelisted(adapterA); listed {
		t.Fatalf("adapter should be delisted")
	}
	if _, err := e.GetFee(adapterA); !errors.Is(err, ErrAdapterNotWhitelisted) {
		t.Fatalf("expected ErrAdapterNotWhitelisted after removal, got %v", err)
	}
}

func TestUpdateFeeGuards(t *testing.T) {
	e := newGovEngine(t)

	if err := e.UpdateFee(govAddr, adapterA, 100); !errors.Is(err, ErrAdapterNotWhitelisted) {
		t.Fatalf("expected ErrAdapterNotWhitelisted, got %v", err)
	}
	if err := e.AddAdapter(govAddr, adapterA); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.UpdateFee(govAddr, adapterA, 10_001); !errors.Is(err, ErrFeeOverflow) {
		t.Fatalf("expected ErrFeeOverflow, got %v", err)
	}
	if err := e.UpdateFee(govAddr, adapterA, 10_000); err != nil {
		t.Fatalf("max fee should be accepted: %v", err)
	}
	if fee, _ := e.GetFee(adapterA); fee != 10_000 {
		t.Fatalf("fee = %d", fee)
	}
}

func TestSetFeeCollectorGuards(t *testing.T) {
	e := newGovEngine(t)

	if _, err := e.GetFeeCollector(); !errors.Is(err, ErrNoCollector) {
		t.Fatalf("expected ErrNoCollector, got %v", err)
	}
	if err := e.SetFeeCollector(govAddr, common.Address{}); !errors.Is(err, ErrNullCollector) {
		t.Fatalf("expected ErrNullCollector, got %v", err)
	}
	if err := e.SetFeeCollector(outsider, collectorAddr); !errors.Is(err, ErrNotGovernance) {
		t.Fatalf("expected ErrNotGovernance, got %v", err)
	}
	if err := e.SetFeeCollector(govAddr, collectorAddr); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := e.GetFeeCollector()
	if err != nil || got != collectorAddr {
		t.Fatalf("collector = %s err = %v", got.Hex(), err)
	}
}

func TestWhitelistPagination(t *testing.T) {
	e := newGovEngine(t)
	var all []common.Address
	for i := 1; i <= 5; i++ {
		addr := common.HexToAddress(fmt.Sprintf("0xd0%d", i))
		all = append(all, addr)
		if err := e.AddAdapter(govAddr, addr); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	count, err := e.ViewCountWhitelistedAdapters()
	if err != nil || count != 5 {
		t.Fatalf("count = %d err = %v", count, err)
	}

	window, cursor, err := e.ViewWhitelistedAdapters(1, 2)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(window) != 2 || window[0] != all[1] || window[1] != all[2] {
		t.Fatalf("window = %v", window)
	}
	if cursor != 3 {
		t.Fatalf("cursor = %d", cursor)
	}

	// Window past the end clamps.
	window, cursor, err = e.ViewWhitelistedAdapters(4, 10)
	if err != nil || len(window) != 1 || cursor != 5 {
		t.Fatalf("tail window = %v cursor = %d err = %v", window, cursor, err)
	}

	// Offset beyond the list is empty.
	window, cursor, err = e.ViewWhitelistedAdapters(9, 2)
	if err != nil || len(window) != 0 || cursor != 9 {
		t.Fatalf("empty window = %v cursor = %d err = %v", window, cursor, err)
	}
}

func TestPauseFlags(t *testing.T) {
	e := newGovEngine(t)

	if err := e.Pause(outsider); !errors.Is(err, ErrNotGovernance) {
		t.Fatalf("expected ErrNotGovernance, got %v", err)
	}
	if err := e.Pause(govAddr); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if paused, _ := e.IsPaused(); !paused {
		t.Fatalf("engine should be paused")
	}
	if err := e.Unpause(govAddr); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if paused, _ := e.IsPaused(); paused {
		t.Fatalf("engine should be unpaused")
	}

	if err := e.PauseAdapter(govAddr, adapterB); err != nil {
		t.Fatalf("pause adapter: %v", err)
	}
	if paused, _ := e.IsAdapterPaused(adapterB); !paused {
		t.Fatalf("adapter should be paused")
	}
	if err := e.UnpauseAdapter(govAddr, adapterB); err != nil {
		t.Fatalf("unpause adapter: %v", err)
	}
	if paused, _ := e.IsAdapterPaused(adapterB); paused {
		t.Fatalf("adapter should be unpaused")
	}
}

func TestGovernancePersistsAcrossEngines(t *testing.T) {
	db := storage.NewMemDB()
	weth := ledger.NewWNative(common.HexToAddress("0xf1"))

	e := NewEngine(engineAddr, govAddr, 1, weth)
	e.SetState(db)
	if err := e.AddAdapter(govAddr, adapterA); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.UpdateFee(govAddr, adapterA, 300); err != nil {
		t.Fatalf("fee: %v", err)
	}

	reloaded := NewEngine(engineAddr, govAddr, 1, weth)
	reloaded.SetState(db)
	if listed, _ := reloaded.IsAdapterWhitelisted(adapterA); !listed {
		t.Fatalf("whitelist should survive engine restart")
	}
	if fee, _ := reloaded.GetFee(adapterA); fee != 300 {
		t.Fatalf("fee should survive restart, got %d", fee)
	}
}
