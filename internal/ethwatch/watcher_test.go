package ethwatch

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
)

type fakeSessions struct {
	mu        sync.Mutex
	ids       []int64
	refreshed []int64
	err       error
}

func (f *fakeSessions) IDs() []int64 { return f.ids }

func (f *fakeSessions) Refresh(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, id)
	return f.err
}

var (
	contractAddr = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	otherAddr    = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func txTo(to *common.Address) *types.Transaction {
	return types.NewTx(&types.LegacyTx{To: to, Value: big.NewInt(1), Gas: 21000, GasPrice: big.NewInt(1)})
}

func TestTouches(t *testing.T) {
	creation := txTo(nil)
	other := txTo(&otherAddr)
	hit := txTo(&contractAddr)

	if touches(types.Transactions{creation, other}, contractAddr) {
		t.Fatalf("expected no match")
	}
	if !touches(types.Transactions{other, hit}, contractAddr) {
		t.Fatalf("expected match")
	}
	if touches(nil, contractAddr) {
		t.Fatalf("expected no match for empty block")
	}
}

func TestWatcher_DispatchRefreshesEverySession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions := &fakeSessions{ids: []int64{1, 2, 3}}
	w := NewWatcher(nil, contractAddr, sessions, zerolog.Nop(), WatcherConfig{Workers: 2, TasksBuffer: 8})

	w.startWorkers(ctx)

	if err := w.dispatch(ctx, 10, types.Transactions{txTo(&otherAddr)}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := w.dispatch(ctx, 11, types.Transactions{txTo(&contractAddr)}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	w.stopWorkers()

	sessions.mu.Lock()
	defer sessions.mu.Unlock()

	got := append([]int64(nil), sessions.refreshed...)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("expected each session refreshed once, got %v", got)
	}
}

func TestWatcher_handleTask_ErrorIsNotFatal(t *testing.T) {
	sessions := &fakeSessions{err: errors.New("rpc down")}
	w := NewWatcher(nil, contractAddr, sessions, zerolog.Nop(), WatcherConfig{})

	w.handleTask(context.Background(), RefreshTask{SessionID: 9, BlockNum: 1})

	if len(sessions.refreshed) != 1 || sessions.refreshed[0] != 9 {
		t.Fatalf("expected refresh attempt, got %v", sessions.refreshed)
	}
}
