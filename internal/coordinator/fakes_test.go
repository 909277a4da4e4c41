package coordinator

import (
	"context"
	"math/big"
	"sync"

	"github.com/pvzzle/txrecorder/internal/bus"
	"github.com/pvzzle/txrecorder/internal/contract"
	"github.com/pvzzle/txrecorder/internal/storage"
	"github.com/pvzzle/txrecorder/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type fakeWallet struct {
	mu         sync.Mutex
	authorized []common.Address
	requested  []common.Address
	requestErr error
	sendErr    error
	sent       []wallet.TransferRequest
}

func (w *fakeWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if w.requestErr != nil {
		return nil, w.requestErr
	}
	return w.requested, nil
}

func (w *fakeWallet) AuthorizedAccounts(ctx context.Context) ([]common.Address, error) {
	return w.authorized, nil
}

func (w *fakeWallet) SendValueTransfer(ctx context.Context, req wallet.TransferRequest) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sendErr != nil {
		return common.Hash{}, w.sendErr
	}
	w.sent = append(w.sent, req)
	return common.HexToHash("0xaa"), nil
}

type fakeOp struct {
	hash   common.Hash
	onWait func()
	err    error
	done   func()
}

func (o *fakeOp) Hash() common.Hash { return o.hash }

func (o *fakeOp) Wait(ctx context.Context) (*types.Receipt, error) {
	if o.onWait != nil {
		o.onWait()
	}
	if o.err != nil {
		return nil, o.err
	}
	o.done()
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(12)}, nil
}

type fakeContract struct {
	mu      sync.Mutex
	count   uint64
	records []contract.RawRecord

	addErr  error
	waitErr error
	onWait  func()

	countCalls int
	allCalls   int
	added      []contract.RawRecord
}

func (f *fakeContract) AddRecord(ctx context.Context, from, to common.Address, amount *big.Int, message, keyword string) (contract.PendingOperation, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	rec := contract.RawRecord{Sender: from, Receiver: to, Amount: amount, Message: message, Keyword: keyword, Timestamp: big.NewInt(1700000000)}
	return &fakeOp{
		hash:   common.HexToHash("0xbb"),
		onWait: f.onWait,
		err:    f.waitErr,
		done: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.count++
			f.added = append(f.added, rec)
		},
	}, nil
}

func (f *fakeContract) RecordCount(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	return f.count, nil
}

func (f *fakeContract) AllRecords(ctx context.Context) ([]contract.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allCalls++
	return f.records, nil
}

type memJournal struct {
	mu      sync.Mutex
	history []storage.Submission
}

func (j *memJournal) EnsureSchema(ctx context.Context) error { return nil }

func (j *memJournal) UpsertSubmission(ctx context.Context, s storage.Submission) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.history = append(j.history, s)
	return nil
}

func (j *memJournal) ListSubmissions(ctx context.Context, account string, limit int) ([]storage.Submission, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []storage.Submission
	for i := len(j.history) - 1; i >= 0; i-- {
		if j.history[i].Account == account {
			out = append(out, j.history[i])
		}
	}
	return out, nil
}

func (j *memJournal) statuses() []storage.SubmissionStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]storage.SubmissionStatus, 0, len(j.history))
	for _, s := range j.history {
		out = append(out, s.Status)
	}
	return out
}

type recorder struct {
	mu   sync.Mutex
	sent []bus.Notification
}

func (r *recorder) Notify(ctx context.Context, n bus.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recorder) levels() []bus.Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bus.Level, 0, len(r.sent))
	for _, n := range r.sent {
		out = append(out, n.Level)
	}
	return out
}
