package contract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/time/rate"
)

// PendingOperation is a submitted state-changing call awaiting inclusion.
type PendingOperation interface {
	Hash() common.Hash
	Wait(ctx context.Context) (*types.Receipt, error)
}

type pendingTx struct {
	hash     common.Hash
	receipts ReceiptReader
	every    time.Duration
}

func newPendingTx(hash common.Hash, receipts ReceiptReader, every time.Duration) *pendingTx {
	return &pendingTx{hash: hash, receipts: receipts, every: every}
}

func (p *pendingTx) Hash() common.Hash { return p.hash }

// Wait polls for the receipt until it appears or ctx is done.
func (p *pendingTx) Wait(ctx context.Context) (*types.Receipt, error) {
	lim := rate.NewLimiter(rate.Every(p.every), 1)

	for {
		if err := lim.Wait(ctx); err != nil {
			return nil, err
		}

		receipt, err := p.receipts.TransactionReceipt(ctx, p.hash)
		if errors.Is(err, ethereum.NotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("receipt %s: %w", p.hash.Hex(), err)
		}

		if receipt.Status == types.ReceiptStatusFailed {
			return receipt, fmt.Errorf("%w: %s", ErrReverted, p.hash.Hex())
		}
		return receipt, nil
	}
}
