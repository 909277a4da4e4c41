// Package ethwatch refreshes live sessions whenever a new block touches the contract.
package ethwatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
)

type WatcherConfig struct {
	Workers     int
	TasksBuffer int
}

// HeadSource is the subset of *ethclient.Client the watcher needs.
type HeadSource interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	BlockByHash(ctx context.Context, hash common.Hash) (*types.Block, error)
}

type Sessions interface {
	IDs() []int64
	Refresh(ctx context.Context, id int64) error
}

type RefreshTask struct {
	SessionID int64
	BlockNum  uint64
}

type Watcher struct {
	client   HeadSource
	contract common.Address
	sessions Sessions

	cfg WatcherConfig

	tasks chan RefreshTask
	wg    sync.WaitGroup

	logger zerolog.Logger
}

func NewWatcher(
	client HeadSource,
	contract common.Address,
	sessions Sessions,
	logger zerolog.Logger,
	cfg WatcherConfig,
) *Watcher {

	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	if cfg.TasksBuffer <= 0 {
		cfg.TasksBuffer = 256
	}

	return &Watcher{
		client:   client,
		contract: contract,
		sessions: sessions,
		cfg:      cfg,
		tasks:    make(chan RefreshTask, cfg.TasksBuffer),
		logger:   logger.With().Str("component", "watcher").Logger(),
	}
}

func (w *Watcher) Start(ctx context.Context) error {
	w.startWorkers(ctx)
	defer w.stopWorkers()

	headers := make(chan *types.Header, 128)

	sub, err := w.client.SubscribeNewHead(ctx, headers)
	if err != nil {
		return fmt.Errorf("SubscribeNewHead: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-sub.Err():
			return fmt.Errorf("subscription error: %w", err)

		case h := <-headers:
			if h == nil {
				continue
			}

			block, err := w.client.BlockByHash(ctx, h.Hash())
			if err != nil {
				w.logger.Warn().Err(err).Str("hash", h.Hash().Hex()).Msg("block fetch error")
				continue
			}

			if err := w.dispatch(ctx, block.NumberU64(), block.Transactions()); err != nil {
				return err
			}
		}
	}
}

// dispatch enqueues one refresh per session when txs touch the contract.
func (w *Watcher) dispatch(ctx context.Context, blockNum uint64, txs types.Transactions) error {
	if !touches(txs, w.contract) {
		return nil
	}

	ids := w.sessions.IDs()
	w.logger.Debug().Uint64("block", blockNum).Int("sessions", len(ids)).Msg("contract touched")

	for _, id := range ids {
		select {
		case w.tasks <- RefreshTask{SessionID: id, BlockNum: blockNum}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (w *Watcher) startWorkers(ctx context.Context) {
	for i := 0; i < w.cfg.Workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()

			for {
				select {
				case <-ctx.Done():
					return

				case task, ok := <-w.tasks:
					if !ok {
						return
					}
					w.handleTask(ctx, task)
				}
			}
		}()
	}
}

func (w *Watcher) stopWorkers() {
	close(w.tasks)
	w.wg.Wait()
}

func (w *Watcher) handleTask(ctx context.Context, task RefreshTask) {
	if err := w.sessions.Refresh(ctx, task.SessionID); err != nil {
		// the coordinator already notified the session
		w.logger.Warn().Err(err).Int64("session", task.SessionID).Uint64("block", task.BlockNum).Msg("refresh failed")
	}
}

func touches(txs types.Transactions, contract common.Address) bool {
	for _, tx := range txs {
		if to := tx.To(); to != nil && *to == contract {
			return true
		}
	}
	return false
}
