package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pvzzle/txrecorder/internal/api"
	"github.com/pvzzle/txrecorder/internal/bus"
	"github.com/pvzzle/txrecorder/internal/contract"
	"github.com/pvzzle/txrecorder/internal/coordinator"
	"github.com/pvzzle/txrecorder/internal/ethwatch"
	"github.com/pvzzle/txrecorder/internal/logger"
	"github.com/pvzzle/txrecorder/internal/session"
	"github.com/pvzzle/txrecorder/internal/storage"
	"github.com/pvzzle/txrecorder/internal/storage/kv"
	"github.com/pvzzle/txrecorder/internal/storage/pg"
	"github.com/pvzzle/txrecorder/internal/tg"
	"github.com/pvzzle/txrecorder/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	tgbot "github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

func Run(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	log := logger.New(cfg.LogLevel)

	if !common.IsHexAddress(cfg.ContractAddress) {
		return fmt.Errorf("invalid CONTRACT_ADDRESS %q", cfg.ContractAddress)
	}
	contractAddr := common.HexToAddress(cfg.ContractAddress)

	rpcCl, err := rpc.DialContext(ctx, cfg.EthRPCURL)
	if err != nil {
		return fmt.Errorf("dial eth rpc: %w", err)
	}
	defer rpcCl.Close()
	ethCl := ethclient.NewClient(rpcCl)

	chainID, err := ethCl.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}

	gw, sender, err := buildWallet(cfg, rpcCl, ethCl, log)
	if err != nil {
		return err
	}

	cc, err := contract.New(contractAddr, ethCl, sender, log, contract.Config{PollInterval: cfg.ReceiptPollInterval})
	if err != nil {
		return fmt.Errorf("contract client: %w", err)
	}

	db, err := kv.Open(cfg.BadgerPath)
	if err != nil {
		return fmt.Errorf("open badger: %w", err)
	}
	defer db.Close()
	slot := kv.NewBadger(db, log)

	var journal storage.Repository
	if cfg.PostgresURL != "" {
		pgPool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("pgxpool new: %w", err)
		}
		defer pgPool.Close()

		repo := pg.New(pgPool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		journal = repo
	}

	notifyCh := make(chan bus.Notification, cfg.NotifyBuffer)
	logNotifier := bus.Log{Logger: log.With().Str("component", "notify").Logger()}

	var chatNotifier bus.Notifier = logNotifier
	if cfg.TelegramToken != "" {
		chatNotifier = bus.Channel(notifyCh)
	}

	sessions := session.NewStore(func(id int64) *coordinator.Coordinator {
		notifier := chatNotifier
		if cfg.HTTPAddr != "" && id == cfg.HTTPSessionID {
			notifier = logNotifier
		}
		return coordinator.New(gw, cc, slot, coordinator.Options{
			SessionID: id,
			Journal:   journal,
			Notifier:  notifier,
			Logger:    log,
		})
	})

	if cfg.WatchBlocks {
		watcher := ethwatch.NewWatcher(ethCl, contractAddr, sessions, log, ethwatch.WatcherConfig{
			Workers:     cfg.WatcherWorkers,
			TasksBuffer: cfg.TasksBuffer,
		})
		go func() {
			if err := watcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("watcher stopped")
			}
		}()
	}

	log.Info().
		Str("chain_id", chainID.String()).
		Str("contract", contractAddr.Hex()).
		Str("wallet", cfg.WalletMode).
		Bool("journal", journal != nil).
		Msg("started")

	errCh := make(chan error, 2)

	if cfg.HTTPAddr != "" {
		if _, err := sessions.Get(ctx, cfg.HTTPSessionID); err != nil {
			log.Warn().Err(err).Msg("http session initialization failed")
		}

		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           api.NewAPI(sessions, cfg.HTTPSessionID, log).Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		go func() {
			log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	if cfg.TelegramToken != "" {
		b, err := tgbot.New(cfg.TelegramToken,
			tgbot.WithWorkers(4),
			tgbot.WithNotAsyncHandlers(),
		)
		if err != nil {
			return fmt.Errorf("telegram bot init: %w", err)
		}

		tgSvc := tg.NewService(b, sessions, notifyCh, log)
		go tgSvc.StartNotifyLoop(ctx)
		go func() {
			b.Start(ctx)
			errCh <- nil
		}()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// buildWallet returns a nil gateway when no wallet is configured; the
// coordinator treats that as "no wallet present".
func buildWallet(cfg Config, rpcCl *rpc.Client, ethCl *ethclient.Client, log zerolog.Logger) (coordinator.WalletGateway, contract.Sender, error) {
	switch cfg.WalletMode {
	case WalletKey:
		key, err := wallet.ParseKey(cfg.PrivateKey)
		if err != nil {
			return nil, nil, fmt.Errorf("private key: %w", err)
		}
		gw := wallet.NewKeyGateway(ethCl, key, log)
		log.Info().Str("account", gw.Address().Hex()).Msg("local key wallet")
		return gw, gw, nil
	case WalletRPC:
		gw := wallet.NewRPCGateway(rpcCl, log)
		return gw, gw, nil
	default:
		return nil, nil, nil
	}
}
