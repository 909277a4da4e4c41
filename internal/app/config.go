package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	WalletRPC  = "rpc"
	WalletKey  = "key"
	WalletNone = "none"
)

type Config struct {
	EthRPCURL       string `env:"ETH_RPC_URL,required,notEmpty"`
	ContractAddress string `env:"CONTRACT_ADDRESS,required,notEmpty"`

	// WalletMode selects the gateway: rpc uses the node's unlocked accounts,
	// key signs locally with PrivateKey, none runs without a wallet.
	WalletMode string `env:"WALLET_MODE"`
	PrivateKey string `env:"PRIVATE_KEY"`

	BadgerPath  string `env:"BADGER_PATH"`
	PostgresURL string `env:"POSTGRES_URL"`

	TelegramToken string `env:"TELEGRAM_TOKEN"`
	HTTPAddr      string `env:"HTTP_ADDR"`
	HTTPSessionID int64  `env:"HTTP_SESSION_ID"`

	WatchBlocks    bool `env:"WATCH_BLOCKS"`
	WatcherWorkers int  `env:"WATCHER_WORKERS"`
	TasksBuffer    int  `env:"TASKS_BUFFER"`
	NotifyBuffer   int  `env:"NOTIFY_BUFFER"`

	ReceiptPollInterval time.Duration `env:"RECEIPT_POLL_INTERVAL"`
	LogLevel            string        `env:"LOG_LEVEL"`
}

func LoadConfig() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		fmt.Println("Warning: .env file not found, relying on environment variables")
	}

	config := Config{
		WalletMode:          WalletRPC,
		BadgerPath:          "data/badger",
		WatcherWorkers:      4,
		TasksBuffer:         256,
		NotifyBuffer:        1024,
		ReceiptPollInterval: 2 * time.Second,
		LogLevel:            "info",
	}

	if err := env.Parse(&config); err != nil {
		return Config{}, err
	}
	if err := config.validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c Config) validate() error {
	switch c.WalletMode {
	case WalletRPC, WalletNone:
	case WalletKey:
		if c.PrivateKey == "" {
			return fmt.Errorf("WALLET_MODE=key requires PRIVATE_KEY")
		}
	default:
		return fmt.Errorf("unknown WALLET_MODE %q", c.WalletMode)
	}
	if c.TelegramToken == "" && c.HTTPAddr == "" {
		return fmt.Errorf("nothing to serve: set TELEGRAM_TOKEN or HTTP_ADDR")
	}
	return nil
}
