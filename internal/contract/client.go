// Package contract binds the on-chain Transactions contract.
package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/pvzzle/txrecorder/internal/wallet"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
)

const defaultPollInterval = 2 * time.Second

var (
	ErrReverted      = errors.New("transaction reverted")
	ErrCountOverflow = errors.New("record count does not fit uint64")
)

// RawRecord mirrors the contract's TransferStruct.
type RawRecord struct {
	Sender    common.Address
	Receiver  common.Address
	Amount    *big.Int
	Message   string
	Timestamp *big.Int
	Keyword   string
}

// Sender submits transactions on behalf of an authorized account.
type Sender interface {
	SendValueTransfer(ctx context.Context, req wallet.TransferRequest) (common.Hash, error)
}

type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Backend is the subset of *ethclient.Client the client reads through.
type Backend interface {
	bind.ContractCaller
	ReceiptReader
}

type Config struct {
	// PollInterval is the receipt polling period while waiting for confirmation.
	PollInterval time.Duration
}

type Client struct {
	address  common.Address
	abi      abi.ABI
	bound    *bind.BoundContract
	sender   Sender
	receipts ReceiptReader

	cfg    Config
	logger zerolog.Logger
}

func New(address common.Address, backend Backend, sender Sender, logger zerolog.Logger, cfg Config) (*Client, error) {
	parsed, err := ParseABI()
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	return &Client{
		address:  address,
		abi:      parsed,
		bound:    bind.NewBoundContract(address, parsed, backend, nil, nil),
		sender:   sender,
		receipts: backend,
		cfg:      cfg,
		logger:   logger.With().Str("contract", address.Hex()).Logger(),
	}, nil
}

func (c *Client) Address() common.Address { return c.address }

// AddRecord sends addToBlockchain from the given account. The returned
// operation resolves once the call is mined.
func (c *Client) AddRecord(ctx context.Context, from, to common.Address, amount *big.Int, message, keyword string) (PendingOperation, error) {
	if amount == nil {
		amount = new(big.Int)
	}
	data, err := c.abi.Pack(methodAddRecord, to, amount, message, keyword)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", methodAddRecord, err)
	}

	hash, err := c.sender.SendValueTransfer(ctx, wallet.TransferRequest{
		From: from,
		To:   c.address,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", methodAddRecord, err)
	}

	c.logger.Info().Str("hash", hash.Hex()).Str("from", from.Hex()).Msg("record submitted")
	return newPendingTx(hash, c.receipts, c.cfg.PollInterval), nil
}

func (c *Client) RecordCount(ctx context.Context) (uint64, error) {
	var out []interface{}
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, methodRecordCount); err != nil {
		return 0, fmt.Errorf("call %s: %w", methodRecordCount, err)
	}

	n := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	if n == nil || !n.IsUint64() {
		return 0, fmt.Errorf("%w: %s", ErrCountOverflow, n.String())
	}
	return n.Uint64(), nil
}

func (c *Client) AllRecords(ctx context.Context) ([]RawRecord, error) {
	var out []interface{}
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, methodAllRecords); err != nil {
		return nil, fmt.Errorf("call %s: %w", methodAllRecords, err)
	}

	records := *abi.ConvertType(out[0], new([]RawRecord)).(*[]RawRecord)
	c.logger.Debug().Int("count", len(records)).Msg("records read")
	return records, nil
}
