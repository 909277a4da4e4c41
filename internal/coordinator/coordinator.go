// Package coordinator holds the state of one wallet session: the connected
// account, the transfer form, the submission flag and the contract's record
// count and history.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"

	"github.com/pvzzle/txrecorder/internal/bus"
	"github.com/pvzzle/txrecorder/internal/contract"
	"github.com/pvzzle/txrecorder/internal/ethunits"
	"github.com/pvzzle/txrecorder/internal/storage"
	"github.com/pvzzle/txrecorder/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CountKey is the durable slot holding the last known record count.
const CountKey = "transactionCount"

type WalletGateway interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	AuthorizedAccounts(ctx context.Context) ([]common.Address, error)
	SendValueTransfer(ctx context.Context, req wallet.TransferRequest) (common.Hash, error)
}

type ContractClient interface {
	AddRecord(ctx context.Context, from, to common.Address, amount *big.Int, message, keyword string) (contract.PendingOperation, error)
	RecordCount(ctx context.Context) (uint64, error)
	AllRecords(ctx context.Context) ([]contract.RawRecord, error)
}

type Options struct {
	// SessionID is copied into every notification.
	SessionID int64
	// Journal is optional.
	Journal  storage.Repository
	Notifier bus.Notifier
	Logger   zerolog.Logger
}

type Coordinator struct {
	wallet   WalletGateway
	contract ContractClient
	slot     storage.KV
	journal  storage.Repository
	notifier bus.Notifier
	session  int64
	logger   zerolog.Logger

	mu           sync.RWMutex
	account      common.Address
	form         FormState
	submitting   bool
	count        uint64
	countFresh   bool
	transactions []TransactionRecord
}

// New builds a coordinator. A nil gw means no wallet is present.
// The last cached count is loaded from slot so it is available before any network call.
func New(gw WalletGateway, cc ContractClient, slot storage.KV, opts Options) *Coordinator {
	if opts.Notifier == nil {
		opts.Notifier = bus.Discard{}
	}

	c := &Coordinator{
		wallet:   gw,
		contract: cc,
		slot:     slot,
		journal:  opts.Journal,
		notifier: opts.Notifier,
		session:  opts.SessionID,
		logger:   opts.Logger.With().Int64("session", opts.SessionID).Logger(),
	}

	if slot != nil {
		v, err := slot.Get(CountKey)
		switch {
		case err == nil:
			if n, perr := strconv.ParseUint(v, 10, 64); perr == nil {
				c.count = n
			} else {
				c.logger.Warn().Str("value", v).Msg("ignoring malformed cached count")
			}
		case !errors.Is(err, storage.ErrNotFound):
			c.logger.Warn().Err(err).Msg("cached count unavailable")
		}
	}

	return c
}

func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	txs := make([]TransactionRecord, len(c.transactions))
	for i, tx := range c.transactions {
		txs[i] = tx
		if tx.AmountWei != nil {
			txs[i].AmountWei = new(big.Int).Set(tx.AmountWei)
		}
	}

	return State{
		Account:          c.account,
		Connected:        c.account != (common.Address{}),
		Form:             c.form,
		Submitting:       c.submitting,
		TransactionCount: c.count,
		Transactions:     txs,
	}
}

func (c *Coordinator) Account() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account
}

func (c *Coordinator) Submitting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.submitting
}

// Initialize picks up an already authorized account and, if there is one,
// loads history and count. Without a wallet it fails with ErrNoWallet.
func (c *Coordinator) Initialize(ctx context.Context) error {
	if c.wallet == nil {
		return c.fail(ctx, ErrNoWallet)
	}

	accounts, err := c.wallet.AuthorizedAccounts(ctx)
	if err != nil {
		return c.fail(ctx, fmt.Errorf("%w: %w", ErrUnavailable, err))
	}
	if len(accounts) == 0 {
		c.logger.Info().Msg("no authorized accounts")
		c.notify(ctx, bus.LevelWarning, "No accounts found. Please connect your wallet.")
		return nil
	}

	c.setAccount(accounts[0])
	return c.RefreshAll(ctx)
}

// Connect requests authorization and adopts the first authorized account.
// State is left untouched on failure.
func (c *Coordinator) Connect(ctx context.Context) (common.Address, error) {
	if c.wallet == nil {
		return common.Address{}, c.fail(ctx, ErrNoWallet)
	}

	accounts, err := c.wallet.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, c.fail(ctx, fmt.Errorf("%w: %w", ErrNotAuthorized, err))
	}
	if len(accounts) == 0 {
		return common.Address{}, c.fail(ctx, ErrNotAuthorized)
	}

	c.setAccount(accounts[0])
	c.notify(ctx, bus.LevelInfo, "Connected "+accounts[0].Hex())
	return accounts[0], nil
}

// UpdateField sets a single form field. Values are validated on Submit.
func (c *Coordinator) UpdateField(field Field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch field {
	case FieldRecipient:
		c.form.Recipient = value
	case FieldAmount:
		c.form.Amount = value
	case FieldKeyword:
		c.form.Keyword = value
	case FieldMessage:
		c.form.Message = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// RefreshTransactions replaces the history with the contract's full record list.
func (c *Coordinator) RefreshTransactions(ctx context.Context) error {
	if c.contract == nil {
		return c.fail(ctx, ErrUnavailable)
	}

	raw, err := c.contract.AllRecords(ctx)
	if err != nil {
		return c.fail(ctx, fmt.Errorf("%w: %w", ErrUnavailable, err))
	}

	txs := make([]TransactionRecord, 0, len(raw))
	for _, r := range raw {
		txs = append(txs, DecodeRecord(r))
	}

	c.mu.Lock()
	c.transactions = txs
	c.mu.Unlock()

	c.logger.Debug().Int("count", len(txs)).Msg("transactions refreshed")
	return nil
}

// RefreshCount reads the record count and stores it in memory and in the durable slot.
func (c *Coordinator) RefreshCount(ctx context.Context) error {
	if c.contract == nil {
		return c.fail(ctx, ErrUnavailable)
	}

	n, err := c.contract.RecordCount(ctx)
	if err != nil {
		return c.fail(ctx, fmt.Errorf("%w: %w", ErrUnavailable, err))
	}

	c.mu.Lock()
	if c.countFresh && n < c.count {
		// never move backwards within a session
		c.logger.Warn().Uint64("read", n).Uint64("known", c.count).Msg("stale record count ignored")
		n = c.count
	}
	c.count = n
	c.countFresh = true
	c.mu.Unlock()

	if c.slot != nil {
		if err := c.slot.Set(CountKey, strconv.FormatUint(n, 10)); err != nil {
			c.logger.Warn().Err(err).Msg("cache record count")
		}
	}
	return nil
}

// RefreshAll reloads history and count.
func (c *Coordinator) RefreshAll(ctx context.Context) error {
	errTx := c.RefreshTransactions(ctx)
	errCount := c.RefreshCount(ctx)
	return errors.Join(errTx, errCount)
}

// Submissions lists journaled submissions of the connected account.
func (c *Coordinator) Submissions(ctx context.Context, limit int) ([]storage.Submission, error) {
	account := c.Account()
	if c.journal == nil || account == (common.Address{}) {
		return nil, nil
	}
	return c.journal.ListSubmissions(ctx, account.Hex(), limit)
}

func (c *Coordinator) setAccount(a common.Address) {
	c.mu.Lock()
	c.account = a
	c.mu.Unlock()
	c.logger.Info().Str("account", a.Hex()).Msg("account connected")
}

func (c *Coordinator) setSubmitting(v bool) {
	c.mu.Lock()
	c.submitting = v
	c.mu.Unlock()
}

// fail logs err, publishes it to the user and returns it.
func (c *Coordinator) fail(ctx context.Context, err error) error {
	c.logger.Error().Err(err).Msg("operation failed")
	c.notify(ctx, bus.LevelError, err.Error())
	return err
}

func (c *Coordinator) notify(ctx context.Context, level bus.Level, text string) {
	c.notifier.Notify(ctx, bus.Notification{ChatID: c.session, Level: level, Text: text})
}

// DecodeRecord converts a raw contract record into its display form.
func DecodeRecord(r contract.RawRecord) TransactionRecord {
	amount := new(big.Int)
	if r.Amount != nil {
		amount.Set(r.Amount)
	}
	tm := ethunits.EpochTime(r.Timestamp)

	return TransactionRecord{
		From:      r.Sender,
		To:        r.Receiver,
		AmountWei: amount,
		Amount:    ethunits.FormatEther(amount),
		Message:   r.Message,
		Keyword:   r.Keyword,
		Time:      tm,
		Timestamp: ethunits.FormatTime(tm),
	}
}

func parseRecipient(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidRecipient, s)
	}
	return common.HexToAddress(s), nil
}

func newSubmissionID() string { return uuid.NewString() }
