package coordinator

import (
	"context"
	"fmt"

	"github.com/pvzzle/txrecorder/internal/bus"
	"github.com/pvzzle/txrecorder/internal/ethunits"
	"github.com/pvzzle/txrecorder/internal/storage"
	"github.com/pvzzle/txrecorder/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
)

// Submit sends the form amount to the recipient, appends a record to the
// contract and waits for the record to be mined.
//
// The value transfer and the contract call are two independent transactions.
// If the transfer is accepted but the record fails, the error wraps
// ErrPartialSubmission and the journal entry is marked partial.
// Submitting is reset on every return path.
func (c *Coordinator) Submit(ctx context.Context) (Receipt, error) {
	c.mu.RLock()
	account, form := c.account, c.form
	c.mu.RUnlock()

	if c.wallet == nil || c.contract == nil || account == (common.Address{}) {
		return Receipt{}, c.fail(ctx, ErrNotConnected)
	}

	amount, err := ethunits.ParseEther(form.Amount)
	if err != nil {
		return Receipt{}, c.fail(ctx, fmt.Errorf("%w: %w", ErrInvalidAmount, err))
	}
	to, err := parseRecipient(form.Recipient)
	if err != nil {
		return Receipt{}, c.fail(ctx, err)
	}

	c.setSubmitting(true)
	defer c.setSubmitting(false)

	sub := storage.Submission{
		ID:        newSubmissionID(),
		Account:   account.Hex(),
		Recipient: to.Hex(),
		AmountWei: amount.String(),
		Keyword:   form.Keyword,
		Message:   form.Message,
		Status:    storage.StatusPending,
	}
	c.record(ctx, sub)

	log := c.logger.With().Str("submission", sub.ID).Logger()

	transferHash, err := c.wallet.SendValueTransfer(ctx, wallet.TransferRequest{
		From:  account,
		To:    to,
		Gas:   wallet.TransferGas,
		Value: amount,
	})
	if err != nil {
		c.recordFailure(ctx, sub, storage.StatusFailed, err)
		return Receipt{}, c.fail(ctx, fmt.Errorf("%w: transfer: %w", ErrUnavailable, err))
	}
	sub.TransferHash = hexPtr(transferHash)
	sub.Status = storage.StatusTransferSent
	c.record(ctx, sub)
	log.Info().Str("hash", transferHash.Hex()).Msg("value transfer sent")

	receipt := Receipt{SubmissionID: sub.ID, TransferHash: transferHash}

	op, err := c.contract.AddRecord(ctx, account, to, amount, form.Message, form.Keyword)
	if err != nil {
		c.recordFailure(ctx, sub, storage.StatusPartial, err)
		return receipt, c.fail(ctx, fmt.Errorf("%w: %w (transfer %s): %w", ErrUnavailable, ErrPartialSubmission, transferHash.Hex(), err))
	}
	receipt.RecordHash = op.Hash()
	sub.RecordHash = hexPtr(op.Hash())
	sub.Status = storage.StatusRecordSent
	c.record(ctx, sub)
	log.Info().Str("hash", op.Hash().Hex()).Msg("waiting for record confirmation")

	mined, err := op.Wait(ctx)
	if err != nil {
		c.recordFailure(ctx, sub, storage.StatusPartial, err)
		return receipt, c.fail(ctx, fmt.Errorf("%w: %w (transfer %s): %w", ErrUnavailable, ErrPartialSubmission, transferHash.Hex(), err))
	}
	if mined != nil && mined.BlockNumber != nil {
		bn := mined.BlockNumber.Uint64()
		receipt.BlockNumber = bn
		sub.BlockNum = &bn
	}
	sub.Status = storage.StatusConfirmed
	c.record(ctx, sub)
	log.Info().Uint64("block", receipt.BlockNumber).Msg("record confirmed")

	c.notify(ctx, bus.LevelInfo, fmt.Sprintf("Transaction recorded: %s", op.Hash().Hex()))

	if err := c.RefreshCount(ctx); err != nil {
		return receipt, err
	}
	return receipt, nil
}

// record writes the submission to the journal. Journal errors never fail a submission.
func (c *Coordinator) record(ctx context.Context, sub storage.Submission) {
	if c.journal == nil {
		return
	}
	if err := c.journal.UpsertSubmission(ctx, sub); err != nil {
		c.logger.Warn().Err(err).Str("submission", sub.ID).Msg("journal write failed")
	}
}

func (c *Coordinator) recordFailure(ctx context.Context, sub storage.Submission, status storage.SubmissionStatus, cause error) {
	msg := cause.Error()
	sub.Status = status
	sub.Error = &msg
	c.record(ctx, sub)
}

func hexPtr(h common.Hash) *string {
	s := h.Hex()
	return &s
}
