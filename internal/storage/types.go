package storage

import "time"

type SubmissionStatus string

const (
	StatusPending      SubmissionStatus = "pending"
	StatusTransferSent SubmissionStatus = "transfer_sent"
	StatusRecordSent   SubmissionStatus = "record_sent"
	StatusConfirmed    SubmissionStatus = "confirmed"
	StatusFailed       SubmissionStatus = "failed"
	// value moved but the record was not appended
	StatusPartial SubmissionStatus = "partial"
)

type Submission struct {
	ID        string `json:"id"`
	Account   string `json:"account"`
	Recipient string `json:"recipient"`
	AmountWei string `json:"amount_wei"` // big.Int as decimal string
	Keyword   string `json:"keyword"`
	Message   string `json:"message"`

	TransferHash *string `json:"transfer_hash,omitempty"`
	RecordHash   *string `json:"record_hash,omitempty"`
	BlockNum     *uint64 `json:"block_number,omitempty"`

	Status SubmissionStatus `json:"status"`
	Error  *string          `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
