package coordinator

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// environment
	ErrNoWallet = errors.New("no wallet found, install or configure a wallet")

	// authorization
	ErrNotAuthorized = errors.New("no authorized account, connect a wallet")
	ErrNotConnected  = errors.New("wallet is not connected")

	// validation
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidRecipient = errors.New("invalid recipient address")
	ErrUnknownField     = errors.New("unknown form field")

	// network / chain
	ErrUnavailable       = errors.New("wallet or contract unavailable")
	ErrPartialSubmission = errors.New("value transferred but record not appended")
)

type Field string

const (
	FieldRecipient Field = "recipient"
	FieldAmount    Field = "amount"
	FieldKeyword   Field = "keyword"
	FieldMessage   Field = "message"
)

type FormState struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Keyword   string `json:"keyword"`
	Message   string `json:"message"`
}

// TransactionRecord is a decoded contract record.
type TransactionRecord struct {
	From      common.Address `json:"from"`
	To        common.Address `json:"to"`
	AmountWei *big.Int       `json:"amount_wei"`
	Amount    string         `json:"amount"`
	Message   string         `json:"message"`
	Keyword   string         `json:"keyword"`
	Time      time.Time      `json:"time"`
	Timestamp string         `json:"timestamp"`
}

type State struct {
	Account          common.Address      `json:"account"`
	Connected        bool                `json:"connected"`
	Form             FormState           `json:"form"`
	Submitting       bool                `json:"submitting"`
	TransactionCount uint64              `json:"transaction_count"`
	Transactions     []TransactionRecord `json:"transactions"`
}

// Receipt summarizes a confirmed submission.
type Receipt struct {
	SubmissionID string      `json:"submission_id"`
	TransferHash common.Hash `json:"transfer_hash"`
	RecordHash   common.Hash `json:"record_hash"`
	BlockNumber  uint64      `json:"block_number"`
}
