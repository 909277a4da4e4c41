// Package wallet provides account discovery, authorization and raw
// transaction submission on top of a JSON-RPC provider or a local key.
package wallet

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TransferGas is the fixed gas budget of a plain value transfer (0x5208).
const TransferGas uint64 = 21000

var (
	ErrNoAccounts     = errors.New("no accounts authorized")
	ErrUnknownAccount = errors.New("account is not managed by this wallet")
)

// TransferRequest describes a transaction to sign and submit.
// Gas == 0 lets the wallet estimate it.
type TransferRequest struct {
	From  common.Address
	To    common.Address
	Gas   uint64
	Value *big.Int
	Data  []byte
}

type Gateway interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	AuthorizedAccounts(ctx context.Context) ([]common.Address, error)
	SendValueTransfer(ctx context.Context, req TransferRequest) (common.Hash, error)
}
