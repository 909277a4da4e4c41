package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
)

const codeMethodNotFound = -32601

// Caller is the subset of *rpc.Client used by RPCGateway.
type Caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// RPCGateway talks to a provider that manages accounts itself
// (a dev node, a signer proxy, an injected provider bridge).
type RPCGateway struct {
	rpc    Caller
	logger zerolog.Logger
}

func NewRPCGateway(c Caller, logger zerolog.Logger) *RPCGateway {
	return &RPCGateway{rpc: c, logger: logger}
}

func (g *RPCGateway) AuthorizedAccounts(ctx context.Context) ([]common.Address, error) {
	var out []common.Address
	if err := g.rpc.CallContext(ctx, &out, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("eth_accounts: %w", err)
	}
	return out, nil
}

// RequestAccounts asks the provider to authorize accounts. Providers that do
// not implement eth_requestAccounts are treated as already authorized.
func (g *RPCGateway) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var out []common.Address
	err := g.rpc.CallContext(ctx, &out, "eth_requestAccounts")

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeMethodNotFound {
		g.logger.Debug().Msg("eth_requestAccounts not supported, falling back to eth_accounts")
		return g.AuthorizedAccounts(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("eth_requestAccounts: %w", err)
	}
	return out, nil
}

func (g *RPCGateway) SendValueTransfer(ctx context.Context, req TransferRequest) (common.Hash, error) {
	arg := map[string]interface{}{
		"from": req.From,
		"to":   req.To,
	}
	if req.Gas > 0 {
		arg["gas"] = hexutil.Uint64(req.Gas)
	}
	if req.Value != nil {
		arg["value"] = (*hexutil.Big)(req.Value)
	}
	if len(req.Data) > 0 {
		arg["data"] = hexutil.Bytes(req.Data)
	}

	var hash common.Hash
	if err := g.rpc.CallContext(ctx, &hash, "eth_sendTransaction", arg); err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendTransaction: %w", err)
	}

	g.logger.Info().
		Str("from", req.From.Hex()).
		Str("to", req.To.Hex()).
		Str("hash", hash.Hex()).
		Msg("transaction sent")
	return hash, nil
}
