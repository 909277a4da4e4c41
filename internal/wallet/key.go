package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
)

// Backend is the subset of *ethclient.Client used by KeyGateway.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// KeyGateway signs with a single local private key.
type KeyGateway struct {
	backend Backend
	key     *ecdsa.PrivateKey
	address common.Address
	logger  zerolog.Logger

	// serializes nonce allocation
	mu sync.Mutex
}

func NewKeyGateway(backend Backend, key *ecdsa.PrivateKey, logger zerolog.Logger) *KeyGateway {
	return &KeyGateway{
		backend: backend,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		logger:  logger,
	}
}

// ParseKey parses a hex private key with or without the 0x prefix.
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

func (g *KeyGateway) Address() common.Address { return g.address }

func (g *KeyGateway) AuthorizedAccounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{g.address}, nil
}

func (g *KeyGateway) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{g.address}, nil
}

func (g *KeyGateway) SendValueTransfer(ctx context.Context, req TransferRequest) (common.Hash, error) {
	if req.From != g.address {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrUnknownAccount, req.From.Hex())
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	chainID, err := g.backend.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain id: %w", err)
	}
	nonce, err := g.backend.PendingNonceAt(ctx, g.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := g.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas price: %w", err)
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	gas := req.Gas
	if gas == 0 {
		to := req.To
		gas, err = g.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  g.address,
			To:    &to,
			Value: value,
			Data:  req.Data,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
		}
	}

	to := req.To
	unsigned := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     req.Data,
	})
	tx, err := types.SignTx(unsigned, types.LatestSignerForChainID(chainID), g.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}

	if err := g.backend.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}

	g.logger.Info().
		Str("from", g.address.Hex()).
		Str("to", to.Hex()).
		Uint64("nonce", nonce).
		Str("hash", tx.Hash().Hex()).
		Msg("transaction sent")
	return tx.Hash(), nil
}
