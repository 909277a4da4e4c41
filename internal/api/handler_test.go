package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pvzzle/txrecorder/internal/contract"
	"github.com/pvzzle/txrecorder/internal/coordinator"
	"github.com/pvzzle/txrecorder/internal/session"
	"github.com/pvzzle/txrecorder/internal/storage/kv"
	"github.com/pvzzle/txrecorder/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var (
	account   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	recipient = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

type stubWallet struct {
	accounts []common.Address
	sendErr  error
}

func (w *stubWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if len(w.accounts) == 0 {
		return nil, errors.New("rejected")
	}
	return w.accounts, nil
}
func (w *stubWallet) AuthorizedAccounts(ctx context.Context) ([]common.Address, error) {
	return nil, nil
}
func (w *stubWallet) SendValueTransfer(ctx context.Context, req wallet.TransferRequest) (common.Hash, error) {
	return common.HexToHash("0x01"), w.sendErr
}

type stubOp struct{ c *stubContract }

func (o stubOp) Hash() common.Hash { return common.HexToHash("0x02") }
func (o stubOp) Wait(ctx context.Context) (*types.Receipt, error) {
	o.c.count++
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(5)}, nil
}

type stubContract struct {
	count   uint64
	records []contract.RawRecord
}

func (s *stubContract) AddRecord(ctx context.Context, from, to common.Address, amount *big.Int, message, keyword string) (contract.PendingOperation, error) {
	return stubOp{c: s}, nil
}
func (s *stubContract) RecordCount(ctx context.Context) (uint64, error) { return s.count, nil }
func (s *stubContract) AllRecords(ctx context.Context) ([]contract.RawRecord, error) {
	return s.records, nil
}

func newServer(t *testing.T, w *stubWallet, c *stubContract) *httptest.Server {
	t.Helper()

	sessions := session.NewStore(func(id int64) *coordinator.Coordinator {
		return coordinator.New(w, c, kv.NewMemory(), coordinator.Options{SessionID: id, Logger: zerolog.Nop()})
	})
	srv := httptest.NewServer(NewAPI(sessions, 0, zerolog.Nop()).Router())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]interface{}) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestAPI_SubmitFlow(t *testing.T) {
	c := &stubContract{count: 3}
	srv := newServer(t, &stubWallet{accounts: []common.Address{account}}, c)

	resp, body := do(t, "POST", srv.URL+"/connect", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, account.Hex(), body["account"])

	for field, value := range map[string]string{
		"recipient": recipient.Hex(),
		"amount":    "0.25",
		"keyword":   "tea",
		"message":   "hello",
	} {
		resp, _ = do(t, "PUT", srv.URL+"/form/"+field, `{"value":"`+value+`"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, field)
	}

	resp, body = do(t, "GET", srv.URL+"/count", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 3, body["transaction_count"])

	resp, body = do(t, "POST", srv.URL+"/submit", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.EqualValues(t, 5, body["block_number"])

	resp, body = do(t, "GET", srv.URL+"/state", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 4, body["transaction_count"])
	require.Equal(t, false, body["submitting"])
}

func TestAPI_Errors(t *testing.T) {
	srv := newServer(t, &stubWallet{}, &stubContract{})

	resp, _ := do(t, "POST", srv.URL+"/connect", "")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = do(t, "PUT", srv.URL+"/form/sender", `{"value":"x"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, "PUT", srv.URL+"/form/amount", `not json`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := do(t, "POST", srv.URL+"/submit", "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Contains(t, body["error"], "not connected")
}

func TestAPI_InvalidAmount(t *testing.T) {
	srv := newServer(t, &stubWallet{accounts: []common.Address{account}}, &stubContract{})

	resp, _ := do(t, "POST", srv.URL+"/connect", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	do(t, "PUT", srv.URL+"/form/recipient", `{"value":"`+recipient.Hex()+`"}`)
	do(t, "PUT", srv.URL+"/form/amount", `{"value":"-3"}`)

	resp, _ = do(t, "POST", srv.URL+"/submit", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Transactions(t *testing.T) {
	oneEth := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	c := &stubContract{records: []contract.RawRecord{
		{Sender: account, Receiver: recipient, Amount: oneEth, Message: "m", Keyword: "k", Timestamp: big.NewInt(1700000000)},
	}}
	srv := newServer(t, &stubWallet{}, c)

	resp, err := http.Get(srv.URL + "/transactions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var txs []coordinator.TransactionRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&txs))
	require.Len(t, txs, 1)
	require.Equal(t, "1", txs[0].Amount)
	require.Equal(t, "2023-11-14T22:13:20Z", txs[0].Timestamp)
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusServiceUnavailable, statusFor(coordinator.ErrNoWallet))
	require.Equal(t, http.StatusBadGateway, statusFor(coordinator.ErrUnavailable))
	require.Equal(t, http.StatusInternalServerError, statusFor(errors.New("other")))
}
