package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/pvzzle/txrecorder/internal/coordinator"
	"github.com/pvzzle/txrecorder/internal/session"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type API struct {
	sessions  *session.Store
	sessionID int64
	logger    zerolog.Logger
}

// NewAPI serves a single session, the local UI's.
func NewAPI(sessions *session.Store, sessionID int64, logger zerolog.Logger) *API {
	return &API{sessions: sessions, sessionID: sessionID, logger: logger.With().Str("component", "api").Logger()}
}

func (api *API) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/state", api.GetState).Methods("GET")
	router.HandleFunc("/connect", api.Connect).Methods("POST")
	router.HandleFunc("/form/{field}", api.UpdateField).Methods("PUT")
	router.HandleFunc("/submit", api.Submit).Methods("POST")
	router.HandleFunc("/refresh", api.Refresh).Methods("POST")
	router.HandleFunc("/transactions", api.GetTransactions).Methods("GET")
	router.HandleFunc("/count", api.GetCount).Methods("GET")
	router.HandleFunc("/submissions", api.GetSubmissions).Methods("GET")

	return router
}

func (api *API) writeJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		api.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (api *API) writeError(w http.ResponseWriter, err error) {
	api.writeJSONResponse(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, coordinator.ErrInvalidAmount),
		errors.Is(err, coordinator.ErrInvalidRecipient),
		errors.Is(err, coordinator.ErrUnknownField):
		return http.StatusBadRequest
	case errors.Is(err, coordinator.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, coordinator.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, coordinator.ErrNoWallet):
		return http.StatusServiceUnavailable
	case errors.Is(err, coordinator.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// session returns the served coordinator; initialization errors are
// reported through the notifier and do not fail the request.
func (api *API) session(ctx context.Context) *coordinator.Coordinator {
	c, err := api.sessions.Get(ctx, api.sessionID)
	if err != nil {
		api.logger.Warn().Err(err).Msg("session initialization failed")
	}
	return c
}

func (api *API) GetState(w http.ResponseWriter, r *http.Request) {
	api.writeJSONResponse(w, http.StatusOK, api.session(r.Context()).State())
}

func (api *API) Connect(w http.ResponseWriter, r *http.Request) {
	c := api.session(r.Context())

	account, err := c.Connect(r.Context())
	if err != nil {
		api.writeError(w, err)
		return
	}

	api.logger.Info().Str("account", account.Hex()).Msg("Wallet connected")
	api.writeJSONResponse(w, http.StatusOK, map[string]string{"account": account.Hex()})
}

func (api *API) UpdateField(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.logger.Error().Err(err).Msg("Failed to decode form field")
		api.writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid body, expected {\"value\": \"...\"}"})
		return
	}

	c := api.session(r.Context())
	if err := c.UpdateField(coordinator.Field(vars["field"]), body.Value); err != nil {
		api.writeError(w, err)
		return
	}
	api.writeJSONResponse(w, http.StatusOK, c.State().Form)
}

func (api *API) Submit(w http.ResponseWriter, r *http.Request) {
	c := api.session(r.Context())
	if c.Submitting() {
		api.writeJSONResponse(w, http.StatusConflict, map[string]string{"error": "submission already in progress"})
		return
	}

	// a dropped client must not abandon a half-sent submission
	receipt, err := c.Submit(context.WithoutCancel(r.Context()))
	if err != nil {
		api.writeJSONResponse(w, statusFor(err), map[string]interface{}{
			"error":   err.Error(),
			"receipt": receipt,
		})
		return
	}

	api.logger.Info().Str("record_hash", receipt.RecordHash.Hex()).Msg("Transaction submitted")
	api.writeJSONResponse(w, http.StatusCreated, receipt)
}

func (api *API) Refresh(w http.ResponseWriter, r *http.Request) {
	c := api.session(r.Context())
	if err := c.RefreshAll(r.Context()); err != nil {
		api.writeError(w, err)
		return
	}
	api.writeJSONResponse(w, http.StatusOK, c.State())
}

func (api *API) GetTransactions(w http.ResponseWriter, r *http.Request) {
	c := api.session(r.Context())
	if err := c.RefreshTransactions(r.Context()); err != nil {
		api.writeError(w, err)
		return
	}
	api.writeJSONResponse(w, http.StatusOK, c.State().Transactions)
}

func (api *API) GetCount(w http.ResponseWriter, r *http.Request) {
	c := api.session(r.Context())
	if err := c.RefreshCount(r.Context()); err != nil {
		api.writeError(w, err)
		return
	}
	api.writeJSONResponse(w, http.StatusOK, map[string]uint64{"transaction_count": c.State().TransactionCount})
}

func (api *API) GetSubmissions(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = 10
	}

	items, err := api.session(r.Context()).Submissions(r.Context(), limit)
	if err != nil {
		api.logger.Error().Err(err).Msg("Failed to list submissions")
		api.writeJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list submissions"})
		return
	}
	api.writeJSONResponse(w, http.StatusOK, items)
}
