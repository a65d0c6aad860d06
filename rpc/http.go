package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nftmarket/core/events"
	"nftmarket/native/assets"
	"nftmarket/native/common"
	"nftmarket/native/market"
	"nftmarket/observability/metrics"
	"nftmarket/state"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeMarketInvalid  = -32021
	codeMarketNotFound = -32022
	codeMarketForbid   = -32023
	codeMarketConflict = -32024
	codeMarketInternal = -32025
)

// Server exposes the marketplace engine over JSON-RPC plus a websocket event
// stream and Prometheus metrics.
type Server struct {
	engine    *market.Engine
	ledger    *assets.Ledger
	accounts  *state.Manager
	broker    *events.Broker
	authToken string
	log       *slog.Logger
}

// NewServer wires the server against the engine and its collaborators. The
// mutating endpoints require the bearer token from NFTMARKET_RPC_TOKEN when
// one is set.
func NewServer(engine *market.Engine, ledger *assets.Ledger, accounts *state.Manager, broker *events.Broker, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		engine:    engine,
		ledger:    ledger,
		accounts:  accounts,
		broker:    broker,
		authToken: strings.TrimSpace(os.Getenv("NFTMARKET_RPC_TOKEN")),
		log:       log,
	}
}

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	r.Post("/", s.handle)
	return r
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: code, Message: message}}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) == 1
}

func isMutating(method string) bool {
	switch method {
	case "market_getListing", "market_getAuction", "market_getRoyalty", "assets_get", "bank_balance":
		return false
	default:
		return true
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body")
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload")
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required")
		return
	}
	if isMutating(req.Method) && !s.authorized(r) {
		metrics.ObserveRPC(req.Method, "unauthorized")
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized")
		return
	}

	result, rpcErr := s.dispatch(&req)
	if rpcErr != nil {
		metrics.ObserveRPC(req.Method, "error")
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message)
		return
	}
	metrics.ObserveRPC(req.Method, "ok")
	writeResult(w, req.ID, result)
}

func (s *Server) dispatch(req *RPCRequest) (interface{}, *RPCError) {
	switch req.Method {
	case "market_list":
		return s.handleList(req)
	case "market_cancel":
		return s.handleCancel(req)
	case "market_buy":
		return s.handleBuy(req)
	case "market_startAuction":
		return s.handleStartAuction(req)
	case "market_placeBid":
		return s.handlePlaceBid(req)
	case "market_withdrawBid":
		return s.handleWithdrawBid(req)
	case "market_endAuction":
		return s.handleEndAuction(req)
	case "market_reclaim":
		return s.handleReclaim(req)
	case "market_getListing":
		return s.handleGetListing(req)
	case "market_getAuction":
		return s.handleGetAuction(req)
	case "market_setRoyalty":
		return s.handleSetRoyalty(req)
	case "market_getRoyalty":
		return s.handleGetRoyalty(req)
	case "assets_mint":
		return s.handleMint(req)
	case "assets_get":
		return s.handleGetItem(req)
	case "bank_deposit":
		return s.handleDeposit(req)
	case "bank_balance":
		return s.handleBalance(req)
	default:
		return nil, &RPCError{Code: codeMethodNotFound, Message: "method not found: " + req.Method}
	}
}

// marketError maps engine sentinels onto the JSON-RPC error space.
func marketError(err error) *RPCError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, market.ErrNotOwner),
		errors.Is(err, market.ErrNotSeller),
		errors.Is(err, market.ErrNotAdmin),
		errors.Is(err, assets.ErrNotItemOwner):
		return &RPCError{Code: codeMarketForbid, Message: err.Error()}
	case errors.Is(err, market.ErrInvalidPrice),
		errors.Is(err, market.ErrInvalidDuration),
		errors.Is(err, market.ErrInvalidPercentage),
		errors.Is(err, market.ErrInvalidAmount),
		errors.Is(err, market.ErrBidTooLow):
		return &RPCError{Code: codeMarketInvalid, Message: err.Error()}
	case errors.Is(err, market.ErrAuctionNotFound),
		errors.Is(err, assets.ErrItemNotFound):
		return &RPCError{Code: codeMarketNotFound, Message: err.Error()}
	case errors.Is(err, market.ErrNoActiveListing),
		errors.Is(err, market.ErrAuctionNotActive),
		errors.Is(err, market.ErrAuctionEnded),
		errors.Is(err, market.ErrAuctionNotYetEnded),
		errors.Is(err, market.ErrNoBidToWithdraw),
		errors.Is(err, market.ErrWinningBidLocked),
		errors.Is(err, market.ErrItemEscrowed),
		errors.Is(err, market.ErrInsufficientFunds),
		errors.Is(err, market.ErrNothingToReclaim),
		errors.Is(err, common.ErrModulePaused),
		errors.Is(err, common.ErrReentrantCall):
		return &RPCError{Code: codeMarketConflict, Message: err.Error()}
	default:
		return &RPCError{Code: codeMarketInternal, Message: err.Error()}
	}
}
