package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"Pedigree/internal/chain"
	"Pedigree/internal/command"
	"Pedigree/internal/currency"
	"Pedigree/internal/ledger"
	"Pedigree/internal/logger"
	"Pedigree/internal/pool"
	"Pedigree/internal/processor"
	"Pedigree/internal/snapshot"
	"Pedigree/internal/storage"
)

const (
	// maxCommandSize is the maximum command body size in bytes.
	maxCommandSize = 64 << 10

	// defaultEventLimit is the number of events returned without a limit parameter.
	defaultEventLimit = 50
)

// Submitter accepts commands for inclusion in the next block.
type Submitter interface {
	Submit(cmd command.Command) error
	SubmitUnsigned(cmd command.Command) error
	Len() int
}

// ChainReader exposes block execution state for queries.
type ChainReader interface {
	Height() uint64
	Nonce(acct ledger.AccountID) (uint64, error)
	RecentEvents(limit int) []processor.Event
	Receipt(hash string) (chain.Receipt, bool)
	Snapshot() ([]byte, error)
}

// Server is the HTTP API server.
type Server struct {
	addr        string           // addr is the HTTP listen address
	submitter   Submitter        // submitter accepts commands
	chain       ChainReader      // chain provides block state
	db          storage.KV       // db is read for ledger queries
	params      processor.Params // params are reported by /status
	existential uint64           // existential is the existential deposit of balances
	server      *http.Server     // server is the underlying HTTP server
}

// New creates a new HTTP API server.
func New(addr string, submitter Submitter, chain ChainReader, db storage.KV, params processor.Params, existentialDeposit uint64) *Server {
	return &Server{
		addr:        addr,
		submitter:   submitter,
		chain:       chain,
		db:          db,
		params:      params,
		existential: existentialDeposit,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tx", s.handleSubmit)
	mux.HandleFunc("POST /tx/unsigned", s.handleSubmitUnsigned)
	mux.HandleFunc("GET /tx/{hash}", s.handleReceipt)
	mux.HandleFunc("GET /assets/{id}", s.handleAsset)
	mux.HandleFunc("GET /listings", s.handleListings)
	mux.HandleFunc("GET /accounts/{account}", s.handleAccount)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /snapshot", s.handleSnapshot)

	return withRequestID(mux)
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http api started", "addr", s.addr)

		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// withRequestID tags every request with an id, echoed in X-Request-Id.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set("X-Request-Id", id)
		logger.Debug("http request", "id", id, "method", r.Method, "path", r.URL.Path)

		next.ServeHTTP(w, r)
	})
}

// handleSubmit handles POST /tx requests.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	cmd, ok := readCommand(w, r)
	if !ok {
		return
	}

	if err := validateSigned(cmd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.submitter.Submit(cmd); err != nil {
		writeError(w, submitStatus(err), err.Error())
		return
	}

	s.accepted(w, cmd)
}

// handleSubmitUnsigned handles POST /tx/unsigned requests.
func (s *Server) handleSubmitUnsigned(w http.ResponseWriter, r *http.Request) {
	cmd, ok := readCommand(w, r)
	if !ok {
		return
	}

	if cmd.Origin.Kind != command.OriginNone {
		writeError(w, http.StatusBadRequest, "unsigned path takes no sender")
		return
	}

	if err := s.submitter.SubmitUnsigned(cmd); err != nil {
		writeError(w, submitStatus(err), err.Error())
		return
	}

	s.accepted(w, cmd)
}

// accepted writes the 202 response for an admitted command.
func (s *Server) accepted(w http.ResponseWriter, cmd command.Command) {
	hash := cmd.Hash()
	logger.Debug("command submitted", "hash", hex.EncodeToString(hash[:8]), "call", cmd.Call.Kind.String())

	writeJSON(w, http.StatusAccepted, map[string]string{
		"hash": hex.EncodeToString(hash[:]),
	})
}

// handleReceipt handles GET /tx/{hash} requests.
func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, ok := s.chain.Receipt(r.PathValue("hash"))
	if !ok {
		writeError(w, http.StatusNotFound, "receipt not found")
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// assetResponse is the JSON form of an asset and its maps.
type assetResponse struct {
	ID      ledger.AssetID   `json:"id"`
	DNA     ledger.DNA       `json:"dna"`
	Label   ledger.Label     `json:"label"`
	Owner   ledger.AccountID `json:"owner"`
	Listed  bool             `json:"listed"`
	Parents *ledger.Parents  `json:"parents,omitempty"`
}

// handleAsset handles GET /assets/{id} requests.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	raw, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid asset id")
		return
	}

	id := ledger.AssetID(raw)
	store := ledger.NewStore(s.db)

	asset, found, err := store.Asset(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !found {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}

	resp := assetResponse{ID: id, DNA: asset.DNA, Label: asset.Label}

	if resp.Owner, _, err = store.Owner(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if resp.Listed, err = store.IsListed(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	parents, bred, err := store.Parents(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if bred {
		resp.Parents = &parents
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleListings handles GET /listings requests.
func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	ids := []ledger.AssetID{}

	err := ledger.NewStore(s.db).Listings(func(id ledger.AssetID) error {
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"listings": ids,
		"price":    s.params.SalePrice,
	})
}

// handleAccount handles GET /accounts/{account} requests.
func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := ledger.ParseAccountID(r.PathValue("account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account")
		return
	}

	balance, err := currency.NewBalances(s.db, s.existential).Balance(acct)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	nonce, err := s.chain.Nonce(acct)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account": acct,
		"balance": balance,
		"nonce":   nonce,
	})
}

// handleEvents handles GET /events requests.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": s.chain.RecentEvents(limit),
	})
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleStatus handles GET /status requests.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	store := ledger.NewStore(s.db)

	next, err := store.NextID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	version, err := store.SchemaVersion()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"height":        s.chain.Height(),
		"nextId":        next,
		"schemaVersion": version,
		"pending":       s.submitter.Len(),
		"creationFee":   s.params.CreationFee,
		"salePrice":     s.params.SalePrice,
		"treasury":      s.params.Treasury,
		"breedPolicy":   s.params.BreedPolicy.String(),
	})
}

// handleSnapshot handles GET /snapshot requests with a zstd-compressed export.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := s.chain.Snapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	compressed, err := snapshot.Compress(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/zstd")
	w.WriteHeader(http.StatusOK)
	w.Write(compressed)
}

// readCommand decodes the JSON command body, writing a 400 on failure.
func readCommand(w http.ResponseWriter, r *http.Request) (command.Command, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return command.Command{}, false
	}

	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty command")
		return command.Command{}, false
	}

	var cmd command.Command
	if err := json.Unmarshal(body, &cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid command: "+err.Error())
		return command.Command{}, false
	}

	return cmd, true
}

// submitStatus maps a pool or validator error to an HTTP status.
func submitStatus(err error) int {
	switch {
	case errors.Is(err, pool.ErrPoolFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, pool.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, processor.ErrUnauthorizedCall), errors.Is(err, pool.ErrNoValidator):
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
