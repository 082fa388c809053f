// Package server is the reference remote record service: per-collection
// upsert and soft delete, one combined snapshot read, and login.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"arksync/internal/credential"
	"arksync/internal/logging"
	"arksync/internal/metrics"
	"arksync/internal/recordstore"
)

// DefaultMaxBodySize caps a request body.
const DefaultMaxBodySize int64 = 16 * 1024 * 1024

// Server serves a recordstore.Store over HTTP.
type Server struct {
	store    recordstore.Store
	auth     *credential.Authenticator
	logger   *zap.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	validate *validator.Validate
	router   *mux.Router
	maxBody  int64
}

// Option configures a Server.
type Option func(*Server)

// WithAuthenticator enables login and requires a bearer token on the record
// routes.
func WithAuthenticator(a *credential.Authenticator) Option { return func(s *Server) { s.auth = a } }

func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Server) { s.metrics = m } }

// WithGatherer sets what /metrics exposes.
func WithGatherer(g prometheus.Gatherer) Option { return func(s *Server) { s.gatherer = g } }

// WithMaxBodySize caps request bodies; larger ones get 413.
func WithMaxBodySize(n int64) Option { return func(s *Server) { s.maxBody = n } }

// New builds the router.
func New(store recordstore.Store, opts ...Option) *Server {
	s := &Server{
		store:    store,
		gatherer: prometheus.DefaultGatherer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		maxBody:  DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger)
	s.routes()
	return s
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.Use(s.observe)

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", s.login).Methods(http.MethodPost)

	records := api.PathPrefix("").Subrouter()
	if s.auth != nil {
		records.Use(s.requireAuth)
	}
	records.HandleFunc("/collections/{collection}/upsert", s.upsert).Methods(http.MethodPost)
	records.HandleFunc("/collections/{collection}/delete", s.softDelete).Methods(http.MethodPost)
	records.HandleFunc("/sync", s.sync).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	s.router = r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("record service listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.logger.Info("record service shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) upsert(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	rows, err := decodeRows(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	n, err := s.store.Upsert(r.Context(), collection, rows)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// readBody reads the request body up to the size cap, writing the error
// reply itself when it cannot.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err == nil {
		return body, true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return nil, false
	}
	writeError(w, http.StatusBadRequest, "read body: "+err.Error())
	return nil, false
}

// decodeRows accepts one object or an array of objects.
func decodeRows(body []byte) ([]recordstore.Row, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rows []recordstore.Row
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	var row recordstore.Row
	if err := json.Unmarshal(trimmed, &row); err != nil {
		return nil, err
	}
	return []recordstore.Row{row}, nil
}

type deleteRequest struct {
	ID   string `json:"id" validate:"required_without=Code"`
	Code string `json:"code" validate:"required_without=ID"`
}

func (s *Server) softDelete(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]
	field, err := recordstore.KeyField(collection)
	if err != nil {
		s.storeError(w, err)
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var req deleteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key := req.ID
	if field == "code" {
		key = req.Code
	}
	if key == "" {
		writeError(w, http.StatusBadRequest, collection+" are deleted by "+field)
		return
	}
	if err := s.store.SoftDelete(r.Context(), collection, key); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{field: key})
}

func (s *Server) sync(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Snapshot(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeError(w, http.StatusServiceUnavailable, "authentication is not configured")
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var req credential.LoginRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := s.auth.Login(r.Context(), req.Email, req.PasswordHash)
	switch {
	case errors.Is(err, credential.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case err != nil:
		s.storeError(w, err)
	default:
		writeJSON(w, http.StatusOK, sess)
	}
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recordstore.ErrUnknownCollection), errors.Is(err, recordstore.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, recordstore.ErrMissingKey):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("record store failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
