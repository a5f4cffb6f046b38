// Package main provides the HTTP API server for the pairing settlement core.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opencourt/pairing-settlement/internal/config"
	"github.com/opencourt/pairing-settlement/internal/logger"
	"github.com/opencourt/pairing-settlement/internal/model"
	"github.com/opencourt/pairing-settlement/internal/repository"
	"github.com/opencourt/pairing-settlement/internal/service"
)

const (
	contentTypeJSON = "Content-Type"
	applicationJSON = "application/json"
	exitCode        = 1
)

// APIServer handles HTTP requests for the settlement core.
type APIServer struct {
	fulfillment service.FulfillmentService
	regularizer service.RegularizationService
}

// NewAPIServer creates a new API server instance.
func NewAPIServer(fulfillment service.FulfillmentService, regularizer service.RegularizationService) *APIServer {
	return &APIServer{
		fulfillment: fulfillment,
		regularizer: regularizer,
	}
}

// GatewayWebhook handles POST /webhooks/gateway: normalized payment-gateway
// notifications are dispatched to the matching fulfillment handler. A 2xx
// acknowledges the notification; the gateway retries anything else.
func (s *APIServer) GatewayWebhook(w http.ResponseWriter, r *http.Request) {
	var n model.GatewayNotification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	var (
		err     error
		handled = true
	)

	switch n.Kind() {
	case model.IntentKindFull:
		err = s.fulfillment.HandleFullPayment(r.Context(), &n)
	case model.IntentKindSplit:
		err = s.fulfillment.HandleSplitPayment(r.Context(), &n)
	case model.IntentKindSecondCharge:
		handled, err = s.fulfillment.HandleSecondCharge(r.Context(), &n)
	default:
		// Not ours: another subsystem shares the gateway account.
		handled = false
	}

	if err != nil {
		writeError(w, err)
		return
	}

	if !handled {
		slog.Info("gateway notification acknowledged without action",
			slog.String("intent_id", n.IntentID),
			slog.String("status", n.Status),
		)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true, "handled": handled})
}

// Regularize handles POST /pairings/{id}/regularize.
func (s *APIServer) Regularize(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid pairing id", http.StatusBadRequest)
		return
	}

	actor := service.Actor{
		UserID: r.Header.Get("X-User-Id"),
		Staff:  r.Header.Get("X-Staff") == "true",
	}

	if actor.UserID == "" && !actor.Staff {
		http.Error(w, "Missing X-User-Id header", http.StatusUnauthorized)
		return
	}

	pairing, err := s.regularizer.Regularize(r.Context(), id, actor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pairing)
}

// HealthCheck handles GET /health.
func (*APIServer) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(contentTypeJSON, applicationJSON)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError maps domain errors to HTTP statuses. Error messages are the
// stable codes callers branch on.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, model.ErrInvalidMetadata):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrPairingNotFound),
		errors.Is(err, model.ErrRegistrationNotFound),
		errors.Is(err, model.ErrEventNotFound),
		errors.Is(err, model.ErrSlotNotFound),
		errors.Is(err, model.ErrTicketTypeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrRegularizeForbidden):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrPairingNotSplitMode),
		errors.Is(err, model.ErrPairingNotFullMode),
		errors.Is(err, model.ErrPairingCancelled),
		errors.Is(err, model.ErrPairingNotCancelled),
		errors.Is(err, model.ErrRegularizeNotAllowed),
		errors.Is(err, model.ErrRegistrationTerminal),
		errors.Is(err, model.ErrInsufficientStock):
		status = http.StatusConflict
	case errors.Is(err, model.ErrSplitDeadlinePassed):
		status = http.StatusUnprocessableEntity
	}

	http.Error(w, err.Error(), status)
}

// entrySync hands confirmed pairings to the tournament subsystem. The real
// integration is owned by the tournament service; the API process only needs
// the confirmation recorded.
type entrySync struct{}

func (entrySync) EnsureEntries(_ context.Context, pairingID int64) error {
	slog.Info("tournament entries requested", slog.Int64("pairing_id", pairingID))
	return nil
}

func newRouter(server *APIServer, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-Id", "X-Staff"},
		AllowCredentials: true,
	}))

	r.Post("/webhooks/gateway", server.GatewayWebhook)
	r.Post("/pairings/{id}/regularize", server.Regularize)
	r.Get("/health", server.HealthCheck)

	return r
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}

	loggerInstance := logger.Setup(cfg.LogLevel, "api")
	slog.SetDefault(loggerInstance)

	dbPool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
	defer dbPool.Close()

	store := repository.NewStore(dbPool)
	fulfillment := service.NewFulfillmentServiceImpl(store, entrySync{})
	regularizer := service.NewRegularizationServiceImpl(store, loggerInstance)

	server := NewAPIServer(fulfillment, regularizer)
	router := newRouter(server, cfg.AllowedOrigins)

	slog.Info("starting API server", slog.String("port", cfg.Port))

	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		slog.Error("failed to start server", slog.String("error", err.Error()))
	}
}
