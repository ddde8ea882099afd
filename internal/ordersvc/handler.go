// SPDX-License-Identifier: MIT

// Package ordersvc serves the order records and the Kafka publishing
// endpoints. Order creation holds a short-lived distributed lock on the
// product name, so concurrent duplicates are rejected instead of saved
// twice.
package ordersvc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ordermesh/ordermesh/internal/events"
	"github.com/ordermesh/ordermesh/internal/health"
	"github.com/ordermesh/ordermesh/internal/log"
	"github.com/ordermesh/ordermesh/internal/metrics"
	"github.com/ordermesh/ordermesh/internal/store"
	"github.com/ordermesh/ordermesh/internal/web"
)

const (
	defaultLockTTL = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Locker guards order creation per product name.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type orderRequest struct {
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// Service exposes the order record CRUD and publishing surface.
type Service struct {
	orders     store.Orders
	locks      Locker
	lockTTL    time.Duration
	fetchUsers UserFetch
	producer   events.Publisher
	logger     zerolog.Logger
}

// Config wires the order service handler.
type Config struct {
	Orders         store.Orders
	Locks          Locker
	LockTTL        time.Duration
	FetchUsers     UserFetch
	Producer       events.Publisher
	Verifier       web.Verifier
	RequestsPerMin int
	Health         *health.Manager
	Logger         zerolog.Logger
}

// New builds the order service HTTP handler.
func New(cfg Config) http.Handler {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	s := &Service{
		orders:     cfg.Orders,
		locks:      cfg.Locks,
		lockTTL:    cfg.LockTTL,
		fetchUsers: cfg.FetchUsers,
		producer:   cfg.Producer,
		logger:     cfg.Logger,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(web.Instrument(cfg.Logger))
	r.Use(chimw.Recoverer)
	if cfg.RequestsPerMin > 0 {
		r.Use(httprate.LimitByIP(cfg.RequestsPerMin, time.Minute))
	}

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.LiveHandler())
		r.Get("/health/ready", cfg.Health.ReadyHandler())
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/orders", func(r chi.Router) {
		if cfg.Verifier != nil {
			r.Use(web.RequireAuth(cfg.Verifier, cfg.Logger))
		}
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Get("/{id}", s.handleGet)
		r.Delete("/{id}", s.handleDelete)
		r.Post("/kafka", s.handlePublish)
		r.Post("/kafka/batch", s.handlePublishBatch)
	})
	return r
}

func decode(r *http.Request, v any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decode(r, &req); err != nil {
		web.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.ProductName == "" {
		web.WriteBadRequest(w, "productName is required")
		return
	}

	// The product name is the lock key: two creates for the same product
	// inside one TTL window are treated as a duplicate submission.
	ok, err := s.locks.TryAcquire(r.Context(), req.ProductName, s.lockTTL)
	if err != nil {
		metrics.RecordLockAcquisition("error")
		s.logger.Error().Err(err).Str(log.FieldLockKey, req.ProductName).Msg("lock store unavailable")
		web.WriteServiceUnavailable(w, "lock store unavailable")
		return
	}
	if !ok {
		metrics.RecordLockAcquisition("conflict")
		web.WriteConflict(w, "order for this product is already being processed")
		return
	}
	metrics.RecordLockAcquisition("acquired")

	users, err := s.fetchUsers(r.Context(), web.ExtractBearer(r))
	if err != nil {
		s.logger.Error().Err(err).Msg("user fetch failed")
		web.WriteServiceUnavailable(w, "user service not available")
		return
	}
	if len(users) == 0 {
		s.logger.Warn().Str(log.FieldLockKey, req.ProductName).Msg("order rejected: no users available")
		web.WriteServiceUnavailable(w, ErrNoUsers.Error())
		return
	}

	o, err := s.orders.Save(r.Context(), store.Order{
		ProductName: req.ProductName,
		Quantity:    req.Quantity,
		Price:       req.Price,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to save order")
		web.WriteError(w, http.StatusInternalServerError, "failed to save order")
		return
	}
	s.logger.Info().
		Int64(log.FieldOrderID, o.ID).
		Str("product_name", o.ProductName).
		Int("known_users", len(users)).
		Msg("order created")
	web.WriteJSON(w, http.StatusCreated, o)
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list orders")
		web.WriteError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	web.WriteJSON(w, http.StatusOK, orders)
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		web.WriteBadRequest(w, "invalid order id")
		return
	}
	o, err := s.orders.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			web.WriteNotFound(w)
			return
		}
		web.WriteError(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	web.WriteJSON(w, http.StatusOK, o)
}

func (s *Service) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		web.WriteBadRequest(w, "invalid order id")
		return
	}
	if err := s.orders.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			web.WriteNotFound(w)
			return
		}
		web.WriteError(w, http.StatusInternalServerError, "failed to delete order")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePublish publishes one order event. The caller's bearer token is
// attached when present; consumers treat a missing token as valid.
func (s *Service) handlePublish(w http.ResponseWriter, r *http.Request) {
	var ev events.OrderEvent
	if err := decode(r, &ev); err != nil {
		web.WriteBadRequest(w, "invalid request body")
		return
	}
	if ev.OrderID == "" {
		web.WriteBadRequest(w, "orderId is required")
		return
	}
	ev.EventID = uuid.NewString()
	ev.Token = web.ExtractBearer(r)

	if err := s.producer.Publish(r.Context(), ev); err != nil {
		s.logger.Error().Err(err).Str(log.FieldOrderID, ev.OrderID).Msg("event publish failed")
		web.WriteError(w, http.StatusBadGateway, "event publish failed")
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]string{"status": "published", "orderId": ev.OrderID})
}

func (s *Service) handlePublishBatch(w http.ResponseWriter, r *http.Request) {
	var evs []events.OrderEvent
	if err := decode(r, &evs); err != nil {
		web.WriteBadRequest(w, "invalid request body")
		return
	}
	if len(evs) == 0 {
		web.WriteBadRequest(w, "empty batch")
		return
	}
	bearer := web.ExtractBearer(r)
	for i := range evs {
		evs[i].EventID = uuid.NewString()
		evs[i].Token = bearer
	}

	sent, err := events.PublishBatch(r.Context(), s.producer, evs)
	if err != nil {
		s.logger.Error().Err(err).Int("published", sent).Int("batch_size", len(evs)).Msg("batch publish incomplete")
		web.WriteJSON(w, http.StatusBadGateway, map[string]any{
			"status": "partial", "published": sent, "total": len(evs),
		})
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"status": "published", "published": sent})
}
