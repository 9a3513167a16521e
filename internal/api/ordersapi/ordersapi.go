// Package ordersapi exposes the order lifecycle, barcode lookup, material
// requirements and notifications as a JSON HTTP API.
package ordersapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/BearBump/FabOrders/internal/logging"
	"github.com/BearBump/FabOrders/internal/models"
	"github.com/BearBump/FabOrders/internal/services/notifications"
)

const (
	barcodeAttempts   = 5
	defaultUnreadSize = 50
	maxUnreadSize     = 500
)

type Lifecycle interface {
	RequestTransition(ctx context.Context, orderID uint64, target models.OrderStatus, actorID uint64, note string) (*models.Order, error)
	MarkDelivered(ctx context.Context, orderID, actorID uint64, signature string) (*models.Order, error)
}

type Barcodes interface {
	ResolveByBarcode(ctx context.Context, code string) (*models.Order, error)
	GenerateUnique(ctx context.Context, now time.Time, attempts int) (string, error)
}

type OrderDetails interface {
	GetByID(ctx context.Context, id uint64) (*models.Order, error)
	ListProfileItems(ctx context.Context, orderID uint64) ([]models.ProfileItem, error)
	ListGlassItems(ctx context.Context, orderID uint64) ([]models.GlassItem, error)
	ListStatusHistory(ctx context.Context, orderID uint64) ([]*models.StatusHistoryEntry, error)
}

type Notifications interface {
	Notify(ctx context.Context, req notifications.Request) (notifications.Result, error)
	MarkRead(ctx context.Context, userID, id uint64) error
	MarkAllRead(ctx context.Context, userID uint64) (int64, error)
	ListUnread(ctx context.Context, userID uint64, limit int) ([]*models.NotificationRecord, error)
}

type OrdersAPI struct {
	lifecycle     Lifecycle
	barcodes      Barcodes
	items         OrderDetails
	notifications Notifications
	log           *zap.Logger
	clock         func() time.Time
}

func New(lc Lifecycle, bc Barcodes, items OrderDetails, n Notifications, log *zap.Logger) *OrdersAPI {
	return &OrdersAPI{
		lifecycle:     lc,
		barcodes:      bc,
		items:         items,
		notifications: n,
		log:           logging.Or(log),
		clock:         time.Now,
	}
}

// Mount регистрирует /api/* на переданном роутере.
func (a *OrdersAPI) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(requestLogger(a.log))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/barcode/{code}", a.GetByBarcode)
			r.Post("/{id}/transitions", a.RequestTransition)
			r.Post("/{id}/delivery", a.MarkDelivered)
			r.Get("/{id}/materials", a.GetMaterials)
			r.Get("/{id}/history", a.GetHistory)
		})
		r.Post("/barcodes", a.GenerateBarcode)

		r.Post("/notifications", a.Notify)
		r.Route("/users/{userID}/notifications", func(r chi.Router) {
			r.Get("/unread", a.ListUnread)
			r.Post("/read-all", a.MarkAllRead)
			r.Post("/{id}/read", a.MarkRead)
		})
	})
}

func (a *OrdersAPI) Router() *chi.Mux {
	r := chi.NewRouter()
	a.Mount(r)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", http.StatusText(http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", http.StatusText(http.StatusMethodNotAllowed))
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
