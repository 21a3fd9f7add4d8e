package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"

	"github.com/modu-commerce/order-core/internal/service/models/claim"
	"github.com/modu-commerce/order-core/internal/service/models/money"
	"github.com/modu-commerce/order-core/internal/service/models/order"
	"github.com/modu-commerce/order-core/internal/service/models/orderevent"
	"github.com/modu-commerce/order-core/internal/service/services/settlementsvc"
	"github.com/modu-commerce/order-core/pkg/http/middleware/trace"
	"github.com/modu-commerce/order-core/pkg/logger"
)

type service interface {
	PlaceOrder(ctx context.Context, cmd settlementsvc.PlaceOrderCommand) (*order.Order, error)
	ConfirmOrder(ctx context.Context, cmd settlementsvc.ConfirmOrderCommand) (*order.Order, error)
	ShipOrder(ctx context.Context, cmd settlementsvc.ShipOrderCommand) (*order.Order, error)
	DeliverOrder(ctx context.Context, cmd settlementsvc.DeliverOrderCommand) (*order.Order, error)
	CompleteOrder(ctx context.Context, cmd settlementsvc.CompleteOrderCommand) (*order.Order, error)

	RequestClaim(ctx context.Context, cmd settlementsvc.RequestClaimCommand) (*claim.Claim, error)
	ApproveClaim(ctx context.Context, cmd settlementsvc.ApproveClaimCommand) (*claim.Claim, error)
	StartClaimProgress(ctx context.Context, cmd settlementsvc.StartClaimProgressCommand) (*claim.Claim, error)
	CompleteClaim(ctx context.Context, cmd settlementsvc.CompleteClaimCommand) (*claim.Claim, error)
	RejectClaim(ctx context.Context, cmd settlementsvc.RejectClaimCommand) (*claim.Claim, error)
	CancelClaim(ctx context.Context, cmd settlementsvc.CancelClaimCommand) (*claim.Claim, error)

	GetTimeline(ctx context.Context, orderID string) ([]orderevent.Event, error)
	GetMileageBalance(ctx context.Context, buyerID string) (money.Money, error)
}

type HTTPTransport struct {
	server  *http.Server
	router  *chi.Mux
	service service
}

func NewHTTPTransport(service service) *HTTPTransport {
	router := newRouter()
	server := newServer(router)
	return &HTTPTransport{
		server:  server,
		router:  router,
		service: service,
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.placeOrder)
			r.Post("/{id}/confirm", h.confirmOrder)
			r.Post("/{id}/ship", h.shipOrder)
			r.Post("/{id}/deliver", h.deliverOrder)
			r.Post("/{id}/complete", h.completeOrder)
			r.Get("/{id}/timeline", h.getTimeline)
		})

		r.Route("/claims", func(r chi.Router) {
			r.Post("/", h.requestClaim)
			r.Post("/{id}/approve", h.approveClaim)
			r.Post("/{id}/progress", h.startClaimProgress)
			r.Post("/{id}/complete", h.completeClaim)
			r.Post("/{id}/reject", h.rejectClaim)
			r.Post("/{id}/cancel", h.cancelClaim)
		})

		r.Get("/buyers/{id}/mileage", h.getMileageBalance)
	})
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))
	router.Use(trace.NewTraceMiddleware)

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:    "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler: router,
	}
}
