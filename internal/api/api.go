// Package api exposes the HTTP surface of the backend: REST handlers for
// clients, products, orders, reports, and the session endpoints.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/distriplus/backend/internal/auth"
	"github.com/distriplus/backend/internal/domain/client"
	"github.com/distriplus/backend/internal/domain/order"
	"github.com/distriplus/backend/internal/domain/product"
	"github.com/distriplus/backend/internal/domain/user"
)

const requestTimeout = 60 * time.Second

// Handler bundles the domain services behind the HTTP API.
type Handler struct {
	lg       *zap.Logger
	validate *validator.Validate

	auth     *auth.Service
	users    *user.Service
	clients  *client.Service
	products *product.Service
	orders   *order.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	lg *zap.Logger,
	authService *auth.Service,
	users *user.Service,
	clients *client.Service,
	products *product.Service,
	orders *order.Service,
) *Handler {
	return &Handler{
		lg:       lg,
		validate: validator.New(),
		auth:     authService,
		users:    users,
		clients:  clients,
		products: products,
		orders:   orders,
	}
}

// Router assembles the chi router. Everything except the session endpoints
// requires a valid access token; user management additionally requires the
// admin role.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(h.logRequests)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, "no route for "+req.URL.Path)
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/auth", func(g chi.Router) {
			g.Post("/login", h.login)
			g.Post("/refresh", h.refresh)
			g.With(h.requireAuth).Post("/logout", h.logout)
		})

		api.Group(func(g chi.Router) {
			g.Use(h.requireAuth)

			g.Route("/clients", func(g chi.Router) {
				g.Get("/", h.listClients)
				g.Post("/", h.createClient)
				g.Get("/{clientID}", h.getClient)
				g.Patch("/{clientID}", h.updateClient)
			})

			g.Route("/products", func(g chi.Router) {
				g.Get("/", h.listProducts)
				g.Post("/", h.createProduct)
				g.Get("/{productID}", h.getProduct)
				g.Patch("/{productID}", h.updateProduct)
			})

			g.Route("/orders", func(g chi.Router) {
				g.Get("/", h.listOrders)
				g.Post("/", h.createOrder)
				g.Get("/report", h.invoiceReport)
				g.Get("/export", h.exportOrders)
				g.Get("/{orderID}", h.getOrder)
				g.Patch("/{orderID}", h.updateOrder)
				g.Patch("/{orderID}/prices", h.adjustOrderPrices)
			})

			g.Route("/users", func(g chi.Router) {
				g.Use(h.requireAdmin)
				g.Get("/", h.listUsers)
				g.Post("/", h.createUser)
				g.Put("/password", h.updateUserPassword)
			})
		})
	})

	return r
}

// logRequests emits one structured log line per request and labels the
// surrounding otelhttp span with the matched route pattern.
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		if id := middleware.GetReqID(r.Context()); id != "" {
			ww.Header().Set("X-Request-Id", id)
		}
		start := time.Now()
		next.ServeHTTP(ww, r)

		if pattern := chi.RouteContext(r.Context()).RoutePattern(); pattern != "" {
			labeler, _ := otelhttp.LabelerFromContext(r.Context())
			labeler.Add(attribute.String("http.route", pattern))
		}

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		}
		if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
			fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
		}
		h.lg.Info("request", fields...)
	})
}
