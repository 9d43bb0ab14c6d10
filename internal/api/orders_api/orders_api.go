package orders_api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/BearBump/WasteTrack/internal/access"
	"github.com/BearBump/WasteTrack/internal/cache/rediscache"
	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/BearBump/WasteTrack/internal/pipeline"
	"github.com/BearBump/WasteTrack/internal/services/evidence"
	"github.com/BearBump/WasteTrack/internal/services/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

type OrderService interface {
	CreateOrder(ctx context.Context, actor models.Actor, in models.OrderCreateInput) (*models.Order, error)
	GetOrder(ctx context.Context, actor models.Actor, id string) (*models.Order, error)
	ListOrders(ctx context.Context, actor models.Actor, f models.OrderFilter) ([]*models.Order, error)
	AttemptTransition(ctx context.Context, req orders.TransitionRequest) (orders.TransitionResult, error)
	AssignOperator(ctx context.Context, actor models.Actor, orderID, operatorID string) (*models.Order, error)
	Progress(ctx context.Context, actor models.Actor, orderID string) (pipeline.Progress, error)
	AuditTrail(ctx context.Context, actor models.Actor, orderID string) ([]*models.AuditEvent, error)
}

type EvidenceLedger interface {
	Attach(ctx context.Context, req evidence.AttachRequest) (*models.Evidence, error)
	List(ctx context.Context, actor models.Actor, orderID string) ([]*models.Evidence, error)
	ListByStage(ctx context.Context, actor models.Actor, orderID string, stage pipeline.StageKey) ([]*models.Evidence, error)
}

type UsageAccountant interface {
	Usage(ctx context.Context, customerID string, now time.Time) (models.Usage, error)
}

type PlanWriter interface {
	CreatePlan(ctx context.Context, p *models.Plan) error
}

type ChangeFeed interface {
	Subscribe(ctx context.Context, orderID string) (<-chan rediscache.Hint, func(), error)
}

type SessionResolver interface {
	Resolve(authHeader string) (access.Session, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Deps: всё, что нужно API. Plans, Changes, Limiter и Ready необязательны.
type Deps struct {
	Orders   OrderService
	Evidence EvidenceLedger
	Usage    UsageAccountant
	Plans    PlanWriter
	Sessions SessionResolver
	Changes  ChangeFeed
	Limiter  RateLimiter

	// Ready проверяет зависимости для /readyz.
	Ready map[string]func(ctx context.Context) error
}

type Options struct {
	RateLimitPerMinute int
	AllowedOrigins     []string
	SSEHeartbeat       time.Duration
	SwaggerPath        string
}

type OrdersAPI struct {
	deps  Deps
	opts  Options
	now   func() time.Time
	newID func() string
}

func New(deps Deps, opts Options) *OrdersAPI {
	if opts.SSEHeartbeat <= 0 {
		opts.SSEHeartbeat = 15 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &OrdersAPI{deps: deps, opts: opts, now: time.Now, newID: uuid.NewString}
}

func (a *OrdersAPI) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: credentialsAllowed(a.opts.AllowedOrigins),
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", a.readyz)
	mountSwagger(r, a.opts.SwaggerPath)

	r.Route("/v1", func(r chi.Router) {
		r.Use(a.authenticate)

		r.Post("/access/check", a.checkAccess)

		r.Group(func(r chi.Router) {
			r.Use(a.requireActor)

			r.Get("/scopes/{role}/orders", a.listScopedOrders)
			r.Get("/customers/{customerID}/usage", a.getUsage)
			r.With(a.rateLimit).Post("/customers/{customerID}/plans", a.createPlan)

			r.Route("/orders", func(r chi.Router) {
				r.With(a.rateLimit).Post("/", a.createOrder)
				r.Route("/{orderID}", func(r chi.Router) {
					r.Get("/", a.getOrder)
					r.Get("/progress", a.getProgress)
					r.Get("/audit", a.getAudit)
					r.Get("/evidence", a.listEvidence)
					r.Get("/changes", a.streamChanges)

					r.With(a.rateLimit).Post("/transitions", a.postTransition)
					r.With(a.rateLimit).Put("/operator", a.putOperator)
					r.With(a.rateLimit).Post("/evidence", a.postEvidence)
				})
			})
		})
	})
	return r
}

func (a *OrdersAPI) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range a.deps.Ready {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// credentialsAllowed: куки/credentials только для явно перечисленных origin,
// с "*" браузеру их отдавать нельзя.
func credentialsAllowed(origins []string) bool {
	if len(origins) == 0 {
		return false
	}
	for _, o := range origins {
		if strings.Contains(o, "*") {
			return false
		}
	}
	return true
}
