package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinicore/slotqueue/internal/engine"
	"github.com/clinicore/slotqueue/internal/notify"
	"github.com/clinicore/slotqueue/internal/observability/metrics"
	"github.com/clinicore/slotqueue/pkg/logging"
)

type RouterConfig struct {
	Engine  *engine.Engine
	Hub     *notify.Hub
	Metrics *metrics.CoordinationMetrics
	Logger  *logging.Logger
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health and metrics
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	h := NewHandler(cfg.Engine)

	// Reference data and snapshots
	r.Get("/providers", h.ListProviders)
	r.Get("/providers/{id}/slots/{date}", h.GetSlotDay)
	r.Get("/departments", h.ListDepartments)
	r.Get("/departments/{id}/queue/{date}", h.GetQueueSnapshot)

	// Booking operations
	r.Post("/appointments", h.BookAppointment)
	r.Post("/appointments/{id}/cancel", h.CancelAppointment)
	r.Get("/patients/{id}/appointments", h.ListPatientAppointments)

	// Queue operations
	r.Post("/queues/join", h.JoinQueue)
	r.Post("/queues/{visitId}/advance", h.AdvanceQueueEntry)

	// Visit memos
	r.Post("/memos", h.CreateMemo)
	r.Post("/memos/attach", h.AttachMemoEntry)
	r.Post("/memos/{id}/read", h.MarkMemoRead)
	r.Get("/patients/{id}/memos", h.ListPatientMemos)

	// Push subscriptions
	ws := NewWSHandler(cfg.Hub, cfg.Metrics, cfg.Logger)
	r.Get("/ws/providers/{id}", ws.ProviderEvents)
	r.Get("/ws/departments/{id}/{date}", ws.DepartmentEvents)
	r.Get("/ws/patients/{id}", ws.PatientEvents)

	return r
}
