// Package http wires the middleware chain and routes. Routes fall into three
// rings: public (login, health, metrics), authenticated (the /me surface and
// tenant creation, which need a principal but no tenant header), and gated
// (everything else, behind Auth, TenantContext, and a per-route permission).
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/girderhq/api/internal/app"
	"github.com/girderhq/api/internal/config"
	"github.com/girderhq/api/internal/infra/http/handler"
	"github.com/girderhq/api/internal/infra/http/middleware"
	"github.com/girderhq/api/internal/infra/websocket"
	"github.com/girderhq/api/pkg/domain/authz"
	"github.com/girderhq/api/pkg/domain/permission"
	"github.com/girderhq/api/pkg/logger"
	"github.com/girderhq/api/pkg/validator"
)

// RouterDeps carries everything the router needs.
type RouterDeps struct {
	Config    *config.Config
	Logger    *logger.Logger
	Validator *validator.Validator
	Gate      *authz.Gate

	Auth          *app.AuthService
	Tenants       *app.TenantService
	Permissions   *app.PermissionService
	Roles         *app.RoleService
	Projects      *app.ProjectService
	Tasks         *app.TaskService
	RFIs          *app.RFIService
	Contracts     *app.ContractService
	Notifications *app.NotificationService

	Health *handler.HealthHandler

	// RateLimit is the global limiter middleware, built by the server so it
	// can own the stop function.
	RateLimit func(http.Handler) http.Handler
}

// NewRouter builds the chi mux with the full middleware chain and all routes.
func NewRouter(d RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.CleanPath)
	r.Use(chimw.StripSlashes)

	r.Use(middleware.Recover(d.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(&d.Config.CORS))
	r.Use(middleware.Decompress(nil))
	r.Use(middleware.BodyLimit(d.Config.Server.MaxBodySize))
	if d.RateLimit != nil {
		r.Use(d.RateLimit)
	}
	r.Use(middleware.Metrics())
	r.Use(middleware.Logger(d.Logger))

	authHandler := handler.NewAuthHandler(d.Auth, d.Tenants, d.Permissions, d.Validator, d.Logger)
	tenantHandler := handler.NewTenantHandler(d.Tenants, d.Validator, d.Logger)
	projectHandler := handler.NewProjectHandler(d.Projects, d.Validator, d.Logger)
	taskHandler := handler.NewTaskHandler(d.Tasks, d.Validator, d.Logger)
	rfiHandler := handler.NewRFIHandler(d.RFIs, d.Validator, d.Logger)
	contractHandler := handler.NewContractHandler(d.Contracts, d.Validator, d.Logger)
	notificationHandler := handler.NewNotificationHandler(d.Notifications, d.Logger)
	roleHandler := handler.NewRoleHandler(d.Roles, d.Permissions, d.Logger)
	statsHandler := websocket.NewStatsHandler(d.Projects, d.Logger)

	authMW := middleware.Auth(d.Auth)
	tenantMW := middleware.TenantContext(d.Gate)
	require := func(code permission.Code) func(http.Handler) http.Handler {
		return middleware.RequirePermission(d.Gate, code)
	}

	// Public surface.
	r.Get("/health", d.Health.Health)
	r.Get("/ready", d.Health.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// The per-request timeout sits inside the chain so WebSocket
		// upgrades, registered below it, are exempt.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(d.Config.Server.RequestTimeout))

			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/refresh", authHandler.Refresh)

			// Authenticated but tenant-free: the client has to be able to
			// discover its tenants before it can send the tenant header.
			r.Group(func(r chi.Router) {
				r.Use(authMW)

				r.Get("/me", authHandler.Me)
				r.Get("/me/tenants", authHandler.MeTenants)
				r.Put("/me/tenant", authHandler.SelectTenant)
				r.Post("/tenants", tenantHandler.Create)
			})

			// The gated ring. Ordering inside the chain is what pins the
			// failure precedence; permission checks attach per route.
			r.Group(func(r chi.Router) {
				r.Use(authMW)
				r.Use(tenantMW)

				r.Get("/me/permissions", authHandler.MePermissions)
				r.Get("/tenant", tenantHandler.Get)

				r.With(require(permission.TenantMemberManage)).Get("/tenant/members", tenantHandler.ListMembers)
				r.With(require(permission.TenantMemberManage)).Post("/tenant/members", tenantHandler.AddMember)
				r.With(require(permission.TenantMemberManage)).Delete("/tenant/members/{userID}", tenantHandler.RemoveMember)
				r.With(require(permission.RoleAssign)).Put("/tenant/members/{userID}/role", tenantHandler.AssignRole)

				r.With(require(permission.RoleView)).Get("/roles", roleHandler.List)
				r.With(require(permission.RoleView)).Get("/permissions", roleHandler.Catalog)

				r.With(require(permission.ProjectView)).Get("/projects", projectHandler.List)
				r.With(require(permission.ProjectCreate)).Post("/projects", projectHandler.Create)
				r.With(require(permission.ProjectView)).Get("/projects/{id}", projectHandler.Get)
				r.With(require(permission.ProjectEdit)).Patch("/projects/{id}", projectHandler.Update)
				r.With(require(permission.ProjectDelete)).Delete("/projects/{id}", projectHandler.Delete)
				r.With(require(permission.ProjectView)).Get("/projects/{id}/stats", projectHandler.Stats)

				r.With(require(permission.TaskView)).Get("/tasks", taskHandler.List)
				r.With(require(permission.TaskCreate)).Post("/tasks", taskHandler.Create)
				r.With(require(permission.TaskView)).Get("/tasks/{id}", taskHandler.Get)
				r.With(require(permission.TaskEdit)).Patch("/tasks/{id}", taskHandler.Update)
				r.With(require(permission.TaskDelete)).Delete("/tasks/{id}", taskHandler.Delete)
				r.With(require(permission.TaskAssign)).Put("/tasks/{id}/assignee", taskHandler.Assign)

				r.With(require(permission.RFIView)).Get("/rfis", rfiHandler.List)
				r.With(require(permission.RFICreate)).Post("/rfis", rfiHandler.Create)
				r.With(require(permission.RFIView)).Get("/rfis/{id}", rfiHandler.Get)
				r.With(require(permission.RFIRespond)).Post("/rfis/{id}/answer", rfiHandler.Respond)

				r.With(require(permission.ContractView)).Get("/contracts", contractHandler.List)
				r.With(require(permission.ContractCreate)).Post("/contracts", contractHandler.Create)
				r.With(require(permission.ContractView)).Get("/contracts/{id}", contractHandler.Get)
				r.With(require(permission.ContractEdit)).Patch("/contracts/{id}", contractHandler.Update)
				r.With(require(permission.ContractPaymentView)).Get("/contracts/{id}/payments", contractHandler.ListPayments)
				r.With(require(permission.ContractPaymentCreate)).Post("/contracts/{id}/payments", contractHandler.RecordPayment)

				r.With(require(permission.NotificationView)).Get("/notifications", notificationHandler.List)
				r.With(require(permission.NotificationView)).Post("/notifications/{id}/read", notificationHandler.MarkRead)
			})
		})

		// WebSocket stream, outside the request timeout.
		r.Group(func(r chi.Router) {
			r.Use(authMW)
			r.Use(tenantMW)
			r.With(require(permission.ProjectView)).Get("/ws/projects/{id}/stats", func(w http.ResponseWriter, req *http.Request) {
				statsHandler.ServeProjectStats(w, req, chi.URLParam(req, "id"))
			})
		})
	})

	return r
}
