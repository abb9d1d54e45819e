package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/crm/internal/auth/domain"
	"github.com/aussiebroadwan/crm/internal/auth/metrics"
	"github.com/aussiebroadwan/crm/internal/auth/service"
	"github.com/aussiebroadwan/crm/internal/auth/store"
	"github.com/aussiebroadwan/crm/pkg/httpx"
	"github.com/aussiebroadwan/crm/pkg/jwtx"
	"github.com/aussiebroadwan/crm/pkg/slogx"

	_ "github.com/aussiebroadwan/crm/api/crm" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	signer       *jwtx.RS256Codec // nil when RS256 is not configured
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	Auth  service.Authenticator
	Audit *service.Auditor

	// LoginLimiter guards the login endpoint per client address,
	// APILimiter everything else that touches the database.
	LoginLimiter httpx.Limiter
	APILimiter   httpx.Limiter

	// Metrics is optional. When set, requests are instrumented and
	// /metrics is served.
	Metrics *metrics.Provider
}

func NewRouter(
	auth service.Authenticator,
	signer *jwtx.RS256Codec,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		Mux:          http.NewServeMux(),
		Auth:         auth,
		signer:       signer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}
}

// ApplyRoutes registers every route. Set the optional fields first.
func (r *Router) ApplyRoutes() {
	if r.LoginLimiter == nil {
		r.LoginLimiter = httpx.NewRateLimiter(httpx.LoginLimit)
	}
	if r.APILimiter == nil {
		r.APILimiter = httpx.NewRateLimiter(httpx.ModerateLimit)
	}

	// The metrics middleware must wrap the mux directly: ServeMux records
	// the matched pattern on the request value it was handed.
	r.middlewares = []httpx.Middleware{slogx.HTTPMiddleware(r.logger)}
	if r.Metrics != nil {
		r.middlewares = append(r.middlewares, r.Metrics.Instrument)
		r.Mux.Handle("GET /metrics", r.Metrics.Handler())
	}

	r.registerAuth()
	r.registerKeys()
	r.registerProtected()
	r.registerAudit()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			CRM Authentication Service API
//	@version		1.0.0
//	@description	Token issuance and session management for the CRM.
//	@description
//	@description				Login returns the same claims as an HS256 JWT, an RS256 JWS and a dir+A256GCM JWE, plus a refresh token tracked server side.
//	@description				Access tokens live 2 minutes for staff and 5 minutes for managers.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/crm
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authn requires a bearer token of kind. Rejections are audited.
func (r *Router) authn(kind jwtx.Kind) httpx.Middleware {
	verify := func(ctx context.Context, token string) (*jwtx.Claims, error) {
		return r.Auth.VerifyBearer(ctx, token, kind)
	}
	onReject := func(req *http.Request, _ error) {
		r.Audit.Record(req.Context(), nil, domain.AuditUnauthorizedAccess, req.Method+" "+req.URL.Path, clientInfo(req))
	}
	return httpx.AuthnMiddleware(verify, onReject)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Auth: r.Auth}

	// Login is limited per address to slow down password guessing. The
	// lockout after five failures applies on top.
	r.Mux.Handle("POST /api/auth/login",
		httpx.Chain(http.HandlerFunc(h.Login),
			httpx.RateLimitByIP(r.LoginLimiter),
		),
	)
	r.Mux.Handle("POST /api/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.Refresh),
			httpx.RateLimitByIP(r.APILimiter),
		),
	)
	r.Mux.Handle("POST /api/auth/logout",
		httpx.Chain(http.HandlerFunc(h.Logout),
			httpx.RateLimitByIP(r.APILimiter),
		),
	)
	r.Mux.Handle("POST /api/auth/change-password",
		httpx.Chain(http.HandlerFunc(h.ChangePassword),
			r.authn(jwtx.KindSymmetric),
			httpx.RateLimitByUser(r.APILimiter),
		),
	)
	r.Mux.HandleFunc("GET /api/auth/password-requirements", h.PasswordRequirements)
}

func (r *Router) registerKeys() {
	r.Mux.Handle("GET /api/auth/jwk", JWKHandler(r.signer))
	r.Mux.Handle("GET /.well-known/jwks.json", JWKSHandler(r.signer))
}

func (r *Router) registerProtected() {
	for _, kind := range []jwtx.Kind{jwtx.KindSymmetric, jwtx.KindAsymmetric, jwtx.KindEncrypted} {
		r.Mux.Handle("GET /api/protected/"+string(kind)+"-protected",
			httpx.Chain(ProtectedHandler(kind),
				r.authn(kind),
			),
		)
	}

	r.Mux.Handle("GET /api/protected/manager",
		httpx.Chain(http.HandlerFunc(ManagerHandler),
			r.authn(jwtx.KindSymmetric),
			httpx.RequireManager(),
		),
	)
}

func (r *Router) registerAudit() {
	h := &AuditHandler{Auth: r.Auth}
	r.Mux.Handle("GET /api/audit/me",
		httpx.Chain(h,
			r.authn(jwtx.KindSymmetric),
			httpx.RateLimitByUser(r.APILimiter),
		),
	)

	r.Mux.Handle("GET /api/auth/profile",
		httpx.Chain(&ProfileHandler{Employees: &service.EmployeeService{Store: r.store}, Audit: r.Audit},
			r.authn(jwtx.KindSymmetric),
			httpx.RateLimitByUser(r.APILimiter),
		),
	)

	if r.Audit == nil {
		return
	}
	logs := &AuditLogHandler{Audit: r.Audit}
	manager := func(next http.HandlerFunc) http.Handler {
		return httpx.Chain(next,
			r.authn(jwtx.KindSymmetric),
			httpx.RequireManager(),
			httpx.RateLimitByUser(r.APILimiter),
		)
	}
	r.Mux.Handle("GET /api/audit-logs", manager(logs.List))
	r.Mux.Handle("GET /api/audit-logs/actions", manager(logs.Actions))
	r.Mux.Handle("GET /api/audit-logs/security-events", manager(logs.SecurityEvents))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.signer))
}
