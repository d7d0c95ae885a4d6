package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/metrics"
	"github.com/aussiebroadwan/gatehouse/internal/auth/service"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"

	_ "github.com/aussiebroadwan/gatehouse/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// DefaultRequestTimeout bounds every token and identity request.
const DefaultRequestTimeout = 5 * time.Second

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        *store.TokenStore

	// Auth drives Authenticate on /v1/me and AnonymousDPoP on /v1/token.
	Auth           httpx.AuthConfig
	SessionService *service.SessionService
	Metrics        *metrics.Metrics

	RequestTimeout time.Duration

	// RequireDPoP rejects Bearer tokens on /v1/me.
	RequireDPoP bool
}

func NewRouter(
	keys *jwtx.KeySet,
	buildVersion string,
	st *store.TokenStore,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:            http.NewServeMux(),
		keys:           keys,
		buildVersion:   buildVersion,
		startTime:      time.Now(),
		store:          st,
		logger:         logger,
		RequestTimeout: DefaultRequestTimeout,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	if r.Metrics != nil && r.Auth.Observer == nil {
		r.Auth.Observer = r.Metrics
	}

	r.registerToken()
	r.registerIdentity()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Gatehouse Token Service API
//	@version		0.1.0
//	@description	Issues, rotates and revokes JWT access/refresh token pairs, optionally bound to a client key with DPoP (RFC 9449).
//	@description
//	@description				Access tokens can be verified offline using the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/gatehouse
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
//
//	@securityDefinitions.apikey	DPoPAuth
//	@in							header
//	@name						Authorization
//	@description				DPoP bound access token. Format: "DPoP {token}", with a DPoP proof header carrying ath.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerToken() {
	h := &TokenHandler{SessionService: r.SessionService, Metrics: r.Metrics}
	timeout := httpx.Timeout(r.RequestTimeout)
	proof := httpx.AnonymousDPoP(r.Auth)

	// POST /token - strict rate limit by IP + username to slow password guessing
	r.Mux.Handle("POST /v1/token",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "username"),
			timeout,
			proof,
		),
	)

	// PUT /token - moderate rate limit, refreshes happen once per access TTL
	r.Mux.Handle("PUT /v1/token",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
			timeout,
			proof,
		),
	)

	r.Mux.Handle("DELETE /v1/token",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
			timeout,
			proof,
		),
	)

	// GET /jwks.json - public endpoint with high limit
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerIdentity() {
	mws := []httpx.Middleware{
		httpx.Timeout(r.RequestTimeout),
		httpx.Authenticate(r.Auth),
	}
	if r.RequireDPoP {
		mws = append(mws, httpx.RequireScheme(jwtx.TokenTypeDPoP))
	}
	mws = append(mws, httpx.RateLimitBySubject(httpx.LenientLimit))

	r.Mux.Handle("GET /v1/me", httpx.Chain(&MeHandler{SessionService: r.SessionService}, mws...))
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	health := &HealthHandler{
		Started: r.startTime,
		Version: r.buildVersion,
		Cache:   r.store,
		Keys:    r.keys,
	}
	probes := httpx.RateLimitByIP(httpx.LenientLimit)
	r.Mux.Handle("GET /livez", httpx.Chain(http.HandlerFunc(health.Live), probes))
	r.Mux.Handle("GET /readyz", httpx.Chain(http.HandlerFunc(health.Ready), probes))

	if r.Metrics != nil {
		r.Mux.Handle("GET /metrics", r.Metrics.Handler())
	}
}
