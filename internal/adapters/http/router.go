package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/civicconnect/internal/adapters/policy"
	"github.com/samirrijal/civicconnect/internal/core/domain"
	"github.com/samirrijal/civicconnect/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

func withTimeout(h fiber.Handler) fiber.Handler {
	return timeout.NewWithContext(h, requestTimeout)
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	if deps.Sessions == nil {
		deps.Sessions = NewSessionStore(nil, 0, false)
	}

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	if deps.CORSOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowCredentials: deps.CORSOrigins != "*",
		}))
	}

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(DeprecationMiddleware(LegacyRoutes))
	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	auth := func(action string) fiber.Handler { return RequireAuth(deps, action) }

	v1 := app.Group("/v1")

	// Accounts
	v1.Post("/auth/signup", withTimeout(SignupHandler(deps)))
	v1.Post("/auth/login", withTimeout(LoginHandler(deps)))
	v1.Post("/auth/logout", withTimeout(LogoutHandler(deps)))
	v1.Get("/auth/me", MeHandler(deps))

	// Citizens
	v1.Post("/issues", auth(policy.ActionIssueReport), withTimeout(ReportIssueHandler(deps)))
	v1.Get("/me/issues/counts", auth(policy.ActionIssueReadOwn), withTimeout(MyIssueCountsHandler(deps)))
	v1.Get("/me/issues", auth(policy.ActionIssueReadOwn), withTimeout(MyIssuesHandler(deps)))
	v1.Get("/me/issues/:id", auth(policy.ActionIssueReadOwn), withTimeout(MyIssueHandler(deps)))
	v1.Delete("/me/issues/:id", auth(policy.ActionIssueWithdraw), withTimeout(WithdrawIssueHandler(deps)))

	// Officers
	v1.Get("/officer/issues", auth(policy.ActionOfficerRead), withTimeout(OfficerIssuesHandler(deps, false)))
	v1.Get("/officer/issues/priority", auth(policy.ActionOfficerRead), withTimeout(OfficerIssuesHandler(deps, true)))
	v1.Get("/officer/issues/monthly", auth(policy.ActionOfficerRead), withTimeout(OfficerMonthlyHandler(deps)))
	v1.Get("/officer/issues/:id", auth(policy.ActionOfficerRead), withTimeout(OfficerIssueHandler(deps)))
	v1.Post("/officer/issues/:id/status", auth(policy.ActionOfficerRead), withTimeout(OfficerUpdateStatusHandler(deps)))

	// Administration
	admin := v1.Group("/admin")
	admin.Get("/officers", auth(policy.ActionAdminUsers), withTimeout(ListUsersHandler(deps, domain.RoleOfficer)))
	admin.Post("/officers/:id/:action", auth(policy.ActionAdminUsers), withTimeout(UserActionHandler(deps, domain.RoleOfficer)))
	admin.Get("/citizens", auth(policy.ActionAdminUsers), withTimeout(ListUsersHandler(deps, domain.RoleCitizen)))
	admin.Post("/citizens/:id/:action", auth(policy.ActionAdminUsers), withTimeout(UserActionHandler(deps, domain.RoleCitizen)))
	admin.Get("/issues", auth(policy.ActionAdminIssues), withTimeout(AdminIssuesHandler(deps)))
	admin.Get("/issues/counts", auth(policy.ActionAdminIssues), withTimeout(IssueTypeCountsHandler(deps)))
	admin.Get("/issues/:id", auth(policy.ActionAdminIssues), withTimeout(OfficerIssueHandler(deps)))
	admin.Get("/hotspots", auth(policy.ActionAdminIssues), withTimeout(HotspotsHandler(deps)))

	// Public
	v1.Get("/issues/nearby", withTimeout(NearbyIssuesHandler(deps)))
	v1.Get("/issues/:id", withTimeout(GetIssueHandler(deps)))
	v1.Post("/predict", auth(policy.ActionPredict), withTimeout(PredictHandler(deps)))
	app.Get("/uploads/:name", UploadHandler(deps))

	// GraphQL
	v1.Post("/graphql", auth(policy.ActionGraphQL), GraphQLHandler(deps))

	// Legacy unversioned aliases, see LegacyRoutes
	app.Post("/report-issue", auth(policy.ActionIssueReport), withTimeout(ReportIssueHandler(deps)))
	app.Post("/predict", auth(policy.ActionPredict), withTimeout(PredictHandler(deps)))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket department feed
	v1.Get("/ws", auth(policy.ActionFeedSubscribe), WebSocketUpgrade(deps), websocket.New(WebSocketHandler(deps.NATS)))
}
