package handler

import (
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"comfyguardians/internal/http/middleware"
	"comfyguardians/internal/service"
)

// Services bundles the use cases exposed over HTTP.
type Services struct {
	Authorization service.AuthorizationService
	Chat          service.ChatService
	Debug         service.DebugService
}

// RouteOptions configures route-level guards.
type RouteOptions struct {
	// AnonKey, when set, is required on chat and debug routes.
	AnonKey string
	// RateLimitMax is the number of guardian decisions accepted per IP per minute.
	RateLimitMax int
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc Services, opts RouteOptions) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())
	if opts.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")

	decisions := decisionLimiter(opts.RateLimitMax)
	api.Post("/autorizar", decisions, AuthorizeChild(svc.Authorization))
	api.Post("/rejeitar", decisions, RejectChild(svc.Authorization))
	api.Get("/children/:id", GetChildStatus(svc.Authorization))

	guard := middleware.APIKey(opts.AnonKey)

	chat := api.Group("/chat", guard)
	chat.Post("/create", CreateChat(svc.Chat))
	chat.Get("/list", ListChats(svc.Chat))
	chat.Post("/list", ListChatUsers(svc.Chat))
	chat.Get("/messages", ListMessages(svc.Chat))
	chat.Post("/messages", UserChats(svc.Chat))
	chat.Post("/message", SendMessage(svc.Chat))
	chat.Patch("/message", MarkMessageRead(svc.Chat))
	chat.Post("/attachment", UploadAttachment(svc.Chat))
	chat.Get("/attachment/:message_id", GetAttachmentURL(svc.Chat))

	api.Get("/debug", guard, DebugProbe(svc.Debug))
	api.Post("/debug", guard, DebugTestCreate(svc.Debug))
}

// TrustProxies makes c.IP() report the address forwarded in header, but only
// for requests arriving from one of proxies. Without proxies the socket
// address is used and forwarding headers are ignored.
func TrustProxies(conf fiber.Config, proxies []string, header string) fiber.Config {
	if len(proxies) == 0 || header == "" {
		return conf
	}
	conf.ProxyHeader = header
	conf.EnableTrustedProxyCheck = true
	conf.TrustedProxies = proxies
	conf.EnableIPValidation = true
	return conf
}

// decisionLimiter throttles the public guardian forms per client IP.
// The key is c.IP(), so forwarded addresses count only from trusted proxies.
func decisionLimiter(max int) fiber.Handler {
	if max <= 0 {
		return middleware.Noop()
	}
	return limiter.New(limiter.Config{
		Max:          max,
		Expiration:   time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return writeError(c, fiber.StatusTooManyRequests, "TOO_MANY_REQUESTS", "too many requests, try again later")
		},
	})
}
