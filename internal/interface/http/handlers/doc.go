// Package handlers contains the reusable pieces of the REST API: the
// response envelope, health checks and middleware.
//
// # Health Checks
//
// Named probes run in parallel, each under its own timeout. A failing
// optional probe reports "degraded" and keeps /ready green:
//
//	checker := handlers.NewCompositeHealthChecker("v0.1.0")
//	checker.AddCheck("postgres", handlers.NewPingCheck(conn))
//	checker.AddOptionalCheck("redis", handlers.NewPingCheck(cache))
//
//	status := checker.Check(ctx)
//
// # Envelope
//
// Every response has the shape
//
//	{"success": bool, "data": ..., "error": {"code", "message"}, "meta": {...}}
//
// which is what the data-access REST client decodes.
//
// # Middleware
//
//	h := handlers.ChainHandler(router,
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.RequestSizeLimitMiddleware(1<<20),
//	)
package handlers
