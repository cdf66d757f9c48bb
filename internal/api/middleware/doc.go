// Package middleware provides the HTTP middleware of the application server.
//
// CORS wraps gin-contrib/cors; RateLimit keeps a token bucket per client IP
// and forgets clients idle longer than RateLimitConfig.Idle.
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.RateLimitConfigFrom(cfg.RateLimit)))
package middleware
