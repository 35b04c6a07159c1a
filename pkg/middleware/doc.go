// Package middleware throttles the login endpoints per client IP.
//
// Two limiters implement Limiter:
//
//	RateLimiter: in-process token bucket, used with the memory session store
//	DistributedRateLimiter: Redis fixed window shared by all replicas
//
// Throttle wraps a handler and answers 429 with Retry-After once a client
// exhausts its budget:
//
//	limiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{
//		RequestsPerWindow: 30,
//		WindowDuration:    time.Minute,
//		BurstSize:         10,
//	})
//	handler = middleware.Throttle(limiter, time.Minute, logger, metrics, "/login", "/callback")(handler)
//
// Limiter errors never block a request.
package middleware
