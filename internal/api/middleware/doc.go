// Package middleware provides the HTTP middleware of the ottr server.
//
//   - CORS: test pages post from the origin of the application under test
//   - RateLimit: per-IP token bucket, disabled unless configured
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(cfg.RateLimit))
package middleware
