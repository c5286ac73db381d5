package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// defaultOrigins covers the local dashboard dev server this service's
// queue-status/health endpoints are polled from when CORS_ALLOWED_ORIGINS
// isn't set.
var defaultOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
}

// CORS builds the cors.Config from the given allowed origins, falling
// back to defaultOrigins when none are configured.
func CORS(allowedOrigins ...string) gin.HandlerFunc {
	origins := defaultOrigins
	if len(allowedOrigins) > 0 {
		origins = allowedOrigins
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "Idempotency-Key"},
		AllowCredentials: true,
	})
}
