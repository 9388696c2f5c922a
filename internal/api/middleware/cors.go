package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig narrows which browser origins may call the API.
type CORSConfig struct {
	AllowOrigins []string
	MaxAge       time.Duration
}

// DefaultCORSConfig allows any origin. The service fronts local device
// tooling and carries no cookie auth, so credentials stay disabled.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		MaxAge:       6 * time.Hour,
	}
}

// CORS answers preflight requests for the bundle manager API. The
// trace headers are exposed so clients can quote them when reporting
// a failed install.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:  cfg.AllowOrigins,
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:  []string{"Content-Type", "Accept", "X-Trace-ID", "X-Span-ID"},
		ExposeHeaders: []string{"X-Trace-ID", "X-Span-ID"},
		MaxAge:        cfg.MaxAge,
	})
}
