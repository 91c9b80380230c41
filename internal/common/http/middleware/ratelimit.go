package middleware

import (
	"fmt"
	"time"

	"judgeboard/internal/common/ratelimit"
	"judgeboard/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// RateLimitPolicy bounds hits per window. A zero max disables that dimension.
type RateLimitPolicy struct {
	Window   time.Duration `yaml:"window"`
	UserMax  int           `yaml:"userMax"`
	IPMax    int           `yaml:"ipMax"`
	RouteMax int           `yaml:"routeMax"`
}

// Active reports whether any dimension is limited.
func (p RateLimitPolicy) Active() bool {
	return p.UserMax > 0 || p.IPMax > 0 || p.RouteMax > 0
}

// RateLimitMiddleware enforces the policy for one route. The user dimension
// uses the id set by TraceContextMiddleware.
func RateLimitMiddleware(limiter ratelimit.Limiter, routeKey string, policy RateLimitPolicy, defaultWindow time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || !policy.Active() {
			c.Next()
			return
		}
		window := policy.Window
		if window == 0 {
			window = defaultWindow
		}
		ctx := c.Request.Context()
		if policy.IPMax > 0 {
			key := fmt.Sprintf("judgeboard:rate:ip:%s:%s", c.ClientIP(), routeKey)
			if err := limiter.Allow(ctx, key, policy.IPMax, window); err != nil {
				response.AbortWithError(c, err)
				return
			}
		}

		if policy.UserMax > 0 {
			if userID, ok := c.Get(userIDContextKey); ok {
				key := fmt.Sprintf("judgeboard:rate:user:%v:%s", userID, routeKey)
				if err := limiter.Allow(ctx, key, policy.UserMax, window); err != nil {
					response.AbortWithError(c, err)
					return
				}
			}
		}

		if policy.RouteMax > 0 {
			key := fmt.Sprintf("judgeboard:rate:route:%s", routeKey)
			if err := limiter.Allow(ctx, key, policy.RouteMax, window); err != nil {
				response.AbortWithError(c, err)
				return
			}
		}

		c.Next()
	}
}
