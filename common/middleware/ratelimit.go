package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yashrajoria/giftshop-backend/common/errors"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per key.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    b,
	}
}

func (rl *RateLimiter) GetLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists := rl.limiters[key]; exists {
		return limiter
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[key] = limiter
	return limiter
}

// PerUser limits requests per authenticated user, falling back to the client IP.
func (rl *RateLimiter) PerUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := GetUserID(c)
		if key == "" {
			key = c.ClientIP()
		}
		if !rl.GetLimiter(key).Allow() {
			c.AbortWithStatusJSON(apperrors.ErrRateLimited.Code, apperrors.ErrRateLimited)
			return
		}
		c.Next()
	}
}
