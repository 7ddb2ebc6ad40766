package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/wager-royale/backend/internal/http/dto"
)

// RateLimitMiddleware counts requests per user (or IP before auth) in fixed windows.
func RateLimitMiddleware(rdb *redis.Client, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who := c.IP()
		if userID := GetUserID(c); userID != uuid.Nil {
			who = userID.String()
		}
		bucket := time.Now().Unix() / int64(window.Seconds())
		key := fmt.Sprintf("rl:%s:%s:%d", c.Route().Path, who, bucket)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			return c.Next() // fail open
		}
		if count == 1 {
			rdb.Expire(ctx, key, window)
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit) {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
				Error:     "rate limit exceeded",
				RequestID: GetRequestID(c),
			})
		}

		return c.Next()
	}
}
