package httpapi

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	operatorTokenHeader  = "X-Operator-Token"
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "tollgate:idempotency:"
	inProgressMarker     = "__in_progress__"
)

func loggingMiddleware(logger logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now().UTC()
		err := c.Next()
		logger.WithFields(logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
			"from":   c.IP(),
			"status": c.Response().StatusCode(),
			"dur":    time.Since(start).String(),
		}).Debug("http request")
		return err
	}
}

// operatorAuth requires X-Operator-Token to match the bcrypt hash.  An
// empty hash leaves the routes open, as on a single-desk install.
func operatorAuth(hash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if hash == "" {
			return c.Next()
		}
		token := c.Get(operatorTokenHeader)
		if token == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
			return writeError(c, fiber.StatusUnauthorized, "unauthorized", "operator token required")
		}
		return c.Next()
	}
}

type storedResponse struct {
	Status      int    `json:"status"`
	Body        string `json:"body"`
	ContentType string `json:"content_type"`
}

// idempotency replays the stored response for a repeated Idempotency-Key so
// a double-submitted top-up is only applied once.  Requests without the
// header pass through.
func idempotency(cache *redis.Client, ttl time.Duration, logger logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := strings.TrimSpace(c.Get(idempotencyKeyHeader))
		if key == "" {
			return c.Next()
		}
		key = strings.Clone(key)
		cacheKey := idempotencyPrefix + c.Path() + ":" + key
		log := logger.WithField("idempotency_key", key)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		reserved, err := cache.SetNX(ctx, cacheKey, inProgressMarker, ttl).Result()
		if err != nil {
			log.WithError(err).Error("idempotency reservation failed")
			return writeError(c, fiber.StatusBadGateway, "backend_error", "idempotency store failure")
		}

		if !reserved {
			cached, err := cache.Get(ctx, cacheKey).Result()
			if err != nil && err != redis.Nil {
				log.WithError(err).Error("idempotency lookup failed")
				return writeError(c, fiber.StatusBadGateway, "backend_error", "idempotency store failure")
			}
			if err == redis.Nil || cached == inProgressMarker {
				return writeError(c, fiber.StatusConflict, "busy", "duplicate request currently processing")
			}

			var stored storedResponse
			if err := json.Unmarshal([]byte(cached), &stored); err != nil {
				log.WithError(err).Warn("stored idempotent response unreadable")
				return writeError(c, fiber.StatusConflict, "busy", "duplicate request")
			}
			c.Set(fiber.HeaderContentType, stored.ContentType)
			return c.Status(stored.Status).SendString(stored.Body)
		}

		if err := c.Next(); err != nil {
			cache.Del(context.Background(), cacheKey) // best effort
			return err
		}

		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError || status == fiber.StatusConflict {
			// Transient outcomes may be retried with the same key.
			cache.Del(context.Background(), cacheKey)
			return nil
		}

		payload, _ := json.Marshal(storedResponse{
			Status:      status,
			Body:        string(c.Response().Body()),
			ContentType: string(c.Response().Header.ContentType()),
		})
		persistCtx, persistCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer persistCancel()
		if err := cache.Set(persistCtx, cacheKey, payload, ttl).Err(); err != nil {
			log.WithError(err).Warn("idempotent response not persisted")
			cache.Del(persistCtx, cacheKey)
		}
		return nil
	}
}
