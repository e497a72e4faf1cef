package http

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/pkg/logger"
	pkgredis "github.com/jhoicas/stock-ledger/pkg/redis"
)

// HeaderIdempotencyKey cabecera opcional de los comandos POST.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	defaultIdempotencyTTL = 24 * time.Hour
	// pendingIdempotencyTTL vida del marcador mientras el comando se ejecuta.
	pendingIdempotencyTTL = 30 * time.Second
)

type idempotencyRecord struct {
	Pending     bool              `json:"pending,omitempty"`
	Status      int               `json:"status,omitempty"`
	Body        string            `json:"body,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

// Idempotency guarda la primera respuesta de un POST con Idempotency-Key y la repite
// en los reintentos con el mismo cuerpo. Sin cabecera, o sin store, no interviene.
// Antes de ejecutar el comando reserva la clave con un marcador pendiente: un reintento
// concurrente recibe 409 IDEMPOTENCY_IN_PROGRESS en lugar de ejecutarlo otra vez.
// Las respuestas 5xx no se guardan: el comando no ocurrió y se puede reintentar.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, log *logger.Logger) fiber.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(c *fiber.Ctx) error {
		if store == nil || c.Method() != fiber.MethodPost {
			return c.Next()
		}
		idempotencyKey := strings.TrimSpace(c.Get(HeaderIdempotencyKey))
		if idempotencyKey == "" {
			return c.Next()
		}

		requestHash := hashBody(c.Body())
		key := store.IdempotencyKey(buildScope(c), idempotencyKey)
		ctx := c.UserContext()

		stored, err := loadRecord(ctx, store, key)
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("consultar idempotencia")
			return idempotencyUnavailable(c)
		}
		if stored != nil {
			return respondStored(c, stored, requestHash)
		}

		marker, err := json.Marshal(idempotencyRecord{Pending: true, RequestHash: requestHash})
		if err != nil {
			log.Error().Err(err).Msg("serializar marcador de idempotencia")
			return idempotencyUnavailable(c)
		}
		reserved, err := store.SetNX(ctx, key, string(marker), pendingIdempotencyTTL)
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("reservar clave de idempotencia")
			return idempotencyUnavailable(c)
		}
		if !reserved {
			// otra petición con la misma clave reservó primero
			stored, err = loadRecord(ctx, store, key)
			if err != nil {
				log.Error().Err(err).Str("key", key).Msg("consultar idempotencia")
				return idempotencyUnavailable(c)
			}
			if stored == nil {
				return inProgress(c)
			}
			return respondStored(c, stored, requestHash)
		}

		if err := c.Next(); err != nil {
			release(ctx, store, key, log)
			return err
		}

		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			release(ctx, store, key, log)
			return nil
		}
		record := idempotencyRecord{
			Status:      status,
			Body:        base64.StdEncoding.EncodeToString(c.Response().Body()),
			RequestHash: requestHash,
		}
		if ct := string(c.Response().Header.ContentType()); ct != "" {
			record.Headers = map[string]string{fiber.HeaderContentType: ct}
		}
		payload, err := json.Marshal(record)
		if err != nil {
			log.Error().Err(err).Msg("serializar registro de idempotencia")
			release(ctx, store, key, log)
			return nil
		}
		if err := store.Set(ctx, key, string(payload), ttl); err != nil {
			log.Error().Err(err).Str("key", key).Msg("guardar registro de idempotencia")
		}
		return nil
	}
}

// loadRecord devuelve nil si la clave no existe.
func loadRecord(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*idempotencyRecord, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var record idempotencyRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("registro de idempotencia corrupto: %w", err)
	}
	return &record, nil
}

func respondStored(c *fiber.Ctx, record *idempotencyRecord, requestHash string) error {
	if record.RequestHash != requestHash {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "IDEMPOTENCY_MISMATCH", Message: "la clave de idempotencia ya se usó con otro cuerpo"})
	}
	if record.Pending {
		return inProgress(c)
	}
	return writeStoredResponse(c, record)
}

func release(ctx context.Context, store pkgredis.IdempotencyStore, key string, log *logger.Logger) {
	if err := store.Del(ctx, key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("liberar clave de idempotencia")
	}
}

func inProgress(c *fiber.Ctx) error {
	c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
	return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "IDEMPOTENCY_IN_PROGRESS", Message: "la petición con esta clave todavía se está procesando"})
}

func idempotencyUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "IDEMPOTENCY_UNAVAILABLE", Message: "no se pudo verificar la idempotencia"})
}

func buildScope(c *fiber.Ctx) string {
	return strings.Join([]string{GetUserID(c), c.Method(), c.Path()}, "|")
}

func writeStoredResponse(c *fiber.Ctx, record *idempotencyRecord) error {
	if ct, ok := record.Headers[fiber.HeaderContentType]; ok && ct != "" {
		c.Set(fiber.HeaderContentType, ct)
	}
	c.Set("Idempotent-Replay", "true")
	body, err := base64.StdEncoding.DecodeString(record.Body)
	if err != nil {
		body = nil
	}
	return c.Status(record.Status).Send(body)
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}
