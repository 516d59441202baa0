package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/policy"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/service"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
)

const (
	defaultTransactionLimit = 15
	maxTransactionLimit     = 100
)

type StatusSource interface {
	Snapshot() types.StatusSnapshot
}

type TopUpper interface {
	TopUp(ctx context.Context, uid string, amount int64) (types.CardAccount, error)
}

type GateOpener interface {
	Open(ctx context.Context, lane string) error
}

type Dependencies struct {
	Logger       logrus.FieldLogger
	Addr         string
	Status       StatusSource
	Transactions store.TransactionLog
	TopUp        TopUpper
	Gates        GateOpener // nil when no actuator runs in this process

	// Optional POST protection.
	OperatorTokenHash string        // bcrypt hash; empty disables the check
	Cache             *redis.Client // enables Idempotency-Key replay
	IdempotencyTTL    time.Duration
	CORSOrigins       []string
}

type Server struct {
	app          *fiber.App
	addr         string
	logger       logrus.FieldLogger
	status       StatusSource
	transactions store.TransactionLog
	topUp        TopUpper
	gates        GateOpener
}

func NewServer(d Dependencies) *Server {
	s := &Server{
		addr:         d.Addr,
		logger:       d.Logger,
		status:       d.Status,
		transactions: d.Transactions,
		topUp:        d.TopUp,
		gates:        d.Gates,
	}

	app := fiber.New(fiber.Config{
		AppName:               "tollgate",
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		BodyLimit:             maxRequestBody,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(loggingMiddleware(d.Logger))
	if len(d.CORSOrigins) > 0 {
		app.Use(cors.New(cors.Config{AllowOrigins: strings.Join(d.CORSOrigins, ",")}))
	}

	app.Get("/healthz", s.handleHealth)

	api := app.Group("/api")
	api.Get("/rfid_status", s.handleStatus)
	api.Get("/transactions", s.handleTransactions)

	guard := []fiber.Handler{operatorAuth(d.OperatorTokenHash)}
	if d.Cache != nil {
		ttl := d.IdempotencyTTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		guard = append(guard, idempotency(d.Cache, ttl, d.Logger))
	}
	api.Post("/topup", append(guard, s.handleTopUp)...)
	api.Post("/gate/:lane", append(guard, s.handleGateOpen)...)

	s.app = app
	return s
}

// App exposes the fiber app, mostly for app.Test in tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Start() error {
	return s.app.Listen(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	snap := s.status.Snapshot()
	if wantsProtobuf(c) {
		return writeStatusProto(c, snap)
	}
	return c.JSON(snap)
}

func (s *Server) handleTransactions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultTransactionLimit)
	if limit <= 0 {
		limit = defaultTransactionLimit
	}
	if limit > maxTransactionLimit {
		limit = maxTransactionLimit
	}

	recs, err := s.transactions.Recent(c.UserContext(), limit)
	if err != nil {
		s.logger.WithError(err).Error("transactions query failed")
		return writeError(c, fiber.StatusInternalServerError, "internal_error", "could not load transactions")
	}
	return c.JSON(recs)
}

type topUpRequest struct {
	UID    string      `json:"uid"`
	Amount json.Number `json:"amount"`
}

func (s *Server) handleTopUp(c *fiber.Ctx) error {
	var req topUpRequest
	dec := json.NewDecoder(bytes.NewReader(c.Body()))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "bad_json", "invalid JSON body")
	}

	amount, err := req.Amount.Int64()
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_amount", "amount must be a whole number")
	}

	acct, err := s.topUp.TopUp(c.UserContext(), req.UID, amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidUID):
			return writeError(c, fiber.StatusBadRequest, "invalid_uid", err.Error())
		case errors.Is(err, policy.ErrInvalidAmount), errors.Is(err, policy.ErrAmountTooHigh):
			return writeError(c, fiber.StatusBadRequest, "invalid_amount", err.Error())
		case errors.Is(err, store.ErrAccountNotFound):
			return writeError(c, fiber.StatusNotFound, "not_found", "card not found")
		case errors.Is(err, service.ErrLockTimeout):
			return writeError(c, fiber.StatusConflict, "busy", "card is being processed, retry")
		default:
			s.logger.WithError(err).WithField("uid", req.UID).Error("top-up failed")
			return writeError(c, fiber.StatusBadGateway, "backend_error", "ledger unavailable")
		}
	}

	return c.JSON(fiber.Map{
		"ok":      true,
		"uid":     acct.UID,
		"name":    acct.Name,
		"balance": acct.Balance,
	})
}

func (s *Server) handleGateOpen(c *fiber.Ctx) error {
	lane := c.Params("lane")
	if _, err := types.ParseLane(lane); err != nil {
		return writeError(c, fiber.StatusBadRequest, "unknown_lane", err.Error())
	}
	if s.gates == nil {
		return writeError(c, fiber.StatusConflict, "lane_unavailable", "no gate actuator in this process")
	}

	if err := s.gates.Open(c.UserContext(), lane); err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownLane):
			return writeError(c, fiber.StatusBadRequest, "unknown_lane", err.Error())
		case errors.Is(err, service.ErrLaneUnavailable):
			return writeError(c, fiber.StatusConflict, "lane_unavailable", err.Error())
		default:
			s.logger.WithError(err).WithField("lane", lane).Error("gate open failed")
			return writeError(c, fiber.StatusInternalServerError, "internal_error", "unexpected server error")
		}
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true, "lane": lane})
}

// handleError renders fiber's own errors (404, body too large) in the API's
// error shape.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.WithError(err).Error("unhandled request error")
		return writeError(c, code, "internal_error", "unexpected server error")
	}
	return writeError(c, code, errorCode(code), err.Error())
}

func errorCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusRequestEntityTooLarge:
		return "body_too_large"
	case fiber.StatusUnauthorized:
		return "unauthorized"
	case fiber.StatusConflict:
		return "conflict"
	default:
		return "bad_request"
	}
}

func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}
