package gateway

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	"solana-wallet-trace/internal/health"
	"solana-wallet-trace/internal/trade"
)

// clientIDHeader carries the session's uuid on every call after Init.
const clientIDHeader = "client-id"

// Operations is the service surface the HTTP layer exposes.
type Operations interface {
	Init(ctx context.Context, wallet string, tokens []string) (uuid.UUID, error)
	Subscribe(ctx context.Context, id uuid.UUID) (<-chan string, error)
	Unsubscribe(ctx context.Context, id uuid.UUID) (string, error)
	Holdings(ctx context.Context, id uuid.UUID) ([]Holding, error)
	GetTrade(ctx context.Context, id uuid.UUID, signature string) (*trade.Trade, error)
}

// Server is the HTTP front door. All five operations live under /v1;
// Subscribe streams server-sent events.
type Server struct {
	app     *fiber.App
	svc     Operations
	checker *health.Checker
	addr    string
}

// NewServer creates the HTTP server around a Service.
func NewServer(svc Operations, checker *health.Checker, addr string) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
	})

	s := &Server{
		app:     app,
		svc:     svc,
		checker: checker,
		addr:    addr,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.handleHealth)

	v1 := s.app.Group("/v1")
	v1.Post("/init", s.handleInit)
	v1.Get("/subscribe", s.handleSubscribe)
	v1.Post("/unsubscribe", s.handleUnsubscribe)
	v1.Get("/holdings", s.handleHoldings)
	v1.Get("/trade/:signature", s.handleTrade)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	statuses := s.checker.GetStatuses()
	status := "ok"
	if !s.checker.Healthy() {
		status = "degraded"
	}
	return c.JSON(fiber.Map{
		"status":   status,
		"upstream": statuses,
		"time":     time.Now().Unix(),
	})
}

// fail renders an operation error with its mapped HTTP status.
func fail(c *fiber.Ctx, err error) error {
	var serr *StatusError
	if errors.As(err, &serr) {
		return c.Status(serr.Code.HTTPStatus()).JSON(fiber.Map{"error": serr.Message})
	}
	return c.Status(500).JSON(fiber.Map{"error": err.Error()})
}

// clientID extracts and parses the client-id header.
func clientID(c *fiber.Ctx) (uuid.UUID, *StatusError) {
	raw := c.Get(clientIDHeader)
	if raw == "" {
		return uuid.Nil, statusErrorf(CodeUnauthenticated, "missing client id")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, statusErrorf(CodeUnauthenticated, "malformed uuid")
	}
	return id, nil
}

func (s *Server) handleInit(c *fiber.Ctx) error {
	var payload struct {
		Wallet string   `json:"wallet"`
		Tokens []string `json:"tokens"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	id, err := s.svc.Init(c.Context(), payload.Wallet, payload.Tokens)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"client_id": id.String()})
}

func (s *Server) handleSubscribe(c *fiber.Ctx) error {
	id, serr := clientID(c)
	if serr != nil {
		return fail(c, serr)
	}

	stream, err := s.svc.Subscribe(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		for msg := range stream {
			if _, err := fmt.Fprintf(w, "data: %s\n\n", msg); err != nil {
				break
			}
			if err := w.Flush(); err != nil {
				// Client went away; the upstream subscription stays
				// until Unsubscribe releases it.
				log.Debug().Str("clientID", id.String()).Msg("stream consumer disconnected")
				break
			}
		}
	}))
	return nil
}

func (s *Server) handleUnsubscribe(c *fiber.Ctx) error {
	id, serr := clientID(c)
	if serr != nil {
		return fail(c, serr)
	}

	msg, err := s.svc.Unsubscribe(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": msg})
}

func (s *Server) handleHoldings(c *fiber.Ctx) error {
	id, serr := clientID(c)
	if serr != nil {
		return fail(c, serr)
	}

	holdings, err := s.svc.Holdings(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"holdings": holdings})
}

func (s *Server) handleTrade(c *fiber.Ctx) error {
	id, serr := clientID(c)
	if serr != nil {
		return fail(c, serr)
	}

	tr, err := s.svc.GetTrade(c.Context(), id, c.Params("signature"))
	if err != nil {
		return fail(c, err)
	}
	if tr == nil {
		return c.JSON(fiber.Map{"trade": nil})
	}
	return c.JSON(fiber.Map{
		"trade":   tr,
		"kind":    tr.Kind(),
		"message": tr.String(),
	})
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Info().Str("addr", s.addr).Msg("starting wallet-trace server")
	return s.app.Listen(s.addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
