package sandbox

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/yiancode/zsxq-sdk/internal/telemetry"
)

// Handler serves scripted zsxq responses
type Handler struct {
	script   *Script
	journal  *Journal
	metrics  *telemetry.Metrics
	logger   logrus.FieldLogger
	started  time.Time
	defaults map[string]*Envelope
}

// NewHandler creates a new handler instance
func NewHandler(script *Script, journal *Journal, metrics *telemetry.Metrics, logger logrus.FieldLogger) *Handler {
	return &Handler{
		script:   script,
		journal:  journal,
		metrics:  metrics,
		logger:   logger,
		started:  time.Now(),
		defaults: defaultResponses(),
	}
}

// defaultResponses answers a few read endpoints when no stub is set, so a
// freshly started sandbox is usable from the CLI.
func defaultResponses() map[string]*Envelope {
	return map[string]*Envelope{
		routeKey(http.MethodGet, "/v2/users/self"): Success(fiber.Map{
			"user": fiber.Map{"user_id": 100001, "name": "sandbox", "avatar_url": ""},
		}),
		routeKey(http.MethodGet, "/v2/groups"): Success(fiber.Map{
			"groups": []fiber.Map{
				{"group_id": 1, "name": "Sandbox Group", "type": "pay"},
			},
		}),
	}
}

// Dispatch answers a verified request from the script
func (h *Handler) Dispatch(c *fiber.Ctx) error {
	step, ok := h.script.Next(c.Method(), c.Path())
	if !ok {
		if env, found := h.defaults[routeKey(c.Method(), c.Path())]; found {
			return c.JSON(env)
		}
		return c.Status(fiber.StatusNotFound).JSON(Failure(CodeEndpointNotFound, "endpoint not found"))
	}

	if d := step.delay(); d > 0 {
		h.metrics.RecordFault("delay")
		time.Sleep(d)
	}

	if step.Drop {
		h.metrics.RecordFault("drop")
		h.logger.WithFields(logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
		}).Debug("dropping connection")
		c.Context().HijackSetNoResponse(true)
		c.Context().Hijack(func(conn net.Conn) {
			_ = conn.Close()
		})
		return nil
	}

	for k, v := range step.Headers {
		c.Set(k, v)
	}

	status := step.status()
	if status >= fiber.StatusInternalServerError {
		h.metrics.RecordFault("status")
	}
	c.Status(status)

	if step.Raw != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(step.Raw)
	}
	return c.JSON(step.Envelope)
}

// Health handles GET /health
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "zsxq-sandbox",
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

// AddStub handles POST /_sandbox/stubs
func (h *Handler) AddStub(c *fiber.Ctx) error {
	var stub Stub
	if err := json.Unmarshal(c.Body(), &stub); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(Failure(CodeBadStub, "invalid stub: "+err.Error()))
	}
	if stub.Method == "" {
		stub.Method = http.MethodGet
	}
	if err := h.script.Add(stub); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(Failure(CodeBadStub, err.Error()))
	}
	return c.Status(fiber.StatusCreated).JSON(Success(fiber.Map{
		"route": routeKey(stub.Method, stub.Path),
		"steps": len(stub.Steps),
	}))
}

// ResetStubs handles DELETE /_sandbox/stubs
func (h *Handler) ResetStubs(c *fiber.Ctx) error {
	h.script.Reset()
	h.journal.Reset()
	return c.JSON(Success(nil))
}

// ListRequests handles GET /_sandbox/requests
func (h *Handler) ListRequests(c *fiber.Ctx) error {
	return c.JSON(Success(fiber.Map{"requests": h.journal.Requests()}))
}
