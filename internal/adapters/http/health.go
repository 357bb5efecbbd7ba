package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Version is reported by /v1/health. Set at link time.
var Version = "dev"

const readyTimeout = 3 * time.Second

// Readiness states reported per dependency.
const (
	stateOK            = "ok"
	stateNotConfigured = "not configured"
	stateMemorySession = "in-memory sessions"
	stateEventsOff     = "issue events disabled"
	stateDisconnected  = "disconnected"
)

// HealthHandler reports liveness and whether the optional classifier is on.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":     "healthy",
			"uptime":     time.Since(startedAt).String(),
			"version":    Version,
			"classifier": deps.Classify != nil,
		})
	}
}

// dependencyCheck is one line of the readiness report. A failing required
// check makes the service not ready; optional ones only degrade it.
type dependencyCheck struct {
	name     string
	required bool
	state    string
}

func (d dependencyCheck) healthy() bool {
	return !d.required || d.state == stateOK
}

func pingState(ctx context.Context, p Pinger, absent string) string {
	if p == nil {
		return absent
	}
	if err := p.Ping(ctx); err != nil {
		return "error: " + err.Error()
	}
	return stateOK
}

// readinessChecks checks the issue store, photo uploads, session store and
// event bus. Sessions and events are only required when configured.
func readinessChecks(ctx context.Context, deps *Dependencies) []dependencyCheck {
	checks := []dependencyCheck{
		{name: "database", required: true, state: pingState(ctx, deps.DB, stateNotConfigured)},
	}

	uploads := stateNotConfigured
	if deps.Photos != nil {
		uploads = stateOK
		if p, ok := deps.Photos.(Pinger); ok {
			uploads = pingState(ctx, p, stateNotConfigured)
		}
	}
	checks = append(checks, dependencyCheck{name: "uploads", required: true, state: uploads})

	// A configured Valkey must answer: sessions live there.
	checks = append(checks, dependencyCheck{
		name:     "sessions",
		required: deps.Cache != nil,
		state:    pingState(ctx, deps.Cache, stateMemorySession),
	})

	events := dependencyCheck{name: "events", state: stateEventsOff}
	if deps.NATS != nil {
		events.required = true
		events.state = stateOK
		if !deps.NATS.IsConnected() {
			events.state = stateDisconnected
		}
	}
	return append(checks, events)
}

// ReadyHandler reports per-dependency readiness; 503 when any required
// dependency is down.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), readyTimeout)
		defer cancel()

		report := make(map[string]string)
		ready := true
		for _, chk := range readinessChecks(ctx, deps) {
			report[chk.name] = chk.state
			if !chk.healthy() {
				ready = false
			}
		}

		if !ready {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not ready",
				"checks": report,
			})
		}
		return c.JSON(fiber.Map{
			"status": "ready",
			"checks": report,
		})
	}
}
