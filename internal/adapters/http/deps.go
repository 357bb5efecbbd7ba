package http

import (
	"context"

	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/civicconnect/internal/core/ports"
	"github.com/samirrijal/civicconnect/internal/core/usecases"
)

// Pinger is implemented by backing services checked by /v1/ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Issues   *usecases.IssueService
	Users    *usecases.UserService
	Classify *usecases.ClassifyService // nil when the classifier is disabled
	Authz    ports.Authorizer
	Photos   ports.PhotoStore
	Sessions *session.Store
	NATS     *nats.Conn
	DB       Pinger
	Cache    Pinger

	// HotspotResolution is the default H3 resolution for /v1/admin/hotspots.
	HotspotResolution int
	CORSOrigins       string
}
