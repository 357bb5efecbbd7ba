package ports

import (
	"context"
	"io"

	"github.com/samirrijal/civicconnect/internal/core/domain"
)

// MetadataExtractor reads the embedded metadata block of a photo.
// It returns domain.ErrMetadataAbsent when there is no decodable block and
// never surfaces codec-specific errors.
type MetadataExtractor interface {
	Extract(r io.Reader) (*domain.PhotoMetadata, error)
}

// Classifier labels a photo with the kind of civic issue it shows.
type Classifier interface {
	Classify(ctx context.Context, r io.Reader) (*domain.Prediction, error)
}

// PhotoStore keeps uploaded photos and returns the stored name.
type PhotoStore interface {
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
	Path(name string) (string, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishIssueEvent(ctx context.Context, event *domain.IssueEvent) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeIssueEvents(ctx context.Context, eventType domain.IssueEventType, handler func(ctx context.Context, event *domain.IssueEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// AuthzInput is what the authorization policy decides on.
type AuthzInput struct {
	Role               domain.Role `json:"role"`
	Action             string      `json:"action"`
	Department         string      `json:"department,omitempty"`
	ResourceDepartment string      `json:"resource_department,omitempty"`
}

// Authorizer decides whether a principal may perform an action.
type Authorizer interface {
	Allow(ctx context.Context, in AuthzInput) (bool, error)
}
