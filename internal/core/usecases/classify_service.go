package usecases

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/samirrijal/civicconnect/internal/core/domain"
	"github.com/samirrijal/civicconnect/internal/core/ports"
	"github.com/samirrijal/civicconnect/internal/pkg/metrics"
)

// ClassifyService labels photos with the issue they show.
type ClassifyService struct {
	classifier ports.Classifier
}

// NewClassifyService creates a new ClassifyService. A nil classifier makes
// every prediction fail.
func NewClassifyService(classifier ports.Classifier) *ClassifyService {
	return &ClassifyService{classifier: classifier}
}

// SeverityFromConfidence is confidence × 10 rounded to two decimals.
func SeverityFromConfidence(confidence float64) float64 {
	return math.Round(confidence*10*100) / 100
}

// Predict classifies an image and attaches the severity score.
func (s *ClassifyService) Predict(ctx context.Context, image io.Reader) (*domain.Prediction, error) {
	if s.classifier == nil {
		metrics.ClassifierRequests.WithLabelValues("unavailable").Inc()
		return nil, fmt.Errorf("classifier not configured")
	}
	p, err := s.classifier.Classify(ctx, image)
	if err != nil {
		metrics.ClassifierRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("classify: %w", err)
	}
	metrics.ClassifierRequests.WithLabelValues("ok").Inc()

	p.SeverityScore = SeverityFromConfidence(p.Confidence)
	return p, nil
}
