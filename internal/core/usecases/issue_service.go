package usecases

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/uber/h3-go/v4"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/civicconnect/internal/core/domain"
	"github.com/samirrijal/civicconnect/internal/core/ports"
	"github.com/samirrijal/civicconnect/internal/pkg/geospatial"
	"github.com/samirrijal/civicconnect/internal/pkg/logging"
	"github.com/samirrijal/civicconnect/internal/pkg/metrics"
	"github.com/samirrijal/civicconnect/internal/pkg/telemetry"
)

// DefaultOfficer is the assignee shown to citizens until an officer picks
// the issue up.
const DefaultOfficer = "Municipal Officer"

const typeCountTTL = 60 // seconds

// IssueTypes lists the labels the classifier assigns.
var IssueTypes = []string{"pothole", "garbage", "water"}

var departments = map[string]string{
	"pothole": "Roads",
	"garbage": "Sanitation",
	"water":   "Water Supply",
}

// DepartmentFor maps a detected issue label to the department handling it.
func DepartmentFor(label string) string {
	if d, ok := departments[strings.ToLower(strings.TrimSpace(label))]; ok {
		return d
	}
	return "General"
}

// PriorityFor returns High for severity scores above 0.7.
func PriorityFor(severity float64) string {
	if severity > 0.7 {
		return domain.PriorityHigh
	}
	return domain.PriorityNormal
}

// AllowedPhoto reports whether name has an accepted image extension.
func AllowedPhoto(name string) bool {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "jpg", "jpeg", "png":
		return true
	}
	return false
}

// Upload is one photo attached to a report.
type Upload struct {
	Name string
	Data io.ReadSeeker
}

// ReportInput carries a citizen's new issue.
type ReportInput struct {
	Reporter       *domain.User
	PredictedIssue string
	Confidence     float64
	SeverityScore  float64
	Description    string
	LocationText   string
	Location       domain.GeoPoint
	Photo1         *Upload
	Photo2         *Upload
}

// ReportResult is returned to the citizen after reporting.
type ReportResult struct {
	Issue      *domain.Issue
	Assignment domain.Assignment
	Verdict    domain.Verdict
}

// ComplaintID formats the identifier shown to citizens.
func (r *ReportResult) ComplaintID() string {
	return "#CN-" + strconv.FormatInt(r.Issue.ID, 10)
}

// IssueService handles reporting and triage of civic issues.
type IssueService struct {
	issues    ports.IssueRepository
	photos    ports.PhotoStore
	verifier  *PhotoVerifier
	publisher ports.EventPublisher
	cache     ports.CacheService
	now       func() time.Time
}

// NewIssueService creates a new IssueService. publisher and cache may be nil.
func NewIssueService(
	issues ports.IssueRepository,
	photos ports.PhotoStore,
	verifier *PhotoVerifier,
	publisher ports.EventPublisher,
	cache ports.CacheService,
) *IssueService {
	return &IssueService{
		issues:    issues,
		photos:    photos,
		verifier:  verifier,
		publisher: publisher,
		cache:     cache,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *IssueService) WithClock(now func() time.Time) *IssueService {
	s.now = now
	return s
}

// Report verifies photo 1 if present, stores the photos and persists the issue.
func (s *IssueService) Report(ctx context.Context, in ReportInput) (*ReportResult, error) {
	if in.Reporter == nil {
		return nil, fmt.Errorf("%w: reporter is required", domain.ErrInvalidInput)
	}
	if !geospatial.ValidLatLon(in.Location.Lat, in.Location.Lng) {
		return nil, fmt.Errorf("%w: location out of range", domain.ErrInvalidInput)
	}
	for _, p := range []*Upload{in.Photo1, in.Photo2} {
		if p != nil && (p.Data == nil || !AllowedPhoto(p.Name)) {
			return nil, fmt.Errorf("%w: Invalid image type", domain.ErrInvalidInput)
		}
	}

	// Without photo 1 there is nothing to corroborate the location.
	verdict := domain.Unverified(domain.CauseMetadataAbsent)
	var path1, path2 string
	var err error
	if in.Photo1 != nil {
		verdict = s.verify(ctx, in.Photo1.Data, in.Location)
		if path1, err = s.photos.Save(ctx, in.Photo1.Name, in.Photo1.Data); err != nil {
			return nil, fmt.Errorf("save photo 1: %w", err)
		}
	}
	if in.Photo2 != nil {
		if path2, err = s.photos.Save(ctx, in.Photo2.Name, in.Photo2.Data); err != nil {
			return nil, fmt.Errorf("save photo 2: %w", err)
		}
	}

	issue := &domain.Issue{
		DetectedIssue:      in.PredictedIssue,
		Confidence:         in.Confidence,
		SeverityScore:      in.SeverityScore,
		Description:        in.Description,
		LocationText:       in.LocationText,
		Location:           in.Location,
		Image1Path:         path1,
		Image2Path:         path2,
		CitizenName:        in.Reporter.Name,
		CitizenEmail:       in.Reporter.Email,
		AssignedDepartment: DepartmentFor(in.PredictedIssue),
		ExifVerified:       verdict.Verified,
		ExifReason:         verdict.Reason,
		Status:             domain.StatusPending,
	}
	if err := s.issues.Create(ctx, issue); err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}

	metrics.IssuesReported.WithLabelValues(issue.DetectedIssue, strconv.FormatBool(verdict.Verified)).Inc()
	s.invalidateCounts(ctx, issue.DetectedIssue)

	priority := PriorityFor(issue.SeverityScore)
	s.publish(ctx, domain.EventIssueReported, issue, priority)

	return &ReportResult{
		Issue: issue,
		Assignment: domain.Assignment{
			Department: issue.AssignedDepartment,
			Officer:    DefaultOfficer,
			Priority:   priority,
		},
		Verdict: verdict,
	}, nil
}

func (s *IssueService) verify(ctx context.Context, photo io.ReadSeeker, declared domain.GeoPoint) domain.Verdict {
	_, span := telemetry.Tracer().Start(ctx, "PhotoVerifier.Verify")
	defer span.End()

	start := time.Now()
	report := s.verifier.Inspect(photo, declared, s.now())
	metrics.ObserveVerification(report.Verdict.Verified, string(report.Verdict.Cause), time.Since(start))

	span.SetAttributes(
		attribute.Bool("verification.verified", report.Verdict.Verified),
		attribute.String("verification.cause", string(report.Verdict.Cause)),
	)
	attrs := []any{"verified", report.Verdict.Verified, "cause", report.Verdict.Cause}
	if report.DistanceMeters != nil {
		attrs = append(attrs, "distance_m", *report.DistanceMeters)
		span.SetAttributes(attribute.Float64("verification.distance_m", *report.DistanceMeters))
	}
	if report.Age != nil {
		attrs = append(attrs, "age", report.Age.String())
	}
	logging.FromContext(ctx).DebugContext(ctx, "photo verification", attrs...)

	return report.Verdict
}

// CitizenCounts returns how many of a citizen's issues are in each status.
func (s *IssueService) CitizenCounts(ctx context.Context, email string) (domain.IssueCounts, error) {
	return s.issues.CountsByCitizen(ctx, email)
}

// CitizenIssues returns a citizen's issues, newest first.
func (s *IssueService) CitizenIssues(ctx context.Context, email string) ([]domain.Issue, error) {
	return s.issues.List(ctx, ports.IssueFilter{CitizenEmail: email})
}

// CitizenIssue returns one of the citizen's own issues. Other citizens'
// issues are reported as domain.ErrNotFound.
func (s *IssueService) CitizenIssue(ctx context.Context, id int64, email string) (*domain.Issue, error) {
	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(issue.CitizenEmail, email) {
		return nil, domain.ErrNotFound
	}
	return issue, nil
}

// Withdraw deletes a citizen's own issue while it is still Pending.
func (s *IssueService) Withdraw(ctx context.Context, id int64, email string) error {
	issue, err := s.CitizenIssue(ctx, id, email)
	if err != nil {
		return err
	}
	if issue.Status != domain.StatusPending {
		return domain.ErrNotWithdrawable
	}
	if err := s.issues.DeleteOwned(ctx, id, email); err != nil {
		return err
	}
	s.invalidateCounts(ctx, issue.DetectedIssue)
	return nil
}

// DepartmentIssues lists the issues assigned to a department.
func (s *IssueService) DepartmentIssues(ctx context.Context, department string, bySeverity bool) ([]domain.Issue, error) {
	return s.issues.List(ctx, ports.IssueFilter{Department: department, BySeverity: bySeverity})
}

// MonthlyReport returns a department's issues and how many were created
// per calendar month, oldest month first.
func (s *IssueService) MonthlyReport(ctx context.Context, department string) ([]domain.Issue, []domain.MonthlyCount, error) {
	issues, err := s.issues.List(ctx, ports.IssueFilter{Department: department})
	if err != nil {
		return nil, nil, err
	}
	return issues, MonthlyCounts(issues), nil
}

// MonthlyCounts buckets issues by the YYYY-MM of their creation time.
func MonthlyCounts(issues []domain.Issue) []domain.MonthlyCount {
	byMonth := make(map[string]int)
	for _, is := range issues {
		byMonth[is.CreatedAt.Format("2006-01")]++
	}
	out := make([]domain.MonthlyCount, 0, len(byMonth))
	for m, n := range byMonth {
		out = append(out, domain.MonthlyCount{Month: m, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// Get returns a single issue.
func (s *IssueService) Get(ctx context.Context, id int64) (*domain.Issue, error) {
	return s.issues.GetByID(ctx, id)
}

// List returns issues matching f.
func (s *IssueService) List(ctx context.Context, f ports.IssueFilter) ([]domain.Issue, error) {
	return s.issues.List(ctx, f)
}

// UpdateStatus moves an issue to a new triage status.
func (s *IssueService) UpdateStatus(ctx context.Context, id int64, status domain.IssueStatus) (*domain.Issue, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}
	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.issues.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	issue.Status = status
	s.publish(ctx, domain.EventIssueStatusChanged, issue, PriorityFor(issue.SeverityScore))
	return issue, nil
}

// Escalate flags an issue that missed its SLA while still Pending.
// It reports whether the issue was escalated.
func (s *IssueService) Escalate(ctx context.Context, id int64) (bool, error) {
	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if issue.Status != domain.StatusPending || issue.Escalated {
		return false, nil
	}
	if err := s.issues.MarkEscalated(ctx, id); err != nil {
		return false, err
	}
	issue.Escalated = true
	metrics.IssuesEscalated.Inc()
	s.publish(ctx, domain.EventIssueEscalated, issue, PriorityFor(issue.SeverityScore))
	return true, nil
}

// NotifyAssigned announces an issue to its department.
func (s *IssueService) NotifyAssigned(ctx context.Context, id int64) error {
	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if s.publisher == nil {
		return nil
	}
	return s.publisher.PublishIssueEvent(ctx, s.event(domain.EventIssueAssigned, issue, PriorityFor(issue.SeverityScore)))
}

// CountByType returns how many issues carry a detected label, or all
// issues for "all". Results are cached for a minute.
func (s *IssueService) CountByType(ctx context.Context, label string) (int, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		label = "all"
	}
	key := countKey(label)

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			if n, err := strconv.Atoi(string(data)); err == nil {
				metrics.CacheHits.WithLabelValues("issue_count").Inc()
				return n, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("issue_count").Inc()
	}

	filter := label
	if label == "all" {
		filter = ""
	}
	n, err := s.issues.CountByType(ctx, filter)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, []byte(strconv.Itoa(n)), typeCountTTL)
	}
	return n, nil
}

// Nearby returns issues within radiusMeters of center, closest first.
func (s *IssueService) Nearby(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.Issue, error) {
	if !geospatial.ValidLatLon(center.Lat, center.Lng) {
		return nil, fmt.Errorf("%w: coordinate out of range", domain.ErrInvalidInput)
	}
	if radiusMeters <= 0 || radiusMeters > 50000 {
		radiusMeters = 1000
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	minLat, minLng, maxLat, maxLng := geospatial.BoundingBox(center.Lat, center.Lng, radiusMeters)
	candidates, err := s.issues.FindWithinBounds(ctx, domain.Bounds{
		MinLat: minLat, MinLng: minLng, MaxLat: maxLat, MaxLng: maxLng,
	}, 0)
	if err != nil {
		return nil, err
	}

	out := candidates[:0]
	for _, is := range candidates {
		d := geospatial.Haversine(center.Lat, center.Lng, is.Location.Lat, is.Location.Lng)
		if d > radiusMeters {
			continue
		}
		is.Distance = &d
		out = append(out, is)
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].Distance < *out[j].Distance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Latest returns the most recent issues.
func (s *IssueService) Latest(ctx context.Context, limit int) ([]domain.Issue, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.issues.List(ctx, ports.IssueFilter{Limit: limit})
}

// Hotspots aggregates all issues into H3 cells at the given resolution,
// busiest cell first.
func (s *IssueService) Hotspots(ctx context.Context, resolution int) ([]domain.Hotspot, error) {
	if resolution < 0 || resolution > 15 {
		return nil, fmt.Errorf("%w: resolution must be 0-15", domain.ErrInvalidInput)
	}
	issues, err := s.issues.List(ctx, ports.IssueFilter{})
	if err != nil {
		return nil, err
	}
	return HotspotsOf(issues, resolution)
}

// HotspotsOf buckets issues into H3 cells.
func HotspotsOf(issues []domain.Issue, resolution int) ([]domain.Hotspot, error) {
	cells := make(map[h3.Cell]*domain.Hotspot)
	for _, is := range issues {
		cell, err := h3.LatLngToCell(h3.NewLatLng(is.Location.Lat, is.Location.Lng), resolution)
		if err != nil {
			return nil, fmt.Errorf("h3 cell for issue %d: %w", is.ID, err)
		}
		hs, ok := cells[cell]
		if !ok {
			center, err := h3.CellToLatLng(cell)
			if err != nil {
				return nil, fmt.Errorf("h3 center of %s: %w", cell, err)
			}
			hs = &domain.Hotspot{
				Cell:       cell.String(),
				Resolution: resolution,
				Center:     domain.GeoPoint{Lat: center.Lat, Lng: center.Lng},
				ByType:     make(map[string]int),
			}
			cells[cell] = hs
		}
		hs.Count++
		hs.ByType[is.DetectedIssue]++
	}

	out := make([]domain.Hotspot, 0, len(cells))
	for _, hs := range cells {
		out = append(out, *hs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Cell < out[j].Cell
	})
	return out, nil
}

func countKey(label string) string {
	return "issues:count:" + label
}

func (s *IssueService) invalidateCounts(ctx context.Context, label string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, countKey("all"))
	if label = strings.ToLower(strings.TrimSpace(label)); label != "" {
		_ = s.cache.Delete(ctx, countKey(label))
	}
}

func (s *IssueService) event(t domain.IssueEventType, issue *domain.Issue, priority string) *domain.IssueEvent {
	return &domain.IssueEvent{
		Type:          t,
		IssueID:       issue.ID,
		DetectedIssue: issue.DetectedIssue,
		Department:    issue.AssignedDepartment,
		Status:        issue.Status,
		Priority:      priority,
		SeverityScore: issue.SeverityScore,
		ExifVerified:  issue.ExifVerified,
		OccurredAt:    s.now().UTC(),
	}
}

// publish is best-effort: the issue is already persisted.
func (s *IssueService) publish(ctx context.Context, t domain.IssueEventType, issue *domain.Issue, priority string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishIssueEvent(ctx, s.event(t, issue, priority)); err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "publish issue event", "type", t, "issue_id", issue.ID, "error", err)
	}
}
