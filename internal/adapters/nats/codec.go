package natsadapter

import (
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/samirrijal/civicconnect/internal/core/domain"
)

// Subject prefix and stream for issue events.
const (
	SubjectPrefix = "civic.issues."
	StreamName    = "CIVIC_ISSUES"
)

// Subject returns the NATS subject for an event type, e.g.
// civic.issues.reported for issue.reported.
func Subject(t domain.IssueEventType) string {
	return SubjectPrefix + strings.TrimPrefix(string(t), "issue.")
}

// DepartmentSubject is where events for one department are mirrored for
// live feeds, e.g. civic.dept.roads.
func DepartmentSubject(department string) string {
	return "civic.dept." + deptToken(department)
}

// AllDepartmentsSubject matches every department feed.
const AllDepartmentsSubject = "civic.dept.>"

func deptToken(department string) string {
	d := strings.ToLower(strings.TrimSpace(department))
	d = strings.NewReplacer(" ", "_", ".", "_", "*", "_", ">", "_").Replace(d)
	if d == "" {
		return "general"
	}
	return d
}

// EncodeEvent serialises an event as a protobuf Struct.
func EncodeEvent(e *domain.IssueEvent) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"type":           string(e.Type),
		"issue_id":       float64(e.IssueID),
		"detected_issue": e.DetectedIssue,
		"department":     e.Department,
		"status":         string(e.Status),
		"priority":       e.Priority,
		"severity_score": e.SeverityScore,
		"exif_verified":  e.ExifVerified,
		"occurred_at":    e.OccurredAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return proto.Marshal(s)
}

// DecodeEvent is the inverse of EncodeEvent.
func DecodeEvent(data []byte) (*domain.IssueEvent, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	f := s.GetFields()

	e := &domain.IssueEvent{
		Type:          domain.IssueEventType(f["type"].GetStringValue()),
		IssueID:       int64(f["issue_id"].GetNumberValue()),
		DetectedIssue: f["detected_issue"].GetStringValue(),
		Department:    f["department"].GetStringValue(),
		Status:        domain.IssueStatus(f["status"].GetStringValue()),
		Priority:      f["priority"].GetStringValue(),
		SeverityScore: f["severity_score"].GetNumberValue(),
		ExifVerified:  f["exif_verified"].GetBoolValue(),
	}
	if e.Type == "" || e.IssueID == 0 {
		return nil, fmt.Errorf("decode event: missing type or issue_id")
	}
	if ts := f["occurred_at"].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("decode event: occurred_at: %w", err)
		}
		e.OccurredAt = t
	}
	return e, nil
}

// EventJSON converts a wire event to JSON for browser clients.
func EventJSON(data []byte) ([]byte, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return protojson.Marshal(&s)
}
