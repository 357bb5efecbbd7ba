package domain

import (
	"time"
)

// Role is the role a user account acts under.
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleOfficer Role = "officer"
	RoleAdmin   Role = "admin"
)

// UserStatus is the lifecycle state of an account.
type UserStatus string

const (
	UserActive  UserStatus = "active"
	UserPending UserStatus = "pending"
	UserBlocked UserStatus = "blocked"
)

// User is a citizen, officer or administrator account.
type User struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone,omitempty"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Pincode      string     `json:"pincode,omitempty"`
	Department   string     `json:"department,omitempty"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
}

// IssueStatus is the triage state of a reported issue.
type IssueStatus string

const (
	StatusPending    IssueStatus = "Pending"
	StatusInProgress IssueStatus = "In Progress"
	StatusResolved   IssueStatus = "Resolved"
)

// Valid reports whether s is one of the known statuses.
func (s IssueStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// Issue is a civic problem reported by a citizen.
type Issue struct {
	ID                 int64       `json:"issue_id"`
	DetectedIssue      string      `json:"detected_issue"`
	Confidence         float64     `json:"confidence"`
	SeverityScore      float64     `json:"severity_score"`
	Description        string      `json:"description,omitempty"`
	LocationText       string      `json:"location_text,omitempty"`
	Location           GeoPoint    `json:"location"`
	Image1Path         string      `json:"image1_path,omitempty"`
	Image2Path         string      `json:"image2_path,omitempty"`
	CitizenName        string      `json:"citizen_name,omitempty"`
	CitizenEmail       string      `json:"citizen_email,omitempty"`
	CitizenPhone       string      `json:"citizen_phone,omitempty"` // joined from users
	AssignedDepartment string      `json:"assigned_department"`
	ExifVerified       bool        `json:"exif_verified"`
	ExifReason         string      `json:"exif_reason"`
	Status             IssueStatus `json:"status"`
	Escalated          bool        `json:"escalated"`
	Distance           *float64    `json:"distance,omitempty"` // computed field
	CreatedAt          time.Time   `json:"created_at"`
}

// IssueCounts summarises a citizen's issues by status.
type IssueCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"progress"`
	Resolved   int `json:"resolved"`
}

// MonthlyCount is the number of issues created in one calendar month.
type MonthlyCount struct {
	Month string `json:"month"` // YYYY-MM
	Count int    `json:"count"`
}

// Hotspot aggregates issues falling into one H3 cell.
type Hotspot struct {
	Cell       string         `json:"cell"`
	Resolution int            `json:"resolution"`
	Center     GeoPoint       `json:"center"`
	Count      int            `json:"count"`
	ByType     map[string]int `json:"by_type"`
}

// Prediction is the classifier's label for a photo.
type Prediction struct {
	Label         string  `json:"prediction"`
	Confidence    float64 `json:"confidence"`
	SeverityScore float64 `json:"severity_score"`
}

// Assignment tells the citizen who will handle a new issue.
type Assignment struct {
	Department string `json:"department"`
	Officer    string `json:"officer"`
	Priority   string `json:"priority"`
}

// Priorities used for assignment and triage SLAs.
const (
	PriorityHigh   = "High"
	PriorityNormal = "Normal"
)

// IssueEventType names an event published about an issue.
type IssueEventType string

const (
	EventIssueReported      IssueEventType = "issue.reported"
	EventIssueStatusChanged IssueEventType = "issue.status_changed"
	EventIssueAssigned      IssueEventType = "issue.assigned"
	EventIssueEscalated     IssueEventType = "issue.escalated"
)

// IssueEvent is broadcast on the message bus when an issue changes.
type IssueEvent struct {
	Type          IssueEventType `json:"type"`
	IssueID       int64          `json:"issue_id"`
	DetectedIssue string         `json:"detected_issue"`
	Department    string         `json:"department"`
	Status        IssueStatus    `json:"status"`
	Priority      string         `json:"priority,omitempty"`
	SeverityScore float64        `json:"severity_score"`
	ExifVerified  bool           `json:"exif_verified"`
	OccurredAt    time.Time      `json:"occurred_at"`
}
