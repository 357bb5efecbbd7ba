package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/samirrijal/civicconnect/internal/core/domain"
	"github.com/samirrijal/civicconnect/internal/core/ports"
)

// IssueRepo implements ports.IssueRepository.
type IssueRepo struct {
	db *DB
}

func NewIssueRepo(db *DB) *IssueRepo {
	return &IssueRepo{db: db}
}

const issueColumns = `i.id, i.detected_issue, i.confidence, i.severity_score,
	COALESCE(i.description, ''), COALESCE(i.location_text, ''), i.latitude, i.longitude,
	i.image1_path, COALESCE(i.image2_path, ''), i.citizen_name, i.citizen_email,
	COALESCE(u.phone, ''), i.assigned_department, i.exif_verified, i.exif_reason,
	i.status, i.escalated, i.created_at`

const issueFrom = ` FROM issues i LEFT JOIN users u ON u.email = i.citizen_email`

func scanIssue(row interface{ Scan(...any) error }, is *domain.Issue) error {
	return row.Scan(&is.ID, &is.DetectedIssue, &is.Confidence, &is.SeverityScore,
		&is.Description, &is.LocationText, &is.Location.Lat, &is.Location.Lng,
		&is.Image1Path, &is.Image2Path, &is.CitizenName, &is.CitizenEmail,
		&is.CitizenPhone, &is.AssignedDepartment, &is.ExifVerified, &is.ExifReason,
		&is.Status, &is.Escalated, &is.CreatedAt)
}

func (r *IssueRepo) Create(ctx context.Context, is *domain.Issue) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO issues (detected_issue, confidence, severity_score, description, location_text,
		                    latitude, longitude, image1_path, image2_path, citizen_name, citizen_email,
		                    assigned_department, exif_verified, exif_reason, status)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, NULLIF($9, ''), $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at
	`, is.DetectedIssue, is.Confidence, is.SeverityScore, is.Description, is.LocationText,
		is.Location.Lat, is.Location.Lng, is.Image1Path, is.Image2Path, is.CitizenName, is.CitizenEmail,
		is.AssignedDepartment, is.ExifVerified, is.ExifReason, is.Status).
		Scan(&is.ID, &is.CreatedAt)
	return mapErr(err)
}

func (r *IssueRepo) GetByID(ctx context.Context, id int64) (*domain.Issue, error) {
	var is domain.Issue
	row := r.db.Pool.QueryRow(ctx, `SELECT `+issueColumns+issueFrom+` WHERE i.id = $1`, id)
	if err := scanIssue(row, &is); err != nil {
		return nil, mapErr(err)
	}
	return &is, nil
}

// List returns issues newest first, or by severity when f.BySeverity is set.
func (r *IssueRepo) List(ctx context.Context, f ports.IssueFilter) ([]domain.Issue, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.DetectedIssue != "" {
		add("lower(i.detected_issue) = lower($%d)", f.DetectedIssue)
	}
	if f.Status != "" {
		add("i.status = $%d", f.Status)
	}
	if f.Department != "" {
		add("i.assigned_department = $%d", f.Department)
	}
	if f.CitizenEmail != "" {
		add("i.citizen_email = $%d", f.CitizenEmail)
	}

	q := `SELECT ` + issueColumns + issueFrom
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if f.BySeverity {
		q += " ORDER BY i.severity_score DESC, i.created_at DESC"
	} else {
		q += " ORDER BY i.created_at DESC, i.id DESC"
	}
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return r.query(ctx, q, args...)
}

func (r *IssueRepo) query(ctx context.Context, q string, args ...any) ([]domain.Issue, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var issues []domain.Issue
	for rows.Next() {
		var is domain.Issue
		if err := scanIssue(rows, &is); err != nil {
			return nil, err
		}
		issues = append(issues, is)
	}
	return issues, rows.Err()
}

func (r *IssueRepo) CountsByCitizen(ctx context.Context, email string) (domain.IssueCounts, error) {
	var c domain.IssueCounts
	err := r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'Pending'),
		       COUNT(*) FILTER (WHERE status = 'In Progress'),
		       COUNT(*) FILTER (WHERE status = 'Resolved')
		FROM issues WHERE citizen_email = $1
	`, email).Scan(&c.Total, &c.Pending, &c.InProgress, &c.Resolved)
	return c, mapErr(err)
}

// CountByType counts issues with the given label; an empty label counts all.
func (r *IssueRepo) CountByType(ctx context.Context, detectedIssue string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM issues WHERE $1 = '' OR lower(detected_issue) = lower($1)
	`, detectedIssue).Scan(&n)
	return n, mapErr(err)
}

func (r *IssueRepo) DeleteOwned(ctx context.Context, id int64, email string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM issues WHERE id = $1 AND citizen_email = $2`, id, email)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *IssueRepo) UpdateStatus(ctx context.Context, id int64, status domain.IssueStatus) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE issues SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *IssueRepo) MarkEscalated(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE issues SET escalated = TRUE WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindWithinBounds returns issues inside b. A non-positive limit means no limit.
func (r *IssueRepo) FindWithinBounds(ctx context.Context, b domain.Bounds, limit int) ([]domain.Issue, error) {
	lngCond := `i.longitude BETWEEN $2 AND $4`
	if b.CrossesAntimeridian() {
		lngCond = `(i.longitude >= $2 OR i.longitude <= $4)`
	}
	q := `SELECT ` + issueColumns + issueFrom + `
		WHERE i.latitude BETWEEN $1 AND $3 AND ` + lngCond + `
		ORDER BY i.created_at DESC`
	args := []any{b.MinLat, b.MinLng, b.MaxLat, b.MaxLng}
	if limit > 0 {
		q += " LIMIT $5"
		args = append(args, limit)
	}
	return r.query(ctx, q, args...)
}
