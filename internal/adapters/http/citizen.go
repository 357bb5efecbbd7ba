package http

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/samirrijal/civicconnect/internal/core/domain"
	"github.com/samirrijal/civicconnect/internal/core/usecases"
)

// ReportResponse is returned after a citizen reports an issue.
type ReportResponse struct {
	ComplaintID   string            `json:"complaint_id"`
	IssueID       int64             `json:"issue_id"`
	DetectedIssue string            `json:"detected_issue"`
	AssignedTo    domain.Assignment `json:"assigned_to"`
	Verification  domain.Verdict    `json:"verification"`
}

// ReportIssueHandler accepts a multipart issue report. Both photos are optional;
// photo_1 is the one verified.
func ReportIssueHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		latStr := strings.TrimSpace(c.FormValue("lat"))
		lngStr := strings.TrimSpace(c.FormValue("lng"))
		if latStr == "" || lngStr == "" {
			return errBadRequest(c, "Location missing")
		}
		lat, errLat := strconv.ParseFloat(latStr, 64)
		lng, errLng := strconv.ParseFloat(lngStr, 64)
		if errLat != nil || errLng != nil {
			return errBadRequest(c, "lat and lng must be numbers")
		}

		photo1, close1, err := optionalUpload(c, "photo_1")
		if err != nil {
			return errBadRequest(c, "could not read photo_1")
		}
		defer close1()
		photo2, close2, err := optionalUpload(c, "photo_2")
		if err != nil {
			return errBadRequest(c, "could not read photo_2")
		}
		defer close2()

		in := usecases.ReportInput{
			Reporter:       principal(c).User(),
			PredictedIssue: strings.TrimSpace(c.FormValue("predicted_issue")),
			Confidence:     formFloat(c, "confidence"),
			SeverityScore:  formFloat(c, "severity_score"),
			Description:    c.FormValue("description"),
			LocationText:   c.FormValue("location"),
			Location:       domain.GeoPoint{Lat: lat, Lng: lng},
			Photo1:         photo1,
			Photo2:         photo2,
		}
		res, err := deps.Issues.Report(c.UserContext(), in)
		if err != nil {
			return writeError(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(ReportResponse{
			ComplaintID:   res.ComplaintID(),
			IssueID:       res.Issue.ID,
			DetectedIssue: res.Issue.DetectedIssue,
			AssignedTo:    res.Assignment,
			Verification:  res.Verdict,
		})
	}
}

// optionalUpload opens a multipart file if the field was sent. A missing
// field yields a nil upload. The returned func is always safe to call.
func optionalUpload(c *fiber.Ctx, field string) (*usecases.Upload, func(), error) {
	noop := func() {}
	fh, err := c.FormFile(field)
	if errors.Is(err, fasthttp.ErrMissingFile) || errors.Is(err, fasthttp.ErrNoMultipartForm) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, err
	}
	if fh == nil {
		return nil, noop, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, noop, err
	}
	return &usecases.Upload{Name: fh.Filename, Data: f}, func() { f.Close() }, nil
}

func formFloat(c *fiber.Ctx, key string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(c.FormValue(key)), 64)
	if err != nil {
		return 0
	}
	return v
}

// MyIssueCountsHandler returns the caller's issue counts by status.
func MyIssueCountsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		counts, err := deps.Issues.CitizenCounts(c.UserContext(), principal(c).Email)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(counts)
	}
}

// MyIssuesHandler lists the caller's issues, newest first.
func MyIssuesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		issues, err := deps.Issues.CitizenIssues(c.UserContext(), principal(c).Email)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(nonNil(issues))
	}
}

// MyIssueHandler returns one of the caller's issues.
func MyIssueHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return errBadRequest(c, "invalid issue id")
		}
		issue, err := deps.Issues.CitizenIssue(c.UserContext(), int64(id), principal(c).Email)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(issue)
	}
}

// WithdrawIssueHandler deletes one of the caller's pending issues.
func WithdrawIssueHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return errBadRequest(c, "invalid issue id")
		}
		if err := deps.Issues.Withdraw(c.UserContext(), int64(id), principal(c).Email); err != nil {
			return writeError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
