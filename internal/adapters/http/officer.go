package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/civicconnect/internal/adapters/policy"
	"github.com/samirrijal/civicconnect/internal/core/domain"
	"github.com/samirrijal/civicconnect/internal/core/ports"
	"github.com/samirrijal/civicconnect/internal/pkg/logging"
)

// officerDepartment is the department an officer works for. Administrators
// may pick one with ?department=, or see every department.
func officerDepartment(c *fiber.Ctx) string {
	p := principal(c)
	if p.Role == domain.RoleAdmin {
		return c.Query("department")
	}
	return p.Department
}

// OfficerIssuesHandler lists the department's issues, newest first.
func OfficerIssuesHandler(deps *Dependencies, bySeverity bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		issues, err := deps.Issues.DepartmentIssues(c.UserContext(), officerDepartment(c), bySeverity)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(nonNil(issues))
	}
}

type monthlyIssue struct {
	IssueID   int64  `json:"issue_id"`
	CreatedAt string `json:"created_at"`
}

// OfficerMonthlyHandler returns the department's issues grouped by month.
func OfficerMonthlyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		issues, counts, err := deps.Issues.MonthlyReport(c.UserContext(), officerDepartment(c))
		if err != nil {
			return writeError(c, err)
		}
		list := make([]monthlyIssue, 0, len(issues))
		for _, i := range issues {
			list = append(list, monthlyIssue{IssueID: i.ID, CreatedAt: i.CreatedAt.Format("2006-01-02 15:04:05")})
		}
		return c.JSON(fiber.Map{
			"issues": list,
			"months": nonNil(counts),
		})
	}
}

// OfficerIssueHandler returns an issue including the citizen's phone.
func OfficerIssueHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return errBadRequest(c, "invalid issue id")
		}
		issue, err := deps.Issues.Get(c.UserContext(), int64(id))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(issue)
	}
}

type statusRequest struct {
	Status string `json:"status" form:"status"`
}

// OfficerUpdateStatusHandler moves an issue to a new status. Officers may
// only touch issues of their own department.
func OfficerUpdateStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return errBadRequest(c, "invalid issue id")
		}
		var req statusRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		status := domain.IssueStatus(req.Status)
		if !status.Valid() {
			return errBadRequest(c, "status must be one of Pending, In Progress, Resolved")
		}

		ctx := c.UserContext()
		issue, err := deps.Issues.Get(ctx, int64(id))
		if err != nil {
			return writeError(c, err)
		}

		p := principal(c)
		ok, err := deps.Authz.Allow(ctx, ports.AuthzInput{
			Role:               p.Role,
			Action:             policy.ActionOfficerUpdateStatus,
			Department:         p.Department,
			ResourceDepartment: issue.AssignedDepartment,
		})
		if err != nil {
			return writeError(c, err)
		}
		if !ok {
			return errForbidden(c, "issue belongs to another department")
		}

		updated, err := deps.Issues.UpdateStatus(ctx, int64(id), status)
		if err != nil {
			return writeError(c, err)
		}
		logging.FromContext(ctx).Info("issue status changed", "issue_id", id, "status", status, "by", p.Email)
		return c.JSON(updated)
	}
}
