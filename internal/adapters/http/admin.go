package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/civicconnect/internal/core/domain"
	"github.com/samirrijal/civicconnect/internal/core/ports"
	"github.com/samirrijal/civicconnect/internal/core/usecases"
	"github.com/samirrijal/civicconnect/internal/pkg/logging"
)

// Account actions and the status each one sets. Rejected officers are
// blocked so they cannot log in.
var accountActions = map[domain.Role]map[string]domain.UserStatus{
	domain.RoleOfficer: {
		"approve":    domain.UserActive,
		"reject":     domain.UserBlocked,
		"block":      domain.UserBlocked,
		"reactivate": domain.UserActive,
	},
	domain.RoleCitizen: {
		"block":      domain.UserBlocked,
		"reactivate": domain.UserActive,
	},
}

// ListUsersHandler lists accounts of one role, filtered by ?status and ?q.
func ListUsersHandler(deps *Dependencies, role domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := ports.UserFilter{Role: role, Query: c.Query("q")}
		switch s := c.Query("status", "all"); s {
		case "all", "":
		case string(domain.UserActive), string(domain.UserPending), string(domain.UserBlocked):
			f.Status = domain.UserStatus(s)
		default:
			return errBadRequest(c, "status must be one of all, active, pending, blocked")
		}

		users, err := deps.Users.List(c.UserContext(), f)
		if err != nil {
			return writeError(c, err)
		}
		return paginate(c, users)
	}
}

// UserActionHandler applies approve/reject/block/reactivate to an account.
func UserActionHandler(deps *Dependencies, role domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return errBadRequest(c, "invalid user id")
		}
		action := c.Params("action")
		status, ok := accountActions[role][action]
		if !ok {
			return errBadRequest(c, "unknown action: "+action)
		}

		ctx := c.UserContext()
		if err := deps.Users.SetStatus(ctx, int64(id), role, status); err != nil {
			return writeError(c, err)
		}
		logging.FromContext(ctx).Info("account status changed",
			"user_id", id, "role", role, "action", action, "by", principal(c).Email)
		return c.JSON(fiber.Map{"id": id, "status": status})
	}
}

// AdminIssuesHandler lists every issue, optionally narrowed by ?type and ?status.
func AdminIssuesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := ports.IssueFilter{Status: domain.IssueStatus(c.Query("status"))}
		if t := c.Query("type", "all"); t != "all" {
			f.DetectedIssue = t
		}
		if f.Status != "" && !f.Status.Valid() {
			return errBadRequest(c, "unknown status")
		}

		issues, err := deps.Issues.List(c.UserContext(), f)
		if err != nil {
			return writeError(c, err)
		}
		return paginate(c, issues)
	}
}

// IssueTypeCountsHandler returns the number of issues per detected type.
func IssueTypeCountsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		counts := make(map[string]int, len(usecases.IssueTypes)+1)
		for _, label := range append([]string{"all"}, usecases.IssueTypes...) {
			n, err := deps.Issues.CountByType(ctx, label)
			if err != nil {
				return writeError(c, err)
			}
			counts[label] = n
		}
		return c.JSON(counts)
	}
}

// HotspotsHandler aggregates issues into H3 cells at ?res.
func HotspotsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res := c.QueryInt("res", deps.HotspotResolution)
		if res < 0 || res > 15 {
			return errBadRequest(c, "res must be between 0 and 15")
		}
		spots, err := deps.Issues.Hotspots(c.UserContext(), res)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(nonNil(spots))
	}
}
