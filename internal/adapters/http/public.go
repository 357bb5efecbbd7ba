package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/civicconnect/internal/core/domain"
	"github.com/samirrijal/civicconnect/internal/core/usecases"
)

// publicIssue hides the reporter's contact details.
func publicIssue(i domain.Issue) domain.Issue {
	i.CitizenName = ""
	i.CitizenEmail = ""
	i.CitizenPhone = ""
	return i
}

// NearbyIssuesHandler returns issues around ?lat,lng within ?radius meters,
// closest first. Without a point it returns the latest issues.
func NearbyIssuesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 50)
		if limit <= 0 || limit > 100 {
			limit = 50
		}

		var (
			issues []domain.Issue
			err    error
		)
		if c.Query("lat") == "" && c.Query("lng") == "" {
			issues, err = deps.Issues.Latest(c.UserContext(), limit)
		} else {
			lat := c.QueryFloat("lat", 1000)
			lng := c.QueryFloat("lng", 1000)
			radius := c.QueryFloat("radius", 1000)
			if radius <= 0 || radius > 50000 {
				return errBadRequest(c, "radius must be between 1 and 50000 meters")
			}
			issues, err = deps.Issues.Nearby(c.UserContext(), domain.GeoPoint{Lat: lat, Lng: lng}, radius, limit)
		}
		if err != nil {
			return writeError(c, err)
		}

		out := make([]domain.Issue, 0, len(issues))
		for _, i := range issues {
			out = append(out, publicIssue(i))
		}
		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(out)
	}
}

// GetIssueHandler returns the public view of an issue.
func GetIssueHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return errBadRequest(c, "invalid issue id")
		}
		issue, err := deps.Issues.Get(c.UserContext(), int64(id))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(publicIssue(*issue))
	}
}

// UploadHandler serves a stored photo by its base name.
func UploadHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path, err := deps.Photos.Path(c.Params("name"))
		if err != nil {
			return errNotFound(c, "photo not found")
		}
		c.Set("Cache-Control", "public, max-age=86400, immutable")
		return c.SendFile(path)
	}
}

// PredictHandler classifies the multipart "image" field.
func PredictHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Classify == nil {
			return errUnavailable(c, "classifier is disabled")
		}
		fh, err := c.FormFile("image")
		if err != nil {
			return errBadRequest(c, "image is required")
		}
		if !usecases.AllowedPhoto(fh.Filename) {
			return errBadRequest(c, "Invalid image type")
		}
		f, err := fh.Open()
		if err != nil {
			return errBadRequest(c, "could not read image")
		}
		defer f.Close()

		pred, err := deps.Classify.Predict(c.UserContext(), f)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(pred)
	}
}
