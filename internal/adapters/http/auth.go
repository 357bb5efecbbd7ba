package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/civicconnect/internal/core/domain"
	"github.com/samirrijal/civicconnect/internal/core/usecases"
	"github.com/samirrijal/civicconnect/internal/pkg/logging"
)

type signupRequest struct {
	Name       string `json:"name" form:"name"`
	Email      string `json:"email" form:"email"`
	Phone      string `json:"phone" form:"phone"`
	Role       string `json:"role" form:"role"`
	Password   string `json:"password" form:"password"`
	Pincode    string `json:"pincode" form:"pincode"`
	Department string `json:"department" form:"department"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// SignupHandler registers a citizen or officer. Active accounts are logged in.
func SignupHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req signupRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Role == "" {
			req.Role = string(domain.RoleCitizen)
		}

		u, err := deps.Users.Signup(c.UserContext(), usecases.SignupInput{
			Name:       req.Name,
			Email:      req.Email,
			Phone:      req.Phone,
			Role:       domain.Role(req.Role),
			Password:   req.Password,
			Pincode:    req.Pincode,
			Department: req.Department,
		})
		if err != nil {
			return writeError(c, err)
		}

		loggedIn := u.Status == domain.UserActive
		if loggedIn {
			if err := startSession(c, deps.Sessions, u); err != nil {
				return writeError(c, err)
			}
		}
		logging.FromContext(c.UserContext()).Info("account created", "user_id", u.ID, "role", u.Role, "status", u.Status)

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"user":      u,
			"logged_in": loggedIn,
		})
	}
}

// LoginHandler checks credentials and starts a session.
func LoginHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req loginRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Email == "" || req.Password == "" {
			return errBadRequest(c, "email and password are required")
		}

		u, err := deps.Users.Login(c.UserContext(), req.Email, req.Password)
		if err != nil {
			return writeError(c, err)
		}
		if err := startSession(c, deps.Sessions, u); err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"user": u})
	}
}

// LogoutHandler destroys the session.
func LogoutHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := deps.Sessions.Get(c)
		if err != nil {
			return writeError(c, err)
		}
		if err := sess.Destroy(); err != nil {
			return writeError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// MeHandler returns the session principal.
func MeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := loadPrincipal(c, deps.Sessions)
		if err != nil || p == nil {
			return errUnauthorized(c, "login required")
		}
		return c.JSON(p)
	}
}
