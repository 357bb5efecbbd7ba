package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/samirrijal/civicconnect/internal/core/domain"
	"github.com/samirrijal/civicconnect/internal/core/ports"
	"github.com/samirrijal/civicconnect/internal/pkg/logging"
)

// SessionCookie is the name of the session cookie.
const SessionCookie = "civic_session"

// Session keys. Values are primitives so any fiber.Storage can encode them.
const (
	sessUserID     = "uid"
	sessRole       = "role"
	sessName       = "name"
	sessEmail      = "email"
	sessPincode    = "pincode"
	sessDepartment = "department"
)

const principalLocal = "principal"

// Principal is the logged-in user carried by the session.
type Principal struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Role       domain.Role `json:"role"`
	Pincode    string      `json:"pincode,omitempty"`
	Department string      `json:"department,omitempty"`
}

// User returns the principal as a domain user.
func (p *Principal) User() *domain.User {
	return &domain.User{
		ID:         p.ID,
		Name:       p.Name,
		Email:      p.Email,
		Role:       p.Role,
		Pincode:    p.Pincode,
		Department: p.Department,
		Status:     domain.UserActive,
	}
}

// NewSessionStore builds the cookie session store. A nil storage keeps
// sessions in process memory.
func NewSessionStore(storage fiber.Storage, ttl time.Duration, secure bool) *session.Store {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return session.New(session.Config{
		Expiration:     ttl,
		Storage:        storage,
		KeyLookup:      "cookie:" + SessionCookie,
		CookieHTTPOnly: true,
		CookieSecure:   secure,
		CookieSameSite: "Lax",
	})
}

// startSession replaces any existing session with one for u.
func startSession(c *fiber.Ctx, store *session.Store, u *domain.User) error {
	sess, err := store.Get(c)
	if err != nil {
		return err
	}
	if err := sess.Regenerate(); err != nil {
		return err
	}
	sess.Set(sessUserID, u.ID)
	sess.Set(sessRole, string(u.Role))
	sess.Set(sessName, u.Name)
	sess.Set(sessEmail, u.Email)
	sess.Set(sessPincode, u.Pincode)
	sess.Set(sessDepartment, u.Department)
	return sess.Save()
}

// loadPrincipal returns the session principal, or nil when logged out.
func loadPrincipal(c *fiber.Ctx, store *session.Store) (*Principal, error) {
	if p, ok := c.Locals(principalLocal).(*Principal); ok {
		return p, nil
	}
	sess, err := store.Get(c)
	if err != nil {
		return nil, err
	}
	id, ok := sess.Get(sessUserID).(int64)
	if !ok {
		return nil, nil
	}
	str := func(key string) string {
		v, _ := sess.Get(key).(string)
		return v
	}
	p := &Principal{
		ID:         id,
		Role:       domain.Role(str(sessRole)),
		Name:       str(sessName),
		Email:      str(sessEmail),
		Pincode:    str(sessPincode),
		Department: str(sessDepartment),
	}
	c.Locals(principalLocal, p)
	return p, nil
}

// principal returns the principal stored by RequireAuth.
func principal(c *fiber.Ctx) *Principal {
	p, _ := c.Locals(principalLocal).(*Principal)
	return p
}

// RequireAuth rejects requests without a session (401) or whose role the
// policy denies for action (403).
func RequireAuth(deps *Dependencies, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := loadPrincipal(c, deps.Sessions)
		if err != nil {
			logging.FromContext(c.UserContext()).Warn("session lookup failed", "error", err)
			return errUnauthorized(c, "login required")
		}
		if p == nil {
			return errUnauthorized(c, "login required")
		}
		ok, err := deps.Authz.Allow(c.UserContext(), ports.AuthzInput{
			Role:       p.Role,
			Action:     action,
			Department: p.Department,
		})
		if err != nil {
			return writeError(c, err)
		}
		if !ok {
			return errForbidden(c, "not allowed to "+action)
		}
		return c.Next()
	}
}
