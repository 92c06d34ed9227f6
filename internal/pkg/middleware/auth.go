package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lapakdigital/lapakstore/internal/pkg/session"
)

const (
	KeyLoggedIn = "LOGGED_IN"
	KeyUserID   = "USER_ID"
	KeyUserName = "USER_NAME"
	KeyIsAdmin  = "IS_ADMIN"
)

// SessionContext loads the web session once per request and exposes the
// operator identity through Locals so handlers never touch the store
// directly.
func SessionContext(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		c.Locals(KeyLoggedIn, false)
		c.Locals(KeyIsAdmin, false)
		return c.Next()
	}

	userID := sess.Get(KeyUserID)
	if userID == nil {
		c.Locals(KeyLoggedIn, false)
		c.Locals(KeyIsAdmin, false)
		return c.Next()
	}

	isAdmin := sess.Get(KeyIsAdmin)
	userName, _ := sess.Get(KeyUserName).(string)

	c.Locals(KeyLoggedIn, true)
	c.Locals(KeyUserID, userID)
	c.Locals(KeyUserName, userName)
	c.Locals(KeyIsAdmin, isAdmin != nil && isAdmin.(bool))

	return c.Next()
}

// RequireAuth ensures a logged-in web session; redirects to /login if missing.
func RequireAuth(c *fiber.Ctx) error {
	if loggedIn, ok := c.Locals(KeyLoggedIn).(bool); !ok || !loggedIn {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	return c.Next()
}

// RequireAdmin ensures a logged-in admin; redirects otherwise.
func RequireAdmin(c *fiber.Ctx) error {
	if loggedIn, ok := c.Locals(KeyLoggedIn).(bool); !ok || !loggedIn {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	if isAdmin, ok := c.Locals(KeyIsAdmin).(bool); !ok || !isAdmin {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	return c.Next()
}
