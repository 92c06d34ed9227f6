package controllers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sujit-baniya/flash"

	"github.com/lapakdigital/lapakstore/app/repository"
	"github.com/lapakdigital/lapakstore/internal/pkg/middleware"
	"github.com/lapakdigital/lapakstore/internal/pkg/session"
)

func HandleAuthLogin(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		fm := fiber.Map{
			"type": "error",
		}

		// notice: in production you should not inform the user
		// with detailed messages about login failures
		users := repository.GetGlobalRepositories().User
		user, err := users.GetByEmail(c.FormValue("email"))
		if err != nil {
			fm["message"] = "There is a problem with the login process"

			return flash.WithError(c, fm).Redirect("/login")
		}

		if !user.IsActive() {
			fm["message"] = "There is a problem with the login process"

			return flash.WithError(c, fm).Redirect("/login")
		}

		if user.CheckPassword(c.FormValue("password")) == false {
			fm["message"] = "There is a problem with the login process"

			return flash.WithError(c, fm).Redirect("/login")
		}

		sess, err := session.GetSessionStore().Get(c)
		if err != nil {
			fm["message"] = fmt.Sprintf("something went wrong: %s", err)

			return flash.WithError(c, fm).Redirect("/login")
		}

		sess.Set(middleware.KeyLoggedIn, true)
		sess.Set(middleware.KeyUserID, user.ID)
		sess.Set(middleware.KeyUserName, user.Name)
		sess.Set(middleware.KeyIsAdmin, user.IsAdmin())

		err = sess.Save()
		if err != nil {
			fm["message"] = fmt.Sprintf("something went wrong: %s", err)

			return flash.WithError(c, fm).Redirect("/login")
		}

		now := time.Now()
		user.LastLoginAt = &now
		if err := users.Update(user); err != nil {
			log.Warnf("[Auth] last login update for %s failed: %v", user.Email, err)
		}

		fm = fiber.Map{
			"type":    "success",
			"message": "Selamat datang kembali!",
		}

		return flash.WithSuccess(c, fm).Redirect("/admin")
	}

	return c.Render("login", fiber.Map{
		"Title": "Login",
		"Flash": flash.Get(c),
	}, "layouts/auth")
}

func HandleAuthLogout(c *fiber.Ctx) error {
	fm := fiber.Map{
		"type": "error",
	}

	if err := session.DestroySession(c); err != nil {
		fm["message"] = fmt.Sprintf("something went wrong: %s", err)

		return flash.WithError(c, fm).Redirect("/login")
	}

	fm = fiber.Map{
		"type":    "success",
		"message": "Sampai jumpa!",
	}

	return flash.WithSuccess(c, fm).Redirect("/login")
}
