package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lapakdigital/lapakstore/app/controllers"
	"github.com/lapakdigital/lapakstore/app/repository"
	"github.com/lapakdigital/lapakstore/internal/pkg/fulfillment"
	"github.com/lapakdigital/lapakstore/internal/pkg/gateway"
	"github.com/lapakdigital/lapakstore/internal/pkg/middleware"
	"github.com/lapakdigital/lapakstore/internal/pkg/session"
	"github.com/lapakdigital/lapakstore/internal/pkg/sweeper"
	"github.com/lapakdigital/lapakstore/internal/pkg/telegram"
	"github.com/lapakdigital/lapakstore/internal/pkg/throttle"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Apply session context middleware globally as first middleware
	app.Use(middleware.SessionContext)

	// Wire the service graph: one active gateway for outbound calls, both
	// gateways as webhook verifiers, one fulfillment engine shared by every
	// trigger path.
	repos := repository.GetGlobalRepositories()
	activeGateway := gateway.FromEnv()
	allGateways := gateway.AllFromEnv()
	tg := telegram.NewClientFromEnv()
	fulfiller := fulfillment.NewService(repos.Order, tg)
	sweepService := sweeper.NewService(repos.Order, activeGateway, fulfiller)
	sweeper.InitManager(sweepService)

	controllers.InitializeWebhookController(repos.Order, fulfiller, allGateways)
	controllers.InitializeBotController(repos, activeGateway, tg, sweepService, throttle.New("paycheck"))
	controllers.InitializeAdminController(repos, fulfiller)

	h.registerPublicRoutes(app)
	h.registerAdminRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
