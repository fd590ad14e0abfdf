package routes

import (
	"github.com/go-chi/chi/v5"

	bridgeHandlers "Skybridge/internal/api/handlers/bridge"
	"Skybridge/internal/api/middleware"
	"Skybridge/internal/core/bridge"
)

// BridgeRoutes returns the federation bridge XRPC routes.
// Implements social.skybridge.bridge.* endpoints. The refresh sweep is an
// operational endpoint gated by the admin token instead of an actor.
func BridgeRoutes(service bridge.Service, adminToken string) chi.Router {
	linkHandler := bridgeHandlers.NewLinkHandler(service)
	broadcastHandler := bridgeHandlers.NewBroadcastHandler(service)
	syncHandler := bridgeHandlers.NewSyncHandler(service)

	r := chi.NewRouter()

	// Account-scoped endpoints: the upstream auth layer identifies the actor.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireActor)

		// social.skybridge.bridge.link - procedure
		r.Post("/link", linkHandler.HandleLink)

		// social.skybridge.bridge.unlink - procedure
		r.Post("/unlink", linkHandler.HandleUnlink)

		// social.skybridge.bridge.getLink - query
		r.Get("/getLink", linkHandler.HandleGetLink)

		// social.skybridge.bridge.updateSettings - procedure
		r.Post("/updateSettings", linkHandler.HandleUpdateSettings)

		// social.skybridge.bridge.broadcast - procedure
		r.Post("/broadcast", broadcastHandler.HandleBroadcast)

		// social.skybridge.bridge.syncReplies - procedure
		r.Post("/syncReplies", syncHandler.HandleSyncReplies)

		// social.skybridge.bridge.syncEngagement - procedure
		r.Post("/syncEngagement", syncHandler.HandleSyncEngagement)
	})

	// social.skybridge.bridge.refreshSweep - operational trigger
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(adminToken))
		r.Post("/refreshSweep", syncHandler.HandleRefreshSweep)
	})

	return r
}
