package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/sfallmann/conf-central/handlers"
	"github.com/sfallmann/conf-central/middleware"
)

func SetupRoutes(app *fiber.App, h *handlers.Handlers, auth *middleware.JWTAuth, log zerolog.Logger) {
	api := app.Group("/", middleware.RequestLogger(log))

	//Login
	api.Post("/login", h.Login)

	//Tasks and crons
	tasks := api.Group("/tasks", h.RequireTaskSecret)
	tasks.Post("/send_confirmation_email", h.SendConfirmationEmail)
	tasks.Post("/set_speaker", h.SetSpeaker)
	api.Get("/crons/set_announcement", h.RequireTaskSecret, h.SetAnnouncement)

	authorized := api.Group("/", auth.Authorize())

	//Conference
	authorized.Post("/conference", h.CreateConference)
	authorized.Post("/getConferencesCreated", h.GetConferencesCreated)
	authorized.Post("/queryConferences", h.QueryConferences)
	authorized.Get("/conferences/attending", h.GetConferencesToAttend)

	conference := authorized.Group("/conference")
	conference.Get("/announcement/get", h.GetAnnouncement)
	conference.Get("/featured_speaker/get", h.GetFeaturedSpeaker)
	conference.Get("/:websafeConferenceKey", h.GetConference)
	conference.Put("/:websafeConferenceKey", h.UpdateConference)
	conference.Post("/:websafeConferenceKey", h.RegisterForConference)
	conference.Delete("/:websafeConferenceKey", h.UnregisterFromConference)

	//Session
	conference.Post("/:websafeConferenceKey/session", h.CreateSession)
	sessions := conference.Group("/:websafeConferenceKey/sessions")
	sessions.Get("/", h.GetConferenceSessions)
	sessions.Get("/type/:typeOfSession", h.GetConferenceSessionsByType)
	sessions.Get("/date/:date", h.GetConferenceSessionsByDate)
	sessions.Get("/highlight/:highlight", h.GetConferenceSessionsByHighlight)
	authorized.Get("/speaker/:speaker/sessions", h.GetSessionsBySpeaker)

	//Profile
	profile := authorized.Group("/profile")
	profile.Get("/", h.GetProfile)
	profile.Post("/", h.SaveProfile)
	profile.Get("/wishlist", h.GetSessionsInWishlist)
	profile.Post("/wishlist/add/:websafeSessionKey", h.AddSessionToWishlist)
	profile.Delete("/wishlist/delete/:websafeSessionKey", h.DeleteSessionInWishlist)

	//Fallback
	api.Use(h.NotFound)
}
