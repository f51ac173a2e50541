// internal/api/server.go
package api

import (
	"net/http"

	"hatm_bot/internal/app"
	"hatm_bot/internal/infra/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// Server is the HTTP surface of the Mini App. Every /api route requires a
// Telegram identity; /health does not.
type Server struct {
	userService  *app.UserService
	groupService *app.GroupService
	hatmService  *app.HatmService
	dispatcher   *app.Dispatcher
	validate     *validator.Validate
	log          *logrus.Entry
}

func NewServer(
	userService *app.UserService,
	groupService *app.GroupService,
	hatmService *app.HatmService,
	dispatcher *app.Dispatcher,
	log *logrus.Entry,
) *Server {
	return &Server{
		userService:  userService,
		groupService: groupService,
		hatmService:  hatmService,
		dispatcher:   dispatcher,
		validate:     validator.New(),
		log:          log,
	}
}

// Router assembles the chi route tree with CORS configured for the Mini App
// origin. Dev mode opens the origin list up entirely.
func (s *Server) Router(cfg *config.AppConfig) http.Handler {
	corsOptions := cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:3000",
			cfg.WebAppURL,
			"https://web.telegram.org",
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}
	if cfg.DevMode {
		corsOptions.AllowedOrigins = []string{"*"}
		corsOptions.AllowCredentials = false
	}

	r := chi.NewRouter()
	r.Use(cors.New(corsOptions).Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(TelegramAuth(s.userService, s.log))

		r.Get("/users/me", s.handleGetMe)
		r.Get("/users/me/juzs", s.handleGetMyJuzs)
		r.Get("/users/me/debts", s.handleGetMyDebts)

		r.Post("/groups", s.handleCreateGroup)
		r.Get("/groups", s.handleListMyGroups)
		r.Post("/groups/join", s.handleJoinGroup)
		r.Get("/groups/{groupID}", s.handleGetGroup)
		r.Get("/groups/{groupID}/members", s.handleListGroupMembers)
		r.Post("/groups/{groupID}/hatms", s.handleCreateHatm)
		r.Get("/groups/{groupID}/hatms", s.handleListGroupHatms)

		r.Get("/hatms/{hatmID}", s.handleGetHatm)
		r.Post("/hatms/{hatmID}/start", s.handleStartHatm)
		r.Get("/hatms/{hatmID}/progress", s.handleGetHatmProgress)
		r.Post("/hatms/{hatmID}/complete", s.handleCompleteHatm)

		r.Post("/juzs/{juzID}/complete", s.handleCompleteJuz)
	})

	return r
}
