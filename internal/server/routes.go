package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/epitrello/epitrello/internal/access"
	"github.com/epitrello/epitrello/internal/api/stream"
	v1 "github.com/epitrello/epitrello/internal/api/v1"
	"github.com/epitrello/epitrello/internal/auth"
	"github.com/epitrello/epitrello/internal/events"
	"github.com/epitrello/epitrello/internal/history"
	"github.com/epitrello/epitrello/internal/notify"
	redisstore "github.com/epitrello/epitrello/internal/store/redis"
)

func registerAuthRoutes(api huma.API, authSvc *auth.Service, providers map[string]v1.OAuthExchanger) {
	v1.RegisterAuthRoutes(api, authSvc, providers)
}

func registerAPIRoutes(api huma.API, store *redisstore.Store, checker *access.Checker, bus *events.Bus, histLog *history.Log, notifier *notify.Notifier) {
	v1.RegisterUserRoutes(api, store)
	v1.RegisterBoardRoutes(api, store, checker, bus, notifier)
	v1.RegisterListRoutes(api, store, checker, bus)
	v1.RegisterCardRoutes(api, store, checker, bus, notifier)
	v1.RegisterTagRoutes(api, store)
	v1.RegisterNotificationRoutes(api, store)
	v1.RegisterHistoryRoutes(api, store, checker, histLog)
}

func registerStreamRoutes(r chi.Router, handler *stream.Handler) {
	r.Get("/boards/{boardID}", handler.ServeSSE)
	r.Get("/boards/{boardID}/ws", handler.ServeWS)
}
