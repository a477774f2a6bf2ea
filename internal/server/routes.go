package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/careline/internal/api/v1"
	"github.com/gosuda/careline/internal/api/ws"
)

func registerAPIRoutes(api huma.API, deps Deps) {
	v1.RegisterDashboardRoutes(api, deps.Dashboard)
	v1.RegisterSchemaRoutes(api, deps.Sync)
	v1.RegisterClientRoutes(api, deps.Sync)
	v1.RegisterEpisodeRoutes(api, deps.Timeline)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/dashboard", hub.ServeDashboard)
}
