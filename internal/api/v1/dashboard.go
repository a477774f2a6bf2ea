package v1

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/careline/internal/alerts"
	"github.com/gosuda/careline/internal/dashboard"
	"github.com/gosuda/careline/internal/domain"
	"github.com/gosuda/careline/internal/journey"
	"github.com/gosuda/careline/internal/server/middleware"
)

type ScopeParams struct {
	Scope string `query:"scope" enum:"all,mine" default:"all" doc:"Client scope: all clients or the viewer's caseload"`
	Owner string `query:"owner" doc:"Care-team initials; overrides scope"`
}

type GetDashboardInput struct {
	ScopeParams
	Stage string `query:"stage" doc:"Journey stage filter"`
	House string `query:"house" doc:"House filter"`
}

type RefreshDashboardInput struct {
	ScopeParams
}

type ZoneCounts struct {
	Red    int `json:"red"`
	Purple int `json:"purple"`
	Yellow int `json:"yellow"`
	Green  int `json:"green"`
}

type DashboardView struct {
	Scope  alerts.Scope     `json:"scope"`
	Filter dashboard.Filter `json:"filter"`
	Counts ZoneCounts       `json:"counts"`
	Zones  domain.Zones     `json:"zones"`
}

type DashboardOutput struct {
	Body *DashboardView
}

func resolveScope(ctx context.Context, p ScopeParams) (alerts.Scope, error) {
	if p.Owner != "" {
		return alerts.Scope{Owner: strings.ToUpper(p.Owner)}, nil
	}
	if p.Scope != "mine" {
		return alerts.Scope{}, nil
	}
	viewer, ok := middleware.ViewerFromContext(ctx)
	if !ok {
		return alerts.Scope{}, huma.Error400BadRequest("scope=mine requires the " + middleware.ViewerHeader + " header")
	}
	return alerts.Scope{Owner: viewer}, nil
}

func newDashboardView(scope alerts.Scope, f dashboard.Filter, zones domain.Zones) *DashboardView {
	return &DashboardView{
		Scope:  scope,
		Filter: f,
		Counts: ZoneCounts{Red: len(zones.Red), Purple: len(zones.Purple), Yellow: len(zones.Yellow), Green: len(zones.Green)},
		Zones:  zones,
	}
}

func RegisterDashboardRoutes(api huma.API, dash Dashboard) {
	huma.Register(api, huma.Operation{
		OperationID: "get-dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboard",
		Summary:     "Get zoned compliance alerts",
		Tags:        []string{"Dashboard"},
	}, func(ctx context.Context, input *GetDashboardInput) (*DashboardOutput, error) {
		scope, err := resolveScope(ctx, input.ScopeParams)
		if err != nil {
			return nil, err
		}

		f := dashboard.Filter{Stage: journey.Stage(input.Stage), House: input.House}
		if err := f.Validate(); err != nil {
			return nil, huma.Error400BadRequest("invalid filter", err)
		}

		return &DashboardOutput{Body: newDashboardView(scope, f, dash.Filtered(ctx, scope, f))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-dashboard",
		Method:      http.MethodPost,
		Path:        "/dashboard/refresh",
		Summary:     "Recompute alerts now, ignoring the cache TTL",
		Tags:        []string{"Dashboard"},
	}, func(ctx context.Context, input *RefreshDashboardInput) (*DashboardOutput, error) {
		scope, err := resolveScope(ctx, input.ScopeParams)
		if err != nil {
			return nil, err
		}

		return &DashboardOutput{Body: newDashboardView(scope, dashboard.Filter{}, dash.RefreshNow(ctx, scope))}, nil
	})
}
