package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/careline/internal/domain"
	"github.com/gosuda/careline/internal/episode"
)

const (
	EpisodeActionAdmit    = "admit"
	EpisodeActionChange   = "change"
	EpisodeActionContinue = "continue"
	EpisodeActionClose    = "close"
)

type ListEpisodesOutput struct {
	Body []*domain.Episode
}

type RecordEpisodeInput struct {
	ClientPathParam
	Body struct {
		Action              string `json:"action" enum:"admit,change,continue,close" doc:"Timeline transition"`
		LevelOfCare         string `json:"levelOfCare,omitempty" maxLength:"64" doc:"Required for admit and change"`
		Date                string `json:"date,omitempty" doc:"Effective date (YYYY-MM-DD); defaults to today"`
		Source              string `json:"source,omitempty" enum:"admission,step-down-notification,step-up,manual"`
		MentalHealthPrimary bool   `json:"mentalHealthPrimary,omitempty"`
		DocumentRef         string `json:"documentRef,omitempty" maxLength:"512"`
	}
}

func RegisterEpisodeRoutes(api huma.API, timeline Timeline) {
	huma.Register(api, huma.Operation{
		OperationID: "list-episodes",
		Method:      http.MethodGet,
		Path:        "/clients/{id}/episodes",
		Summary:     "List a client's level-of-care episodes",
		Tags:        []string{"Episodes"},
	}, func(ctx context.Context, input *ClientPathParam) (*ListEpisodesOutput, error) {
		eps, err := timeline.List(ctx, input.ClientID)
		if err != nil {
			return nil, toHTTPError(err, "failed to list episodes")
		}
		if eps == nil {
			eps = []*domain.Episode{}
		}
		return &ListEpisodesOutput{Body: eps}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-episode",
		Method:      http.MethodPost,
		Path:        "/clients/{id}/episodes",
		Summary:     "Record a level-of-care transition",
		Tags:        []string{"Episodes"},
	}, func(ctx context.Context, input *RecordEpisodeInput) (*ListEpisodesOutput, error) {
		date, err := parseOptionalDay(input.Body.Date)
		if err != nil {
			return nil, err
		}

		change := episode.ChangeInput{
			LevelOfCare:         input.Body.LevelOfCare,
			Date:                date,
			Source:              domain.EpisodeSource(input.Body.Source),
			MentalHealthPrimary: input.Body.MentalHealthPrimary,
			DocumentRef:         input.Body.DocumentRef,
		}

		switch input.Body.Action {
		case EpisodeActionAdmit:
			_, err = timeline.Admit(ctx, input.ClientID, change)
		case EpisodeActionChange:
			_, err = timeline.ChangeLevel(ctx, input.ClientID, change)
		case EpisodeActionContinue:
			_, err = timeline.Continue(ctx, input.ClientID, date)
		case EpisodeActionClose:
			err = timeline.Close(ctx, input.ClientID, date)
		default:
			return nil, huma.Error400BadRequest("unknown action: " + input.Body.Action)
		}
		if err != nil {
			return nil, toHTTPError(err, "failed to record episode")
		}

		eps, err := timeline.List(ctx, input.ClientID)
		if err != nil {
			return nil, toHTTPError(err, "failed to list episodes")
		}
		return &ListEpisodesOutput{Body: eps}, nil
	})
}
