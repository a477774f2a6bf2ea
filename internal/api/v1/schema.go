package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/careline/internal/domain"
)

type SchemaTask struct {
	ID         string                `json:"id"`
	Label      string                `json:"label"`
	Definition domain.TaskDefinition `json:"definition"`
	Dependents []string              `json:"dependents,omitempty"`
}

type GetSchemaOutput struct {
	Body struct {
		Order []string     `json:"order" doc:"Task ids in dependency order"`
		Tasks []SchemaTask `json:"tasks"`
	}
}

func RegisterSchemaRoutes(api huma.API, sync TaskSync) {
	huma.Register(api, huma.Operation{
		OperationID: "get-schema",
		Method:      http.MethodGet,
		Path:        "/schema",
		Summary:     "Get the task schema registry",
		Tags:        []string{"Schema"},
	}, func(_ context.Context, _ *struct{}) (*GetSchemaOutput, error) {
		reg := sync.Registry()
		if reg.Len() == 0 {
			return nil, huma.Error503ServiceUnavailable("no task schema loaded")
		}

		out := &GetSchemaOutput{}
		out.Body.Order = reg.Order()
		for _, def := range reg.Definitions() {
			out.Body.Tasks = append(out.Body.Tasks, SchemaTask{
				ID:         def.ID,
				Label:      def.DisplayName(),
				Definition: def,
				Dependents: reg.Dependents(def.ID),
			})
		}
		return out, nil
	})
}
