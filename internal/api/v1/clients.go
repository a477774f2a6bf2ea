package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/careline/internal/domain"
	"github.com/gosuda/careline/internal/duedate"
	"github.com/gosuda/careline/internal/tasksync"
)

// TaskView is a task state decorated for display.
type TaskView struct {
	Task      *domain.TaskState `json:"task"`
	Label     string            `json:"label"`
	Urgency   duedate.Urgency   `json:"urgency"`
	BlockedBy []string          `json:"blockedBy,omitempty"`
}

type ClientPathParam struct {
	ClientID string `path:"id" doc:"Client ID"`
}

type TaskPathParams struct {
	ClientID string `path:"id" doc:"Client ID"`
	TaskID   string `path:"taskID" doc:"Task definition ID"`
}

type SyncAllOutput struct {
	Body *tasksync.Report
}

type SyncClientOutput struct {
	Body tasksync.Result
}

type ListTasksOutput struct {
	Body []TaskView
}

type TaskOutput struct {
	Body TaskView
}

type CompleteTaskInput struct {
	TaskPathParams
	Body struct {
		Date     string   `json:"date,omitempty" doc:"Completion date (YYYY-MM-DD); defaults to today"`
		Note     string   `json:"note,omitempty" maxLength:"2000"`
		Evidence []string `json:"evidence,omitempty" maxItems:"20"`
	}
}

type ReopenTaskInput struct {
	TaskPathParams
	Body struct {
		Note string `json:"note,omitempty" maxLength:"2000"`
	}
}

type UpdateTaskInput struct {
	TaskPathParams
	Body struct {
		Owner       *string  `json:"owner,omitempty" maxLength:"8"`
		Notes       *string  `json:"notes,omitempty" maxLength:"4000"`
		AddEvidence []string `json:"addEvidence,omitempty" maxItems:"20"`
	}
}

func RegisterClientRoutes(api huma.API, sync TaskSync) {
	huma.Register(api, huma.Operation{
		OperationID: "sync-all-clients",
		Method:      http.MethodPost,
		Path:        "/clients/sync",
		Summary:     "Synchronize every client's tasks with the schema",
		Tags:        []string{"Clients"},
	}, func(ctx context.Context, _ *struct{}) (*SyncAllOutput, error) {
		report, err := sync.SyncAll(ctx)
		if err != nil {
			return nil, toHTTPError(err, "failed to sync clients")
		}
		return &SyncAllOutput{Body: report}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sync-client",
		Method:      http.MethodPost,
		Path:        "/clients/{id}/sync",
		Summary:     "Synchronize one client's tasks with the schema",
		Tags:        []string{"Clients"},
	}, func(ctx context.Context, input *ClientPathParam) (*SyncClientOutput, error) {
		res, err := sync.SyncClient(ctx, input.ClientID)
		if err != nil {
			return nil, toHTTPError(err, "failed to sync client")
		}
		return &SyncClientOutput{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-client-tasks",
		Method:      http.MethodGet,
		Path:        "/clients/{id}/tasks",
		Summary:     "List a client's tasks in dependency order",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *ClientPathParam) (*ListTasksOutput, error) {
		states, err := sync.Tasks(ctx, input.ClientID)
		if err != nil {
			return nil, toHTTPError(err, "failed to list tasks")
		}

		now := time.Now().UTC()
		views := make([]TaskView, 0, len(states))
		for _, id := range sync.Registry().Order() {
			if st, ok := states[id]; ok {
				views = append(views, newTaskView(sync, st, states, now))
			}
		}
		return &ListTasksOutput{Body: views}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPost,
		Path:        "/clients/{id}/tasks/{taskID}/complete",
		Summary:     "Mark a task complete",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *CompleteTaskInput) (*TaskOutput, error) {
		date, err := parseOptionalDay(input.Body.Date)
		if err != nil {
			return nil, err
		}

		st, err := sync.CompleteTask(ctx, input.ClientID, input.TaskID, tasksync.CompleteInput{
			Actor:    actor(ctx),
			Note:     input.Body.Note,
			Date:     date,
			Evidence: input.Body.Evidence,
		})
		if err != nil {
			return nil, toHTTPError(err, "failed to complete task")
		}
		return taskOutput(ctx, sync, input.ClientID, st)
	})

	huma.Register(api, huma.Operation{
		OperationID: "reopen-task",
		Method:      http.MethodPost,
		Path:        "/clients/{id}/tasks/{taskID}/reopen",
		Summary:     "Reopen a completed task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *ReopenTaskInput) (*TaskOutput, error) {
		st, err := sync.ReopenTask(ctx, input.ClientID, input.TaskID, actor(ctx), input.Body.Note)
		if err != nil {
			return nil, toHTTPError(err, "failed to reopen task")
		}
		return taskOutput(ctx, sync, input.ClientID, st)
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/clients/{id}/tasks/{taskID}",
		Summary:     "Update a task's owner, notes, or evidence",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *UpdateTaskInput) (*TaskOutput, error) {
		st, err := sync.UpdateTask(ctx, input.ClientID, input.TaskID, tasksync.UpdateInput{
			Actor:       actor(ctx),
			Owner:       input.Body.Owner,
			Notes:       input.Body.Notes,
			AddEvidence: input.Body.AddEvidence,
		})
		if err != nil {
			return nil, toHTTPError(err, "failed to update task")
		}
		return taskOutput(ctx, sync, input.ClientID, st)
	})
}

// taskOutput decorates a mutated task. BlockedBy needs sibling states, so a
// failed re-read degrades to an undecorated view rather than an error.
func taskOutput(ctx context.Context, sync TaskSync, clientID string, st *domain.TaskState) (*TaskOutput, error) {
	states, err := sync.Tasks(ctx, clientID)
	if err != nil {
		states = domain.TaskStateMap{st.TaskID: st}
	}
	return &TaskOutput{Body: newTaskView(sync, st, states, time.Now().UTC())}, nil
}

func newTaskView(sync TaskSync, st *domain.TaskState, states domain.TaskStateMap, now time.Time) TaskView {
	view := TaskView{Task: st, Label: st.TaskID, Urgency: duedate.Classify(st, now)}
	if def, ok := sync.Registry().Get(st.TaskID); ok {
		view.Label = def.DisplayName()
		if st.Locked {
			view.BlockedBy = tasksync.BlockedBy(def, states)
		}
	}
	return view
}
