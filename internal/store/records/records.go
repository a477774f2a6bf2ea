// Package records maps domain entities onto a domain.RecordStore as JSON records.
package records

import (
	"github.com/gosuda/careline/internal/domain"
)

// Repos bundles the typed repositories that share one record store.
type Repos struct {
	clients    *ClientRepo
	taskStates *TaskStateRepo
	episodes   *EpisodeRepo
}

func New(store domain.RecordStore) *Repos {
	return &Repos{
		clients:    NewClientRepo(store),
		taskStates: NewTaskStateRepo(store),
		episodes:   NewEpisodeRepo(store),
	}
}

func (r *Repos) Clients() domain.ClientRepository       { return r.clients }
func (r *Repos) TaskStates() domain.TaskStateRepository { return r.taskStates }
func (r *Repos) Episodes() domain.EpisodeRepository     { return r.episodes }
