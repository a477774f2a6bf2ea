package records

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gosuda/careline/internal/domain"
)

type taskStateRecord struct {
	ClientID string              `json:"clientId"`
	Tasks    domain.TaskStateMap `json:"tasks"`
}

type TaskStateRepo struct {
	store domain.RecordStore
}

func NewTaskStateRepo(store domain.RecordStore) *TaskStateRepo {
	return &TaskStateRepo{store: store}
}

func (r *TaskStateRepo) Get(ctx context.Context, clientID string) (domain.TaskStateMap, error) {
	raw, err := r.store.Get(ctx, domain.StoreTaskStates, clientID)
	if err != nil {
		return nil, fmt.Errorf("taskStateRepo.Get: %w", err)
	}

	var rec taskStateRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("taskStateRepo.Get %s: decode: %w", clientID, err)
	}
	if rec.Tasks == nil {
		rec.Tasks = domain.TaskStateMap{}
	}
	return rec.Tasks, nil
}

func (r *TaskStateRepo) Put(ctx context.Context, clientID string, states domain.TaskStateMap) error {
	raw, err := json.Marshal(taskStateRecord{ClientID: clientID, Tasks: states})
	if err != nil {
		return fmt.Errorf("taskStateRepo.Put: encode: %w", err)
	}
	if err := r.store.Put(ctx, domain.StoreTaskStates, clientID, raw); err != nil {
		return fmt.Errorf("taskStateRepo.Put: %w", err)
	}
	return nil
}

func (r *TaskStateRepo) Delete(ctx context.Context, clientID string) error {
	if err := r.store.Delete(ctx, domain.StoreTaskStates, clientID); err != nil {
		return fmt.Errorf("taskStateRepo.Delete: %w", err)
	}
	return nil
}
