package records

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gosuda/careline/internal/domain"
)

type episodeRecord struct {
	ClientID string            `json:"clientId"`
	Episodes []*domain.Episode `json:"episodes"`
}

type EpisodeRepo struct {
	store domain.RecordStore
}

func NewEpisodeRepo(store domain.RecordStore) *EpisodeRepo {
	return &EpisodeRepo{store: store}
}

func (r *EpisodeRepo) ListByClient(ctx context.Context, clientID string) ([]*domain.Episode, error) {
	raw, err := r.store.Get(ctx, domain.StoreEpisodes, clientID)
	if isNotFound(err) {
		return []*domain.Episode{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("episodeRepo.ListByClient: %w", err)
	}

	var rec episodeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("episodeRepo.ListByClient %s: decode: %w", clientID, err)
	}
	if rec.Episodes == nil {
		rec.Episodes = []*domain.Episode{}
	}
	return rec.Episodes, nil
}

func (r *EpisodeRepo) ReplaceAll(ctx context.Context, clientID string, episodes []*domain.Episode) error {
	raw, err := json.Marshal(episodeRecord{ClientID: clientID, Episodes: episodes})
	if err != nil {
		return fmt.Errorf("episodeRepo.ReplaceAll: encode: %w", err)
	}
	if err := r.store.Put(ctx, domain.StoreEpisodes, clientID, raw); err != nil {
		return fmt.Errorf("episodeRepo.ReplaceAll: %w", err)
	}
	return nil
}
