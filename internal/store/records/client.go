package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/careline/internal/domain"
)

type ClientRepo struct {
	store domain.RecordStore
}

func NewClientRepo(store domain.RecordStore) *ClientRepo {
	return &ClientRepo{store: store}
}

func (r *ClientRepo) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	raw, err := r.store.Get(ctx, domain.StoreClients, id)
	if err != nil {
		return nil, fmt.Errorf("clientRepo.GetByID: %w", err)
	}

	var c domain.Client
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("clientRepo.GetByID %s: decode: %w", id, err)
	}
	return &c, nil
}

// List returns every decodable client record. Undecodable records are logged
// and skipped so one corrupt client cannot hide all the others.
func (r *ClientRepo) List(ctx context.Context) ([]*domain.Client, error) {
	raws, err := r.store.GetAll(ctx, domain.StoreClients)
	if err != nil {
		return nil, fmt.Errorf("clientRepo.List: %w", err)
	}

	clients := make([]*domain.Client, 0, len(raws))
	for i, raw := range raws {
		var c domain.Client
		if err := json.Unmarshal(raw, &c); err != nil {
			log.Warn().Err(err).Int("index", i).Msg("clientRepo.List: skipping undecodable client record")
			continue
		}
		clients = append(clients, &c)
	}
	return clients, nil
}

func (r *ClientRepo) Put(ctx context.Context, c *domain.Client) error {
	if c.ID == "" {
		return fmt.Errorf("clientRepo.Put: empty id: %w", domain.ErrInvalidInput)
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("clientRepo.Put: encode: %w", err)
	}
	if err := r.store.Put(ctx, domain.StoreClients, c.ID, raw); err != nil {
		return fmt.Errorf("clientRepo.Put: %w", err)
	}
	return nil
}

// isNotFound reports whether err wraps domain.ErrNotFound.
func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
