package domain

import "context"

// Record store names.
const (
	StoreClients    = "clients"
	StoreTaskStates = "taskStates"
	StoreEpisodes   = "episodes"
)

// RecordStore is the key/value persistence collaborator. Get and Delete
// return ErrNotFound for absent keys.
type RecordStore interface {
	Get(ctx context.Context, store, key string) ([]byte, error)
	Put(ctx context.Context, store, key string, record []byte) error
	GetAll(ctx context.Context, store string) ([][]byte, error)
	Delete(ctx context.Context, store, key string) error
}
