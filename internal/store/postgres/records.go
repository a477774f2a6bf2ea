package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gosuda/careline/internal/domain"
)

//nolint:gochecknoglobals // canonical store list
var knownStores = map[string]struct{}{
	domain.StoreClients:    {},
	domain.StoreTaskStates: {},
	domain.StoreEpisodes:   {},
}

func checkStore(op, store string) error {
	if _, ok := knownStores[store]; !ok {
		return fmt.Errorf("%s: unknown store %q: %w", op, store, domain.ErrInvalidInput)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, store, key string) ([]byte, error) {
	if err := checkStore("postgres.Store.Get", store); err != nil {
		return nil, err
	}

	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM records WHERE store = $1 AND key = $2`,
		store, key,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres.Store.Get %s/%s: %w", store, key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres.Store.Get %s/%s: %w", store, key, err)
	}

	return body, nil
}

func (s *Store) Put(ctx context.Context, store, key string, record []byte) error {
	if err := checkStore("postgres.Store.Put", store); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("postgres.Store.Put: empty key: %w", domain.ErrInvalidInput)
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO records (store, key, body, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (store, key) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		store, key, record,
	)
	if err != nil {
		return fmt.Errorf("postgres.Store.Put %s/%s: %w", store, key, err)
	}

	return nil
}

func (s *Store) GetAll(ctx context.Context, store string) ([][]byte, error) {
	if err := checkStore("postgres.Store.GetAll", store); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT body FROM records WHERE store = $1 ORDER BY key`,
		store,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres.Store.GetAll %s: %w", store, err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("postgres.Store.GetAll %s: scan: %w", store, err)
		}
		out = append(out, body)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres.Store.GetAll %s: rows: %w", store, err)
	}

	return out, nil
}

func (s *Store) Delete(ctx context.Context, store, key string) error {
	if err := checkStore("postgres.Store.Delete", store); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM records WHERE store = $1 AND key = $2`,
		store, key,
	)
	if err != nil {
		return fmt.Errorf("postgres.Store.Delete %s/%s: %w", store, key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres.Store.Delete %s/%s: %w", store, key, domain.ErrNotFound)
	}

	return nil
}
