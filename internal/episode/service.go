package episode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/careline/internal/domain"
)

// Locker serializes mutations per client.
type Locker interface {
	Do(ctx context.Context, key string, fn func(context.Context) error) error
}

// ChangeNotifier is told when a client's timeline changed.
type ChangeNotifier interface {
	ClientChanged(ctx context.Context, clientID string)
}

// Resyncer recomputes a client's task states. Callers hold the client's lock.
type Resyncer interface {
	SyncLocked(ctx context.Context, clientID string) error
}

// Service is the episode timeline. Closing one episode and opening the next
// is written as a single record so the pair is atomic.
type Service struct {
	repo     domain.EpisodeRepository
	locks    Locker
	notifier ChangeNotifier
	resync   Resyncer
	now      func() time.Time
}

// NewService creates a timeline service. notifier may be nil.
func NewService(repo domain.EpisodeRepository, locks Locker, notifier ChangeNotifier) *Service {
	return &Service{
		repo:     repo,
		locks:    locks,
		notifier: notifier,
		now:      time.Now,
	}
}

// WithClock overrides the clock used for defaulted dates.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithResyncer sets the task synchronizer run after every timeline change so
// episode-anchored due dates follow the new episode.
func (s *Service) WithResyncer(r Resyncer) *Service {
	s.resync = r
	return s
}

// ChangeInput describes a level-of-care change or an admission.
type ChangeInput struct {
	LevelOfCare         string
	Date                time.Time // zero means today
	Source              domain.EpisodeSource
	MentalHealthPrimary bool
	DocumentRef         string
}

// List returns the client's episodes ordered by start date.
func (s *Service) List(ctx context.Context, clientID string) ([]*domain.Episode, error) {
	eps, err := s.repo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("episode.Service.List: %w", err)
	}
	return Sorted(eps), nil
}

// Current returns the client's open episode, or ErrNotFound.
func (s *Service) Current(ctx context.Context, clientID string) (*domain.Episode, error) {
	eps, err := s.repo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("episode.Service.Current: %w", err)
	}
	cur := Current(eps)
	if cur == nil {
		return nil, fmt.Errorf("episode.Service.Current: %w", domain.ErrNotFound)
	}
	return cur, nil
}

// Admit opens the first episode of a stay. It fails with ErrConflict when an
// episode is already open.
func (s *Service) Admit(ctx context.Context, clientID string, in ChangeInput) (*domain.Episode, error) {
	if strings.TrimSpace(in.LevelOfCare) == "" {
		return nil, fmt.Errorf("episode.Service.Admit: level of care is required: %w", domain.ErrInvalidInput)
	}
	if in.Source == "" {
		in.Source = domain.EpisodeSourceAdmission
	}

	var opened *domain.Episode
	err := s.mutate(ctx, clientID, func(eps []*domain.Episode) ([]*domain.Episode, error) {
		if Current(eps) != nil {
			return nil, fmt.Errorf("client %s already has an open episode: %w", clientID, domain.ErrConflict)
		}
		opened = s.newEpisode(clientID, in)
		return append(eps, opened), nil
	})
	if err != nil {
		return nil, fmt.Errorf("episode.Service.Admit: %w", err)
	}

	return opened, nil
}

// ChangeLevel closes the open episode and opens the next one at the new level
// of care. With no open episode it behaves like Admit.
func (s *Service) ChangeLevel(ctx context.Context, clientID string, in ChangeInput) (*domain.Episode, error) {
	if strings.TrimSpace(in.LevelOfCare) == "" {
		return nil, fmt.Errorf("episode.Service.ChangeLevel: level of care is required: %w", domain.ErrInvalidInput)
	}
	if in.Source == "" {
		in.Source = domain.EpisodeSourceManual
	}

	var opened *domain.Episode
	err := s.mutate(ctx, clientID, func(eps []*domain.Episode) ([]*domain.Episode, error) {
		next := s.newEpisode(clientID, in)
		if cur := Current(eps); cur != nil {
			if strings.EqualFold(cur.LevelOfCare, next.LevelOfCare) {
				return nil, fmt.Errorf("client %s is already at level %q: %w", clientID, cur.LevelOfCare, domain.ErrConflict)
			}
			if next.StartDate.Before(cur.StartDate) {
				return nil, fmt.Errorf("change date %s precedes current episode start: %w",
					next.StartDate.Format(domain.DateLayout), domain.ErrInvalidInput)
			}
			closeAt(cur, next.StartDate, next.LevelOfCare)
		}
		opened = next
		return append(eps, next), nil
	})
	if err != nil {
		return nil, fmt.Errorf("episode.Service.ChangeLevel: %w", err)
	}

	log.Info().Str("client_id", clientID).Str("level", opened.LevelOfCare).
		Str("source", string(opened.Source)).Msg("episode: level of care changed")

	return opened, nil
}

// Continue records a continuation (e.g. an authorization renewal) on the open
// episode, which re-anchors afterEpisodeStart due dates.
func (s *Service) Continue(ctx context.Context, clientID string, date time.Time) (*domain.Episode, error) {
	var updated *domain.Episode
	err := s.mutate(ctx, clientID, func(eps []*domain.Episode) ([]*domain.Episode, error) {
		cur := Current(eps)
		if cur == nil {
			return nil, fmt.Errorf("client %s has no open episode: %w", clientID, domain.ErrNotFound)
		}
		d := domain.Day(s.dateOrToday(date))
		cur.ContinuationDate = &d
		updated = cur
		return eps, nil
	})
	if err != nil {
		return nil, fmt.Errorf("episode.Service.Continue: %w", err)
	}
	return updated, nil
}

// Close ends the open episode, typically on discharge. It is a no-op when no
// episode is open.
func (s *Service) Close(ctx context.Context, clientID string, date time.Time) error {
	err := s.mutate(ctx, clientID, func(eps []*domain.Episode) ([]*domain.Episode, error) {
		if cur := Current(eps); cur != nil {
			closeAt(cur, s.dateOrToday(date), "")
		}
		return eps, nil
	})
	if err != nil {
		return fmt.Errorf("episode.Service.Close: %w", err)
	}
	return nil
}

func (s *Service) mutate(ctx context.Context, clientID string, fn func([]*domain.Episode) ([]*domain.Episode, error)) error {
	err := s.locks.Do(ctx, clientID, func(ctx context.Context) error {
		eps, err := s.repo.ListByClient(ctx, clientID)
		if err != nil {
			return err
		}

		next, err := fn(cloneAll(eps))
		if err != nil {
			return err
		}
		if OpenCount(next) > 1 {
			return fmt.Errorf("client %s would have %d open episodes: %w", clientID, OpenCount(next), domain.ErrConflict)
		}

		if err := s.repo.ReplaceAll(ctx, clientID, Sorted(next)); err != nil {
			return err
		}
		if s.resync != nil {
			if err := s.resync.SyncLocked(ctx, clientID); err != nil {
				log.Warn().Err(err).Str("client_id", clientID).Msg("episode: task resync failed")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.ClientChanged(ctx, clientID)
	}
	return nil
}

func (s *Service) newEpisode(clientID string, in ChangeInput) *domain.Episode {
	return &domain.Episode{
		ID:                  uuid.NewString(),
		ClientID:            clientID,
		LevelOfCare:         in.LevelOfCare,
		StartDate:           domain.Day(s.dateOrToday(in.Date)),
		Source:              in.Source,
		MentalHealthPrimary: in.MentalHealthPrimary,
		DocumentRef:         in.DocumentRef,
	}
}

func (s *Service) dateOrToday(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}
