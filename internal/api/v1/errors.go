package v1

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/careline/internal/domain"
	"github.com/gosuda/careline/internal/server/middleware"
)

// toHTTPError maps domain sentinels to HTTP problems. Unexpected errors are
// logged and reported as 500 without detail.
func toHTTPError(err error, msg string) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound(msg + ": not found")
	case errors.Is(err, domain.ErrTaskLocked):
		return huma.Error409Conflict(msg + ": task is locked by incomplete prerequisites")
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict(msg+": conflict", err)
	case errors.Is(err, domain.ErrInvalidInput):
		return huma.Error400BadRequest(msg+": invalid input", err)
	default:
		log.Error().Err(err).Msg(msg)
		return huma.Error500InternalServerError(msg)
	}
}

// parseOptionalDay parses a YYYY-MM-DD string; empty yields the zero time.
func parseOptionalDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := domain.ParseDay(s)
	if err != nil {
		return time.Time{}, huma.Error400BadRequest("invalid date, expected YYYY-MM-DD", err)
	}
	return d, nil
}

func actor(ctx context.Context) string {
	v, _ := middleware.ViewerFromContext(ctx)
	return v
}
