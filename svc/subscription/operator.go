package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/coachlatam/coachlatam/pkg/logger"
)

// ListSagas returns recent sagas, optionally filtered by state.
func (s *Service) ListSagas(ctx context.Context, state SagaState, limit int) ([]Saga, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.sagas.ListSagas(ctx, state, limit)
}

// ResolveSaga marks a critical saga as reconciled by an operator.
func (s *Service) ResolveSaga(ctx context.Context, id uuid.UUID, note string) (*Saga, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, newError(ErrValidation, "resolution note is required", "", nil)
	}

	saga, err := s.sagas.GetSaga(ctx, id)
	if errors.Is(err, ErrSagaNotFound) {
		return nil, newError(ErrNotFound, "Saga not found", id.String(), err)
	}
	if err != nil {
		return nil, fmt.Errorf("load saga: %w", err)
	}

	if err := saga.Fire(ctx, EventResolved); err != nil {
		return nil, newError(ErrValidation, fmt.Sprintf("Saga in state %s cannot be resolved", saga.State), id.String(), err)
	}
	saga.ResolutionNote = note

	if err := s.sagas.UpdateSaga(ctx, saga); err != nil {
		return nil, fmt.Errorf("persist saga: %w", err)
	}

	s.log.InfoContext(ctx, "billing saga resolved",
		logger.SagaID(saga.ID),
		logger.UserID(saga.UserID),
		logger.ExternalSubscriptionID(saga.ExternalSubscriptionID),
	)
	return saga, nil
}
