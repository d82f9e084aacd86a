package service

import (
	"context"

	"github.com/google/uuid"

	"mountpass/internal/passes/models"
	dErrors "mountpass/pkg/domain-errors"
	"mountpass/pkg/requestcontext"
)

func (s *Service) emit(ctx context.Context, eventType models.EventType, p *models.Pass, prev models.Status) error {
	if s.outbox == nil {
		return nil
	}
	event := models.Event{
		ID:             uuid.New(),
		Type:           eventType,
		PassID:         p.ID,
		Status:         p.Status,
		PreviousStatus: prev,
		RequestID:      requestcontext.RequestID(ctx),
		OccurredAt:     requestcontext.Now(ctx),
	}
	if p.Submitter != nil {
		event.SubmitterEmail = p.Submitter.Email
	}
	if err := s.outbox.Append(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record pass event")
	}
	return nil
}
