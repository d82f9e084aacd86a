package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"mountpass/internal/passes/models"
	"mountpass/pkg/requestcontext"
)

// SetStatus applies a moderation decision. Any status may follow any other.
func (s *Service) SetStatus(ctx context.Context, id int64, status models.Status) (_ *models.Pass, err error) {
	ctx, span := s.startSpan(ctx, "SetStatus")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int64("pass.id", id), attribute.String("pass.status", string(status)))

	if !status.IsValid() {
		_, err = models.ParseStatus(string(status))
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var (
		updated *models.Pass
		prev    models.Status
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.passes.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return wrapPassErr(err, "load pass")
		}
		if sub, err := s.submitters.FindByID(txCtx, p.SubmitterID); err == nil {
			p.Submitter = sub
		}
		prev = p.ApplyStatus(status, now)
		if err := s.passes.Update(txCtx, p); err != nil {
			return wrapPassErr(err, "update status")
		}
		updated = p
		return s.emit(txCtx, models.EventPassStatusChanged, p, prev)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "pass status changed",
		"request_id", requestcontext.RequestID(ctx),
		"pass_id", id,
		"from", prev,
		"to", status,
	)
	if s.metrics != nil {
		s.metrics.IncrementStatusChange(string(status))
	}
	return updated, nil
}
