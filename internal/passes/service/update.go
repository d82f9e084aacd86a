package service

import (
	"context"
	"time"

	"mountpass/internal/passes/models"
	dErrors "mountpass/pkg/domain-errors"
	"mountpass/pkg/requestcontext"
)

// UpdateInput is a partial edit. Nil members are left untouched; a non-nil
// Images replaces the whole image set, so an empty slice removes all images.
type UpdateInput struct {
	Fields    models.PassFieldsPatch
	Submitter *models.SubmitterPatch
	Coords    *models.CoordsPatch
	Level     *models.LevelPatch
	Images    *[]models.ImageInput
}

// Update edits a pass that is still in StatusNew. Every field error is
// reported together and nothing is written unless all of them pass.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (_ *models.Pass, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "Update")
	defer func() { endSpan(span, err) }()

	now := requestcontext.Now(ctx)
	var (
		updated *models.Pass
		saved   []string
		removed []models.Image
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.passes.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return wrapPassErr(err, "load pass")
		}
		if err := p.CanEdit(); err != nil {
			if s.metrics != nil {
				s.metrics.IncrementEditRejected()
			}
			return err
		}
		sub, err := s.submitters.FindByID(txCtx, p.SubmitterID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load submitter")
		}
		p.Submitter = sub

		fields := dErrors.FieldErrors{}
		if err := p.ApplyFields(in.Fields, now); err != nil {
			fields.Merge("", dErrors.FieldsOf(err))
		}
		if in.Submitter != nil {
			fields.Merge("user", sub.Changes(*in.Submitter))
		}
		var coords *models.Coords
		if in.Coords != nil {
			if coords, err = p.Coords.Patched(*in.Coords); err != nil {
				fields.Merge("coords", dErrors.FieldsOf(err))
			}
		}
		var level *models.Level
		if in.Level != nil {
			if level, err = p.Level.Patched(*in.Level); err != nil {
				fields.Merge("level", dErrors.FieldsOf(err))
			}
		}
		if in.Images != nil {
			s.checkImages(fields, *in.Images)
		}
		if err := fields.Err(); err != nil {
			return err
		}

		if err := s.passes.Update(txCtx, p); err != nil {
			return wrapPassErr(err, "update pass")
		}
		if coords != nil {
			if err := s.passes.UpdateCoords(txCtx, coords); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update coords")
			}
			p.Coords = coords
		}
		if level != nil {
			if err := s.passes.UpdateLevel(txCtx, level); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update level")
			}
			p.Level = level
		}
		if in.Images != nil {
			if removed, err = s.passes.RemoveImages(txCtx, p.ID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove images")
			}
			images, paths, err := s.storeImages(txCtx, p.ID, *in.Images, now)
			saved = paths
			if err != nil {
				return err
			}
			p.Images = images
		}

		updated = p
		return s.emit(txCtx, models.EventPassUpdated, p, "")
	})
	if err != nil {
		s.discard(ctx, saved)
		return nil, err
	}

	old := make([]string, len(removed))
	for i, img := range removed {
		old[i] = img.Path
	}
	s.discard(ctx, old)

	s.logger.InfoContext(ctx, "pass updated",
		"request_id", requestcontext.RequestID(ctx),
		"pass_id", updated.ID,
		"images_replaced", in.Images != nil,
	)
	if s.metrics != nil {
		s.metrics.IncrementPassUpdated()
		s.metrics.ObserveUpdate(start)
	}
	return updated, nil
}
