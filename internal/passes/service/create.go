package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"mountpass/internal/passes/models"
	dErrors "mountpass/pkg/domain-errors"
	"mountpass/pkg/platform/sentinel"
	"mountpass/pkg/requestcontext"
)

// CreateInput is a complete submission. Coordinates arrive already parsed;
// range checks happen here.
type CreateInput struct {
	Fields    models.PassFields
	Submitter models.SubmitterInput
	Latitude  float64
	Longitude float64
	Height    int
	Level     models.LevelInput
	Images    []models.ImageInput
}

// validated holds the aggregates built from a CreateInput.
type validated struct {
	pass      *models.Pass
	submitter *models.Submitter
	coords    *models.Coords
	level     *models.Level
}

func (s *Service) validateCreate(in CreateInput, now time.Time) (*validated, error) {
	fields := dErrors.FieldErrors{}
	v := &validated{}
	var err error

	if v.pass, err = models.NewPass(in.Fields, now); err != nil {
		fields.Merge("", dErrors.FieldsOf(err))
	}
	if v.submitter, err = models.NewSubmitter(in.Submitter); err != nil {
		fields.Merge("user", dErrors.FieldsOf(err))
	}
	if v.coords, err = models.NewCoords(in.Latitude, in.Longitude, in.Height); err != nil {
		fields.Merge("coords", dErrors.FieldsOf(err))
	}
	if v.level, err = models.NewLevel(in.Level); err != nil {
		fields.Merge("level", dErrors.FieldsOf(err))
	}
	s.checkImages(fields, in.Images)

	if err := fields.Err(); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) checkImages(fields dErrors.FieldErrors, images []models.ImageInput) {
	for i, img := range images {
		prefix := fmt.Sprintf("images.%d", i)
		title := models.CleanText(img.Title)
		if title == "" {
			fields.Add(prefix+".title", "this field is required")
		} else if len([]rune(title)) > models.MaxTitleLength {
			fields.Add(prefix+".title", fmt.Sprintf("ensure this field has no more than %d characters", models.MaxTitleLength))
		}
		if _, err := s.media.Inspect(img.Data); err != nil {
			fields.Add(prefix+".image", dErrors.MessageOf(err))
		}
	}
}

// Create validates every nested entity, then persists submitter, coords,
// level, pass and images in one transaction. The new pass is in StatusNew.
func (s *Service) Create(ctx context.Context, in CreateInput) (_ *models.Pass, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "Create")
	defer func() { endSpan(span, err) }()

	now := requestcontext.Now(ctx)
	v, err := s.validateCreate(in, now)
	if err != nil {
		return nil, err
	}

	var saved []string
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		sub, err := s.resolveSubmitter(txCtx, v.submitter)
		if err != nil {
			return err
		}
		if err := s.passes.CreateCoords(txCtx, v.coords); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save coords")
		}
		if err := s.passes.CreateLevel(txCtx, v.level); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save level")
		}

		p := v.pass
		p.SubmitterID, p.Submitter = sub.ID, sub
		p.CoordsID, p.Coords = v.coords.ID, v.coords
		p.LevelID, p.Level = v.level.ID, v.level
		if err := s.passes.Create(txCtx, p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save pass")
		}

		images, paths, err := s.storeImages(txCtx, p.ID, in.Images, now)
		saved = paths
		if err != nil {
			return err
		}
		p.Images = images

		return s.emit(txCtx, models.EventPassSubmitted, p, "")
	})
	if err != nil {
		s.discard(ctx, saved)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("pass.id", v.pass.ID))
	s.logger.InfoContext(ctx, "pass submitted",
		"request_id", requestcontext.RequestID(ctx),
		"pass_id", v.pass.ID,
		"submitter_id", v.pass.SubmitterID,
		"images", len(v.pass.Images),
	)
	if s.metrics != nil {
		s.metrics.IncrementPassCreated()
		s.metrics.ObserveCreate(start)
	}
	return v.pass, nil
}

// resolveSubmitter returns the stored submitter for the email, creating it
// on first submission.
func (s *Service) resolveSubmitter(ctx context.Context, in *models.Submitter) (*models.Submitter, error) {
	existing, err := s.submitters.FindByEmail(ctx, in.Email)
	if errors.Is(err, sentinel.ErrNotFound) {
		sub := *in
		err = s.submitters.Create(ctx, &sub)
		if err == nil {
			return &sub, nil
		}
		if !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save submitter")
		}
		// a concurrent submission created it first
		existing, err = s.submitters.FindByEmail(ctx, in.Email)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load submitter")
	}

	if s.refreshSubmitter && !existing.SameContact(in) {
		refreshed := *in
		refreshed.ID = existing.ID
		if err := s.submitters.Update(ctx, &refreshed); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update submitter")
		}
		return &refreshed, nil
	}
	return existing, nil
}

// storeImages writes each binary to the media store and links it to the
// pass. Paths written so far are returned even on error so the caller can
// remove them.
func (s *Service) storeImages(ctx context.Context, passID int64, images []models.ImageInput, now time.Time) ([]models.Image, []string, error) {
	out := make([]models.Image, 0, len(images))
	paths := make([]string, 0, len(images))
	for _, in := range images {
		asset, err := s.media.Save(in.Data, now)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeValidation) {
				return nil, paths, err
			}
			return nil, paths, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store image")
		}
		paths = append(paths, asset.Path)

		img := models.Image{
			PassID:      passID,
			Title:       models.CleanText(in.Title),
			Path:        asset.Path,
			ContentType: asset.ContentType,
			Size:        asset.Size,
			CreatedAt:   now,
		}
		if err := s.passes.AddImage(ctx, &img); err != nil {
			return nil, paths, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save image")
		}
		if s.metrics != nil {
			s.metrics.ObserveImageStored(asset.Size)
		}
		out = append(out, img)
	}
	return out, paths, nil
}

// discard removes media files whose database rows were rolled back or
// replaced.
func (s *Service) discard(ctx context.Context, paths []string) {
	for _, path := range paths {
		if err := s.media.Delete(path); err != nil {
			s.logger.WarnContext(ctx, "failed to remove media file",
				"request_id", requestcontext.RequestID(ctx),
				"path", path,
				"error", err,
			)
		}
	}
}
