package service

import (
	"context"
	"errors"
	"strings"

	"mountpass/internal/passes/models"
	dErrors "mountpass/pkg/domain-errors"
	"mountpass/pkg/platform/sentinel"
)

// Get returns a pass with its submitter, coords, level and images.
func (s *Service) Get(ctx context.Context, id int64) (_ *models.Pass, err error) {
	ctx, span := s.startSpan(ctx, "Get")
	defer func() { endSpan(span, err) }()

	p, err := s.passes.FindByID(ctx, id)
	if err != nil {
		return nil, wrapPassErr(err, "load pass")
	}
	sub, err := s.submitters.FindByID(ctx, p.SubmitterID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load submitter")
	}
	p.Submitter = sub
	return p, nil
}

// ListByEmail returns the submitter's passes, newest first, plus the total
// before pagination. An unknown email is not found; a known one with no
// passes yields an empty list.
func (s *Service) ListByEmail(ctx context.Context, email string, filter models.ListFilter) (_ []*models.Pass, _ int, err error) {
	ctx, span := s.startSpan(ctx, "ListByEmail")
	defer func() { endSpan(span, err) }()

	if email == "" {
		return nil, 0, dErrors.New(dErrors.CodeBadRequest, "email parameter is required")
	}
	// An address that fails validation can match no stored submitter.
	normalized, normErr := models.NormalizeEmail(email)
	if normErr != nil {
		normalized = strings.ToLower(strings.TrimSpace(email))
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, dErrors.New(dErrors.CodeBadRequest, "invalid status filter")
	}

	sub, err := s.submitters.FindByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, 0, dErrors.New(dErrors.CodeNotFound, "no user found with this email")
		}
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load submitter")
	}

	passes, total, err := s.passes.ListBySubmitter(ctx, sub.ID, filter)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list passes")
	}
	for _, p := range passes {
		p.Submitter = sub
	}
	return passes, total, nil
}
